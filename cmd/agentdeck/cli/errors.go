package cli

// SilentError wraps an error whose message was already shown to the user.
// main.go checks for it to avoid printing the same failure twice.
type SilentError struct {
	err error
}

// NewSilentError wraps err as already-reported.
func NewSilentError(err error) *SilentError {
	return &SilentError{err: err}
}

func (e *SilentError) Error() string { return e.err.Error() }
func (e *SilentError) Unwrap() error { return e.err }
