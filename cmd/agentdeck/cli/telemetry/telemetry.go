// Package telemetry reports anonymous daemon lifecycle events. It is
// opt-in via settings and always best-effort: nothing here may block or
// fail the daemon.
package telemetry

import (
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// PostHogAPIKey is set at build time for production
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// OptOutEnvVar disables telemetry regardless of settings.
const OptOutEnvVar = "AGENTDECK_TELEMETRY_OPTOUT"

// Client defines the telemetry interface.
type Client interface {
	TrackCommand(cmd *cobra.Command)
	TrackDaemonStarted(hookPort, streamPort int)
	TrackDaemonStopped(uptime time.Duration, hooksProcessed, sessionsObserved int64)
	Close()
}

// NoOpClient is a no-op implementation for when telemetry is disabled.
type NoOpClient struct{}

func (n *NoOpClient) TrackCommand(*cobra.Command)                    {}
func (n *NoOpClient) TrackDaemonStarted(_, _ int)                    {}
func (n *NoOpClient) TrackDaemonStopped(_ time.Duration, _, _ int64) {}
func (n *NoOpClient) Close()                                         {}

// silentLogger suppresses PostHog log output - expected for best-effort telemetry
type silentLogger struct{}

func (silentLogger) Logf(_ string, _ ...interface{})   {}
func (silentLogger) Debugf(_ string, _ ...interface{}) {}
func (silentLogger) Warnf(_ string, _ ...interface{})  {}
func (silentLogger) Errorf(_ string, _ ...interface{}) {}

// PostHogClient is the real telemetry client.
type PostHogClient struct {
	client  posthog.Client
	id      string
	version string
	mu      sync.RWMutex
}

// NewClient creates a telemetry client based on opt-out settings. The
// enabled parameter comes from settings; nil means not configured, which
// defaults to disabled.
//
//nolint:ireturn // Factory function - returns NoOpClient or PostHogClient based on settings
func NewClient(version string, enabled *bool) Client {
	if os.Getenv(OptOutEnvVar) != "" {
		return &NoOpClient{}
	}
	if enabled == nil || !*enabled {
		return &NoOpClient{}
	}

	id, err := machineid.ProtectedID("agentdeck")
	if err != nil {
		return &NoOpClient{}
	}

	// Fast-timeout transport: telemetry must never hold up shutdown.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return &NoOpClient{}
	}

	return &PostHogClient{
		client:  client,
		id:      id,
		version: version,
	}
}

// TrackCommand records a CLI command invocation. Only flag names are
// collected, never values.
func (p *PostHogClient) TrackCommand(cmd *cobra.Command) {
	if cmd == nil || cmd.Hidden {
		return
	}
	var flags []string
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		flags = append(flags, flag.Name)
	})

	props := posthog.NewProperties().Set("command", cmd.CommandPath())
	if len(flags) > 0 {
		props.Set("flags", flags)
	}
	p.enqueue("cli_command_executed", props)
}

// TrackDaemonStarted records a daemon boot.
func (p *PostHogClient) TrackDaemonStarted(hookPort, streamPort int) {
	p.enqueue("daemon_started", posthog.NewProperties().
		Set("hook_port", hookPort).
		Set("stream_port", streamPort))
}

// TrackDaemonStopped records a daemon shutdown with usage counters.
func (p *PostHogClient) TrackDaemonStopped(uptime time.Duration, hooksProcessed, sessionsObserved int64) {
	p.enqueue("daemon_stopped", posthog.NewProperties().
		Set("uptime_seconds", int(uptime.Seconds())).
		Set("hooks_processed", hooksProcessed).
		Set("sessions_observed", sessionsObserved))
}

func (p *PostHogClient) enqueue(event string, props posthog.Properties) {
	p.mu.RLock()
	id := p.id
	c := p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	//nolint:errcheck // Best-effort telemetry, failures should not affect the daemon
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      event,
		Properties: props,
	})
}

// Close flushes pending events.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
}
