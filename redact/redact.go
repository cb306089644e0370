// Package redact scrubs secrets and injected tool noise from text before
// it leaves the daemon, primarily prompts handed to the summarizer.
package redact

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// secretPattern matches high-entropy strings that may be secrets.
var secretPattern = regexp.MustCompile(`[A-Za-z0-9/+_=-]{10,}`)

// entropyThreshold is the minimum Shannon entropy for a string to be
// considered a secret. High enough to avoid false positives on common
// identifiers, low enough to catch typical API keys which tend to sit
// well above 5.0.
const entropyThreshold = 4.5

var (
	gitleaksDetector     *detect.Detector
	gitleaksDetectorOnce sync.Once
)

func getDetector() *detect.Detector {
	gitleaksDetectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		gitleaksDetector = d
	})
	return gitleaksDetector
}

// region represents a byte range to redact.
type region struct{ start, end int }

// String replaces secrets in s with "REDACTED" using layered detection:
// entropy-based for high-entropy alphanumeric runs, and pattern-based via
// the gitleaks default ruleset. A string is redacted if either flags it.
func String(s string) string {
	var regions []region

	for _, loc := range secretPattern.FindAllStringIndex(s, -1) {
		if shannonEntropy(s[loc[0]:loc[1]]) > entropyThreshold {
			regions = append(regions, region{loc[0], loc[1]})
		}
	}

	if d := getDetector(); d != nil {
		for _, f := range d.DetectString(s) {
			if f.Secret == "" {
				continue
			}
			searchFrom := 0
			for {
				idx := strings.Index(s[searchFrom:], f.Secret)
				if idx < 0 {
					break
				}
				absIdx := searchFrom + idx
				regions = append(regions, region{absIdx, absIdx + len(f.Secret)})
				searchFrom = absIdx + len(f.Secret)
			}
		}
	}

	if len(regions) == 0 {
		return s
	}

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].start < regions[j].start
	})
	merged := []region{regions[0]}
	for _, r := range regions[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
		} else {
			merged = append(merged, r)
		}
	}

	var b strings.Builder
	prev := 0
	for _, r := range merged {
		b.WriteString(s[prev:r.start])
		b.WriteString("REDACTED")
		prev = r.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

// Bytes is a convenience wrapper around String for []byte content.
func Bytes(b []byte) []byte {
	s := string(b)
	redacted := String(s)
	if redacted == s {
		return b
	}
	return []byte(redacted)
}

// injectedTag matches the XML-ish wrappers the agent runtime injects into
// user prompts (system reminders, slash-command envelopes, IDE context).
// The wrapper and its contents are machine noise, not the user's ask.
const injectedTagNames = `system-reminder|command-name|command-message|command-args|local-command-stdout|ide_selection|ide_opened_file`

var injectedTag = regexp.MustCompile(`(?s)<(?:` + injectedTagNames + `)>.*?</(?:` + injectedTagNames + `)>`)

// Prompt prepares a raw user prompt for the summarizer: injected runtime
// tags are stripped, secrets are redacted, and whitespace is collapsed.
func Prompt(s string) string {
	s = injectedTag.ReplaceAllString(s, "")
	s = String(s)
	return strings.TrimSpace(s)
}

func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	freq := make(map[byte]int)
	for i := range len(s) {
		freq[s[i]]++
	}
	length := float64(len(s))
	var entropy float64
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}
