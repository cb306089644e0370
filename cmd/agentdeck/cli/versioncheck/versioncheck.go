// Package versioncheck notifies users when a newer release is available.
// All failures are silent; an update nag must never break a command.
package versioncheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/jsonutil"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/paths"
)

// cache records when the last check ran, so at most one network call
// happens per checkInterval across invocations.
type cache struct {
	LastCheckTime time.Time `json:"last_check_time"`
}

// githubRelease is the subset of the GitHub API release response we read.
type githubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// githubAPIURL is a var (not const) to allow overriding in tests.
var githubAPIURL = "https://api.github.com/repos/agentdeck/agentdeck/releases/latest"

const (
	checkInterval = 24 * time.Hour
	httpTimeout   = 2 * time.Second
	cacheFileName = "version_check.json"
)

// CheckAndNotify performs a version check and prints a notice when a
// newer release exists. Dev builds and hidden commands are exempt.
func CheckAndNotify(cmd *cobra.Command, currentVersion string) {
	if cmd.Hidden {
		return
	}
	if currentVersion == "dev" || currentVersion == "" {
		return
	}

	path, err := cachePath()
	if err != nil {
		return
	}
	c := loadCache(path)
	if time.Since(c.LastCheckTime) < checkInterval {
		return
	}

	latest, fetchErr := fetchLatestVersion()

	// Update the cache regardless of outcome so a flaky network does not
	// retry on every invocation.
	c.LastCheckTime = time.Now()
	saveCache(path, c)

	if fetchErr != nil {
		return
	}
	if isOutdated(currentVersion, latest) {
		fmt.Fprintf(cmd.OutOrStdout(),
			"\nA newer version of agentdeck is available: %s (current: %s)\nRun 'go install github.com/agentdeck/agentdeck/cmd/agentdeck@latest' to update.\n",
			latest, currentVersion)
	}
}

func cachePath() (string, error) {
	dir, err := paths.ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	return filepath.Join(dir, cacheFileName), nil
}

func loadCache(path string) cache {
	var c cache
	data, err := os.ReadFile(path) //nolint:gosec // path derives from ConfigDir
	if err != nil {
		return c
	}
	_ = json.Unmarshal(data, &c)
	return c
}

func saveCache(path string, c cache) {
	_ = jsonutil.WriteFileAtomic(path, c)
}

func fetchLatestVersion() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "agentdeck")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return parseRelease(body)
}

// parseRelease extracts the latest stable tag, rejecting prereleases.
func parseRelease(body []byte) (string, error) {
	var release githubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", fmt.Errorf("parsing JSON: %w", err)
	}
	if release.Prerelease {
		return "", errors.New("only prerelease versions available")
	}
	if release.TagName == "" {
		return "", errors.New("empty tag name")
	}
	return release.TagName, nil
}

// isOutdated compares versions with semver semantics.
func isOutdated(current, latest string) bool {
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	return semver.Compare(current, latest) < 0
}
