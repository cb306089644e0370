package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/auditlog"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/gitinfo"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/hookserver"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/logging"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/paths"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/publish"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/registry"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/settings"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/stream"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/summarize"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/tailer"
	"github.com/agentdeck/agentdeck/cmd/agentdeck/cli/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		hookPort       int
		streamPort     int
		transcriptsDir string
		logLevel       string
		summarizer     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session status daemon",
		Long: `Run the daemon: ingest hook events, tail transcripts, and publish
live session snapshots over websocket until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := settings.Load()
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}
			// Flags override settings only when actually set.
			flags := cmd.Flags()
			if flags.Changed("hook-port") {
				st.HookPort = hookPort
			}
			if flags.Changed("stream-port") {
				st.StreamPort = streamPort
			}
			if flags.Changed("transcripts-dir") {
				st.TranscriptsDir = transcriptsDir
			}
			if flags.Changed("log-level") {
				st.LogLevel = logLevel
			}
			if flags.Changed("summarizer") {
				st.Summarizer = summarizer
			}
			return runServe(cmd.Context(), cmd, st)
		},
	}

	cmd.Flags().IntVar(&hookPort, "hook-port", 0, "loopback port for hook ingest (overrides settings)")
	cmd.Flags().IntVar(&streamPort, "stream-port", 0, "loopback port for the snapshot stream (overrides settings)")
	cmd.Flags().StringVar(&transcriptsDir, "transcripts-dir", "", "transcript root to watch (overrides settings)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log verbosity: debug, info, warn, error")
	cmd.Flags().StringVar(&summarizer, "summarizer", "", "goal/summary backend: anthropic, claude-cli, off")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, st *settings.Settings) error {
	startedAt := time.Now()

	logPath, err := paths.DaemonLogPath()
	if err != nil {
		return fmt.Errorf("resolving log path: %w", err)
	}
	if err := logging.Init(logPath, st.LogLevel); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Close()
	ctx = logging.WithComponent(ctx, "daemon")

	auditDir, err := paths.AuditLogDir()
	if err != nil {
		return fmt.Errorf("resolving audit log directory: %w", err)
	}
	audit := auditlog.New(auditDir)

	cachePath, err := paths.RepoCachePath()
	if err != nil {
		return fmt.Errorf("resolving repository cache path: %w", err)
	}
	prober := gitinfo.NewProber(cachePath)

	reg := registry.New(registry.Config{
		PermissionDelay: st.PermissionDelay(),
		StaleThreshold:  st.StaleThreshold(),
	}, audit, prober)

	var sum publish.Summarizer
	if st.Summarizer != settings.SummarizerOff {
		sum = summarize.New(st.Summarizer)
	}
	pub := publish.New(ctx, reg, sum)
	reg.SetNotifier(pub)

	root := st.TranscriptsDir
	if root == "" {
		root, err = paths.TranscriptsDir()
		if err != nil {
			return fmt.Errorf("resolving transcripts directory: %w", err)
		}
	}
	tl := tailer.New(root, st.Debounce(), reg)
	go func() {
		if err := tl.Run(ctx); err != nil {
			logging.Error(ctx, "tailer stopped", slog.Any("error", err))
		}
	}()

	// Hooks are rejected with 503 until the bootstrap scan has run, so a
	// live hook can never race its own session's bootstrap.
	<-tl.Ready()
	reg.MarkReady()

	go reg.RunStaleSweeper(ctx, st.StaleCheckInterval())

	hookSrv := hookserver.Server(
		fmt.Sprintf("127.0.0.1:%d", st.HookPort),
		hookserver.Router(reg, audit, startedAt, st.IdleDisplayThresholdMs),
	)
	// No read/write deadlines on the stream server: websocket connections
	// are long-lived by design.
	streamSrv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", st.StreamPort),
		Handler:           stream.Router(pub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := hookSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("hook server: %w", err)
		}
	}()
	go func() {
		if err := streamSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("stream server: %w", err)
		}
	}()

	tel := telemetry.NewClient(Version, st.Telemetry)
	tel.TrackDaemonStarted(st.HookPort, st.StreamPort)

	fmt.Fprintf(cmd.OutOrStdout(), "agentdeck daemon running: hooks on 127.0.0.1:%d, stream on 127.0.0.1:%d\n",
		st.HookPort, st.StreamPort)
	logging.Info(ctx, "daemon started",
		slog.Int("hook_port", st.HookPort),
		slog.Int("stream_port", st.StreamPort),
		slog.String("transcripts_dir", root))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hookSrv.Shutdown(shutdownCtx)
	_ = streamSrv.Shutdown(shutdownCtx)

	tel.TrackDaemonStopped(time.Since(startedAt), reg.HooksProcessed(), reg.SessionsObserved())
	tel.Close()

	logging.Info(ctx, "daemon stopped",
		slog.Int64("hooks_processed", reg.HooksProcessed()),
		slog.Int64("sessions_observed", reg.SessionsObserved()))
	return runErr
}
