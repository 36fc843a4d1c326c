package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"focusnudge/internal/clock"
	"focusnudge/internal/config"
	"focusnudge/internal/daemon"
	"focusnudge/internal/database"
	"focusnudge/internal/focus"
	"focusnudge/internal/nudge"
	"focusnudge/internal/recorder"
	"focusnudge/internal/reporter"
	"focusnudge/internal/session"
	"focusnudge/internal/signals"
	"focusnudge/internal/web"
	"focusnudge/pkg/utils"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

const daemonChildEnv = "FOCUSNUDGE_DAEMON_CHILD"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "focusnudge",
		Short:         "Focus session timer with rule-based nudges",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/focusnudge/config.toml)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newStopCmd(&configPath))
	root.AddCommand(newStatusCmd(&configPath))
	root.AddCommand(newReportCmd(&configPath))
	root.AddCommand(newClearCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openRepository(cfg *config.Config) (*database.DB, *database.Repository, error) {
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, database.NewRepository(db), nil
}

func newServeCmd(configPath *string) *cobra.Command {
	var foreground bool
	var port int
	var evalInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the focus service with its web API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if port > 0 {
				if err := cfg.SetWebPort(port); err != nil {
					return err
				}
			}
			if evalInterval > 0 {
				if err := cfg.SetEvaluationInterval(evalInterval); err != nil {
					return err
				}
			}

			dm := daemon.New(cfg.Daemon.PIDFile)
			running, pid, err := dm.IsRunning()
			if err != nil {
				return fmt.Errorf("failed to check daemon status: %w", err)
			}
			if running {
				return fmt.Errorf("daemon is already running (PID: %d)", pid)
			}

			if !foreground && os.Getenv(daemonChildEnv) != "1" {
				return daemonize(cmd.OutOrStdout(), cfg)
			}

			if os.Getenv(daemonChildEnv) == "1" {
				logFile, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err == nil {
					log.SetOutput(logFile)
					defer logFile.Close()
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, dm)
		},
	}
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "do not detach from the terminal")
	cmd.Flags().IntVar(&port, "port", 0, "web server port (overrides config)")
	cmd.Flags().DurationVar(&evalInterval, "eval-interval", 0, "nudge evaluation interval (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, dm *daemon.Daemon) error {
	db, repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := dm.Acquire(); err != nil {
		return err
	}
	defer dm.RemovePID()

	rec := recorder.New(repo, cfg.Recorder.Buffer)
	defer func() {
		rec.Close()
		if n := rec.Dropped(); n > 0 {
			log.Printf("Recorder dropped %d records", n)
		}
	}()

	board := signals.NewBoard(cfg.Signals.SwitchWindow)
	svc := focus.NewService(cfg, clock.System{}, board, rec, nudge.NewEngine())
	webServer := web.NewServer(cfg, svc, board, repo, rec)

	log.Println("Starting focusnudge daemon with web API...")
	log.Printf("Configuration:\n%s", cfg.String())

	// the service outlives ctx so the open session can still be stopped
	// and recorded once the shutdown signal arrives
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcDone := make(chan error, 1)
	go func() { svcDone <- svc.Run(runCtx) }()

	webErr := make(chan error, 1)
	go func() { webErr <- webServer.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
		log.Println("Received shutdown signal")
	case err := <-webErr:
		if err != nil {
			runErr = fmt.Errorf("web server error: %w", err)
		}
	case err := <-svcDone:
		svcDone <- err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := svc.StopSession(shutdownCtx); err != nil {
		log.Printf("Failed to stop session: %v", err)
	}
	svc.Stop()
	<-svcDone

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down web server: %v", err)
	}

	log.Println("Daemon stopped successfully")
	return runErr
}

func daemonize(out io.Writer, cfg *config.Config) error {
	env := append(os.Environ(), daemonChildEnv+"=1")

	procAttr := &os.ProcAttr{
		Env:   env,
		Files: []*os.File{nil, nil, nil}, // stdin, stdout, stderr to /dev/null
		Sys: &syscall.SysProcAttr{
			Setsid: true, // Create new session
		},
	}

	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	process, err := os.StartProcess(exe, os.Args, procAttr)
	if err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	fmt.Fprintf(out, "Daemon started successfully (PID: %d)\n", process.Pid)
	fmt.Fprintf(out, "Web API available at: http://%s\n", cfg.Address())
	fmt.Fprintf(out, "Logs: %s\n", cfg.Daemon.LogFile)
	return process.Release()
}

func newStopCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			pid, err := daemon.New(cfg.Daemon.PIDFile).Stop()
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stopped daemon (PID: %d)\n", pid)
			return nil
		},
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			running, pid, err := daemon.New(cfg.Daemon.PIDFile).IsRunning()
			if err != nil {
				return fmt.Errorf("failed to check daemon status: %w", err)
			}
			if running {
				fmt.Fprintf(out, "Status: Running (PID: %d)\n", pid)
				fmt.Fprintf(out, "Web API: http://%s\n", cfg.Address())

				snap, err := fetchSession(cmd.Context(), "http://"+cfg.Address())
				if err != nil {
					fmt.Fprintf(out, "\nCould not query session: %v\n", err)
				} else {
					fmt.Fprintf(out, "\nSession: %s %s\n", snap.State, utils.FormatClock(snap.ElapsedSeconds))
				}
			} else {
				fmt.Fprintln(out, "Status: Not running")
			}

			return printLastSession(out, cfg)
		},
	}
}

func printLastSession(out io.Writer, cfg *config.Config) error {
	db, repo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	last, err := repo.GetLatestSession()
	if err != nil {
		return err
	}
	if last == nil {
		fmt.Fprintln(out, "Last session: none recorded")
		return nil
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Last session: %s (%s, ended %s)\n",
		utils.FormatClock(last.ElapsedSeconds), last.EndState,
		last.EndedAt.In(loc).Format("2006-01-02 15:04"))
	return nil
}

func fetchSession(ctx context.Context, baseURL string) (*session.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/session", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &snap, nil
}

func newReportCmd(configPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:       "report [day|week|month]",
		Short:     "Print a focus report",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"day", "today", "week", "month"},
		RunE: func(cmd *cobra.Command, args []string) error {
			periodType := "day"
			if len(args) > 0 {
				periodType = args[0]
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			rep := reporter.New(cfg, repo)
			report, err := rep.GenerateReport(periodType)
			if err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}

			if jsonOutput {
				jsonStr, err := rep.FormatReportJSON(report)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), jsonStr)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep.FormatReportText(report))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func newClearCmd(configPath *string) *cobra.Command {
	var yes bool
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !yes {
				what := "all recorded data"
				if olderThan > 0 {
					what = fmt.Sprintf("usage events older than %v", olderThan)
				}
				fmt.Fprintf(out, "This will delete %s. Are you sure? (yes/no): ", what)
				var response string
				fmt.Fscanln(cmd.InOrStdin(), &response)
				if response != "yes" && response != "y" {
					fmt.Fprintln(out, "Operation cancelled")
					return nil
				}
			}

			db, repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if olderThan > 0 {
				n, err := repo.DeleteEventsBefore(time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d usage events\n", n)
				return nil
			}

			if err := repo.Clear(); err != nil {
				return fmt.Errorf("failed to clear database: %w", err)
			}
			fmt.Fprintln(out, "Database cleared successfully")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only delete usage events older than this")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "focusnudge version %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
