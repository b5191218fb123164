// pattern: Imperative Shell
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"worktreehub/internal/agentcli"
	"worktreehub/internal/cli"
	"worktreehub/internal/config"
	"worktreehub/internal/events"
	"worktreehub/internal/git"
	"worktreehub/internal/hub"
	"worktreehub/internal/instance"
	"worktreehub/internal/logging"
	"worktreehub/internal/project"
	"worktreehub/internal/web"
)

var version = "dev"

func main() {
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	flag.CommandLine.SetInterspersed(false)

	configDir := flag.StringP("config-dir", "c", "", "config directory (default: ~/.config/worktreehub)")
	agentHelp := flag.Bool("agent-help", false, "print the automation guide")
	showVersion := flag.Bool("version", false, "print version and exit")

	flag.Usage = func() {
		app := cli.BuildApp(version, *configDir)
		app.PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	app := cli.BuildApp(version, *configDir)

	if *agentHelp {
		app.PrintAgentHelp(os.Stdout)
		return
	}

	if app.Execute(flag.Args()) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runServer(ctx, *configDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadConfig loads the configuration from the specified directory or default location.
func loadConfig(configDir string) (config.Config, error) {
	if configDir != "" {
		return config.LoadFromDir(configDir)
	}
	return config.Load()
}

// runServer holds the single-instance lock and serves the HTTP API until
// ctx is cancelled. Every session is stopped before it returns.
func runServer(ctx context.Context, configDir string) error {
	cfg, err := loadConfig(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}

	lockDir := cli.ResolveDataDir(configDir)
	fl, err := instance.Lock(lockDir)
	if err != nil {
		return err
	}
	defer instance.Cleanup(lockDir, fl)

	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logManager, err := logging.NewManager(logging.Config{
		FilePath:    filepath.Join(dataDir, "worktreehub.log"),
		MaxSizeMB:   10,
		MaxBackups:  3,
		MaxAgeDays:  7,
		Level:       cfg.LogLevel,
		HistorySize: 1000,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logManager.Close() }()

	appLogger := logManager.For("app")
	appLogger.Info("server starting", "version", version, "data_dir", dataDir)

	h, auth, err := newHub(&cfg, logManager)
	if err != nil {
		return err
	}
	defer h.Close()

	reopenCurrent(ctx, h, appLogger)

	webServer := web.New(web.Config{
		Bind: cfg.Web.Bind,
		Port: cfg.Web.Port,
		Cols: cfg.Terminal.Cols,
		Rows: cfg.Terminal.Rows,

		ScanPaths: cfg.ResolvedScanPaths(),
	}, h, auth, logManager)
	ln, err := webServer.Listen()
	if err != nil {
		appLogger.Error("web server listen error", "error", err)
		return err
	}

	if err := instance.WritePort(lockDir, webServer.Addr()); err != nil {
		appLogger.Error("failed to write port file", "error", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- webServer.Serve(ln)
	}()

	fmt.Fprintf(os.Stderr, "worktreehub listening on http://%s\n", webServer.Addr())
	appLogger.Info("web server listening", "addr", webServer.Addr())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("web server error", "error", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("web server shutdown error", "error", err)
	}

	appLogger.Info("server stopped")
	return nil
}

// newHub wires the project registry from configuration. A missing agent
// executable is not fatal: agent sessions and auth are unavailable until
// it is installed.
func newHub(cfg *config.Config, logManager *logging.Manager) (*hub.Hub, *agentcli.Client, error) {
	layout := project.Layout{DataDir: cfg.ResolvedDataDir()}
	store, err := project.OpenStore(layout.StatePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open project state: %w", err)
	}

	var auth *agentcli.Client
	agentPath, err := agentcli.Resolve(cfg.Agent.Name, cfg.Agent.Path, exec.LookPath)
	if err != nil {
		logManager.For("agentcli").Warn("agent executable not found", "name", cfg.Agent.Name, "error", err)
		agentPath = ""
	} else {
		auth = agentcli.NewClient(agentPath, logManager.For("agentcli"))
	}

	h := hub.New(hub.Options{
		Layout:        layout,
		Store:         store,
		Git:           git.NewClient(git.NewExecRunner(), logManager.For("git")),
		Events:        events.NewBroker(),
		Logs:          logManager,
		AgentPath:     agentPath,
		Shell:         cfg.ResolvedShell(),
		Env:           os.Environ(),
		StopGrace:     cfg.Preview.StopGrace,
		MinimumUptime: cfg.Preview.MinimumUptime,
	})
	return h, auth, nil
}

// reopenCurrent opens the project that was current when the server last ran.
func reopenCurrent(ctx context.Context, h *hub.Hub, logger *logging.ScopedLogger) {
	ref, ok := h.Store().Current()
	if !ok {
		return
	}
	if _, err := h.Open(ctx, ref.Path); err != nil {
		logger.Warn("failed to reopen last project", "path", ref.Path, "error", err)
	}
}
