// Package cli implements the reachctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/axondata/reachctl"
	"github.com/axondata/reachctl/internal/logger"
)

const serviceName = "reachctl"

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks errors caused by the command line rather than the host
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

var errMissingCommand = errors.New("missing command")

type globalFlags struct {
	configPath      string
	settingsPath    string
	logLevel        string
	logFormat       string
	metricsTextfile string
	jsonOutput      bool
}

// App carries the state of one reachctl invocation
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	// NewNative builds the native backend
	NewNative func(cfg *reachctl.Config) reachctl.Supervisor
	// NewRuntime builds the container runtime and returns its close function
	NewRuntime func(cfg *reachctl.Config) (reachctl.ContainerRuntime, func() error, error)
	// Options are appended to the orchestrator options built from config
	Options []reachctl.Option

	flags   globalFlags
	cfg     *reachctl.Config
	logger  *slog.Logger
	metrics *reachctl.Metrics
	runID   string
}

// NewApp returns an App wired to systemd, Docker and the process's stdio
func NewApp() *App {
	return &App{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		NewNative:  defaultNative,
		NewRuntime: defaultRuntime,
		logger:     slog.Default(),
	}
}

func defaultNative(cfg *reachctl.Config) reachctl.Supervisor {
	s := reachctl.NewSystemdSupervisor(cfg.UnitName)
	if cfg.Native.UseSudo != nil {
		s.WithSudo(*cfg.Native.UseSudo, "")
	}
	return s
}

func defaultRuntime(cfg *reachctl.Config) (reachctl.ContainerRuntime, func() error, error) {
	rt, err := reachctl.NewDockerRuntime(cfg.DockerHost)
	if err != nil {
		return nil, nil, err
	}
	return rt, rt.Close, nil
}

// Execute runs reachctl with the process arguments and exits
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := NewApp().Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// Run executes one command line and returns the process exit code
func (a *App) Run(ctx context.Context, args []string) int {
	root := a.RootCmd()
	root.SetArgs(args)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	err := root.ExecuteContext(ctx)

	if path := a.metricsPath(); path != "" && a.metrics != nil {
		if werr := a.metrics.WriteTextfile(path); werr != nil {
			a.logger.Warn("metrics not written", "path", path, "error", werr)
		}
	}
	return a.exitCode(root, err)
}

func (a *App) exitCode(root *cobra.Command, err error) int {
	if err == nil {
		return exitOK
	}

	var uerr *usageError
	if errors.As(err, &uerr) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(a.Stderr, "%s: %v\n\n", serviceName, err)
		_ = root.Usage()
		return exitUsage
	}

	fmt.Fprintf(a.Stderr, "%s: %v\n", serviceName, err)
	return exitFailure
}

// RootCmd builds the command tree
func (a *App) RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Move the Reach server between systemd and Docker",
		Long: `reachctl hands a running Reach server between its two supervisors:
a native systemd unit and a Docker container. Only one of them may own the
service port at a time. Every command derives the current owner from live
probes; nothing is remembered between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return &usageError{err: errMissingCommand}
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", reachctl.DefaultConfigFile, "YAML config file (missing file means defaults)")
	pf.StringVar(&a.flags.settingsPath, "settings", "", "KEY=VALUE settings file (default from config)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL)")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: text or json (default $REACH_LOG_FORMAT)")
	pf.StringVar(&a.flags.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file (default $REACH_METRICS_TEXTFILE)")
	pf.BoolVar(&a.flags.jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(
		a.newStartCmd(),
		a.newStopCmd(),
		a.newStatusCmd(),
		a.newLogsCmd(),
		a.newBuildCmd(),
		a.newWatchCmd(),
		a.newInstallUnitCmd(),
		a.newVersionCmd(),
	)
	return root
}

// setup loads configuration in order: YAML file, settings file, environment.
// The logger is rebuilt after the settings file so LOG_LEVEL from it applies.
func (a *App) setup() error {
	a.runID = uuid.NewString()
	a.logger = a.newLogger()

	cfg, err := reachctl.LoadConfig(a.flags.configPath)
	if err != nil {
		return err
	}

	settings := a.flags.settingsPath
	if settings == "" {
		settings = cfg.SettingsFile
	}
	cfg.SettingsFile = settings
	reachctl.LoadEnvFile(settings, a.logger)

	a.logger = a.newLogger()
	cfg.ApplyEnv(a.logger)
	if err := cfg.Validate(); err != nil {
		return &usageError{err: fmt.Errorf("invalid config: %w", err)}
	}

	a.cfg = cfg
	a.metrics = reachctl.NewMetrics()
	return nil
}

func (a *App) newLogger() *slog.Logger {
	level := a.flags.logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	format := a.flags.logFormat
	if format == "" {
		format = os.Getenv("REACH_LOG_FORMAT")
	}
	return logger.New(serviceName, logger.ParseLevel(level), logger.ParseFormat(format), a.Stderr).
		With("run_id", a.runID)
}

func (a *App) metricsPath() string {
	if a.flags.metricsTextfile != "" {
		return a.flags.metricsTextfile
	}
	return os.Getenv("REACH_METRICS_TEXTFILE")
}

// orchestrator builds the orchestrator for the loaded config
func (a *App) orchestrator() (*reachctl.Orchestrator, func(), error) {
	rt, closeRuntime, err := a.NewRuntime(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if closeRuntime != nil {
			_ = closeRuntime()
		}
	}

	container := reachctl.NewContainerSupervisor(rt, a.cfg.ContainerSpec(), a.cfg.BuildSpec())
	container.StopTimeout = a.cfg.Timings.ContainerStop
	container.BuildOutput = a.Stderr

	postStart, readiness := a.cfg.PollPlans()
	opts := []reachctl.Option{
		reachctl.WithLogger(a.logger),
		reachctl.WithMetrics(a.metrics),
		reachctl.WithPollPlans(postStart, readiness),
		reachctl.WithSettle(a.cfg.Timings.NativeStopSettle, a.cfg.Timings.NativeStartSettle, reachctl.DefaultSettleTick),
		reachctl.WithDiagnostics(a.Stderr, reachctl.DefaultLogTail),
	}
	opts = append(opts, a.Options...)

	return reachctl.NewOrchestrator(a.NewNative(a.cfg), container, a.cfg.Endpoint(), opts...), closeFn, nil
}

// outputJSON prints v as indented JSON
func (a *App) outputJSON(v any) error {
	enc := json.NewEncoder(a.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// painter colors status words only when stdout is a terminal
func (a *App) painter() reachctl.Painter {
	f, ok := a.Stdout.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(f.Fd())) {
		return reachctl.PlainPainter
	}
	return reachctl.ANSIPainter
}
