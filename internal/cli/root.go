package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"planner/internal/action"
	"planner/internal/config"
	"planner/internal/format"
	"planner/internal/logging"
	"planner/internal/perm"
	"planner/internal/store"
	"planner/internal/worker"
)

type App struct {
	ConfigPath string
	PrettyJSON bool
	Format     string
	InProcess  bool

	cfg       *config.Config
	log       *logrus.Logger
	logCloser io.Closer
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "planner",
		Short:        "Planner: tasks, projects and areas with manual ordering",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Edit a task (shortcut for: planner edit <task-id>)
  planner task-3f9c...

  # Send one action through a worker
  planner call task.create '{"title":"Buy milk"}'

  # Ordered tasks of a list
  planner list today --format text
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(app.ConfigPath, cmd.Flags())
		if err != nil {
			return writeErr(cmd, err)
		}
		log, closer, err := logging.New(logging.Options{
			Level:  cfg.LogLevel,
			File:   cfg.LogFile,
			Stderr: cmd.ErrOrStderr(),
		})
		if err != nil {
			return writeErr(cmd, err)
		}
		app.cfg, app.log, app.logCloser = cfg, log, closer
		return nil
	}

	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.logCloser != nil {
			return app.logCloser.Close()
		}
		return nil
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.ConfigPath, "config", envOr("PLANNER_CONFIG", ""), "Config file (default $PLANNER_HOME/config.yaml)")
	pf.String("db", "", "SQLite database path (overrides db_path)")
	pf.String("log-level", "", "Log level: debug|info|warn|error")
	pf.String("log-file", "", "Write JSON logs to this rotating file instead of stderr")
	pf.Duration("timeout", 0, "Per-request timeout when talking to a worker")
	pf.String("listen", "", "Listen address for `planner serve`")
	pf.BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	pf.StringVar(&app.Format, "format", envOr("PLANNER_FORMAT", "json"), "Output format (json|text)")
	pf.BoolVar(&app.InProcess, "inprocess", false, "Run the dispatcher in this process instead of spawning a worker")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newWorkerCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newMCPCmd(app))
	cmd.AddCommand(newCallCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newSidebarCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newDoctorCmd(app))

	return cmd
}

func (app *App) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, app.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", app.cfg.DBPath, err)
	}
	return st, nil
}

// dispatcher builds the action boundary over st trusting the configured senders.
func (app *App) dispatcher(st *store.Store) *action.Dispatcher {
	return app.dispatcherFor(st, perm.NewPolicy(app.cfg.TrustedSenders...))
}

// originDispatcher trusts allowed_origins only. Over HTTP the sender is a
// client-supplied Origin header, so local sender names must not pass.
func (app *App) originDispatcher(st *store.Store) *action.Dispatcher {
	return app.dispatcherFor(st, perm.NewPolicy(app.cfg.AllowedOrigins...))
}

func (app *App) dispatcherFor(st *store.Store, policy perm.Policy) *action.Dispatcher {
	return action.NewPlanner(st, action.Options{Policy: policy, Logger: app.log})
}

// caller returns the transport used by client commands: a spawned `planner worker`, or
// the dispatcher in-process with --inprocess. The returned func releases it.
func (app *App) caller(ctx context.Context, sender string) (worker.Caller, func() error, error) {
	if app.InProcess {
		st, err := app.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return worker.Local{Dispatcher: app.dispatcher(st), Sender: sender}, st.Close, nil
	}
	client, err := worker.StartProcess(ctx, worker.ProcessOptions{
		ClientOptions: worker.ClientOptions{Timeout: app.cfg.RequestTimeout, Logger: app.log},
		Args:          app.workerArgs(),
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// workerArgs forwards the resolved settings so the worker opens the same database.
func (app *App) workerArgs() []string {
	args := []string{"--db", app.cfg.DBPath, "--log-level", app.cfg.LogLevel}
	if app.ConfigPath != "" {
		args = append(args, "--config", app.ConfigPath)
	}
	if app.cfg.LogFile != "" {
		args = append(args, "--log-file", app.cfg.LogFile)
	}
	return args
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	var ae *action.Error
	if errors.As(err, &ae) && len(ae.Details) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", ae.Error(), ae.Details)
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
