package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"planner/internal/mcptools"
	"planner/internal/worker"
)

func newWorkerCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Serve action envelopes as JSON lines on stdin/stdout",
		Long: "Reads one request envelope per line on stdin and writes response envelopes on stdout.\n" +
			"Requests run concurrently; responses carry the request id. Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			app.log.WithField("db", app.cfg.DBPath).Debug("worker started")
			err = worker.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), app.dispatcher(st), worker.SenderUI, app.log)
			if err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Host the action boundary over websocket (/ws) and /healthz",
		Long: "Each websocket connection's Origin header is its sender; only allowed_origins\n" +
			"reach a handler.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			e := worker.NewHTTPServer(app.originDispatcher(st), app.log)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				app.log.WithField("listen", app.cfg.Listen).Info("serving")
				if err := e.Start(app.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return e.Shutdown(shutdownCtx)
			})
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newMCPCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose planner tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			caller := worker.Local{Dispatcher: app.dispatcher(st), Sender: mcptools.SenderMCP}
			srv := server.NewStdioServer(mcptools.NewServer(caller))
			err = srv.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}
