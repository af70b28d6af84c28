package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"planner/internal/config"
)

const defaultConfigYAML = `# planner configuration. Every key can also be set as PLANNER_<KEY>.
# db_path: ~/.planner/planner.sqlite
log_level: info
request_timeout: 5s
autosave:
  text_debounce: 450ms
  structural_debounce: 120ms
trusted_senders: [ui, mcp]
`

func newInitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file and database if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.cfg.File
			created := false
			if path == "" {
				home, err := config.Home()
				if err != nil {
					return writeErr(cmd, err)
				}
				path = filepath.Join(home, config.FileName)
			}
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return writeErr(cmd, err)
				}
				if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
					return writeErr(cmd, fmt.Errorf("write config: %w", err))
				}
				created = true
			}

			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := st.Close(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"config_file":    path,
				"config_created": created,
				"db_path":        app.cfg.DBPath,
			})
		},
	}
}
