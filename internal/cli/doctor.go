package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newDoctorCmd(app *App) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check ordering and containment consistency of the database",
		Long: "Reports rank rows of deleted entities, shared ranks, orphaned sections and tasks filed\n" +
			"in a section outside their project. --fix prunes rank rows of deleted entities.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			report, err := st.Doctor(cmd.Context(), fix)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := writeOut(cmd, app, report); err != nil {
				return err
			}
			if report.HasErrors() {
				return errors.New("doctor found errors")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Prune rank rows of missing or deleted entities")
	return cmd
}
