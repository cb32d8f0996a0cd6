package cli

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tradestein/internal/backup"
	"tradestein/internal/security"
)

func newBackupCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "CSV export and import of the journal",
		Long:  "Export the journal to CSV or import trades from a CSV backup. Requires an active subscription.",
	}

	cmd.AddCommand(newBackupExportCmd(app))
	cmd.AddCommand(newBackupImportCmd(app))
	return cmd
}

func (a *App) backupService() (*backup.Service, error) {
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	return backup.NewService(st, a.Validator, a.Config.Store.ImportBatchSize, a.Logger), nil
}

// gatedUser resolves the user and checks the subscription.
func (a *App) gatedUser(cmd *cobra.Command) (string, error) {
	ctx := cmd.Context()
	userID, err := a.UserID(ctx, cmd)
	if err != nil {
		return "", err
	}
	authSvc, err := a.Auth()
	if err != nil {
		return "", err
	}
	return userID, authSvc.RequireActive(ctx, userID)
}

func newBackupExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the journal as CSV",
		Example: `  tradestein backup export -o trades_backup.csv
  tradestein backup export > trades.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.gatedUser(cmd)
			if err != nil {
				return err
			}
			svc, err := app.backupService()
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			var buf *bufio.Writer
			path, _ := cmd.Flags().GetString("output")
			if path != "" {
				f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
				if err != nil {
					return err
				}
				defer f.Close()
				buf = bufio.NewWriter(f)
				w = buf
			}

			n, err := svc.Export(ctx, userID, w)
			if err == nil && buf != nil {
				err = buf.Flush()
			}
			app.Audit().LogBackup(ctx, security.AuditTradesExported, userID, n, err)
			if err != nil {
				return err
			}
			if path != "" {
				NewOutput(cmd).Success("✓ Exported %d trades to %s", n, path)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "file to write (default: stdout)")
	return cmd
}

func newBackupImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import trades from a CSV backup",
		Long: `Import trades from a CSV backup. Rows are normalised like manual entries;
rows without a date or with invalid fields are skipped and reported. Rows
carrying an id already in the journal replace that trade.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.gatedUser(cmd)
			if err != nil {
				return err
			}
			svc, err := app.backupService()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := svc.Import(ctx, userID, io.LimitReader(f, backup.MaxImportBytes))
			rows := 0
			if res != nil {
				rows = res.Imported
			}
			app.Audit().LogBackup(ctx, security.AuditTradesImported, userID, rows, err)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Success("✓ Imported %d of %d rows", res.Imported, res.Rows)
			for _, s := range res.Skipped {
				output.Warning("  line %d: %s", s.Line, s.Reason)
			}
			return nil
		},
	}
}
