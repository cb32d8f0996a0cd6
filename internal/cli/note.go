package cli

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

func newNoteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Replay notes",
		Long:  "Free-form replay notes, listed most recently edited first.",
	}

	cmd.AddCommand(newNoteAddCmd(app))
	cmd.AddCommand(newNoteListCmd(app))
	cmd.AddCommand(newNoteShowCmd(app))
	cmd.AddCommand(newNoteEditCmd(app))
	cmd.AddCommand(newNoteDeleteCmd(app))
	return cmd
}

// noteContent reads --content, or the named file when --file is given.
// "-" reads standard input.
func noteContent(cmd *cobra.Command) (string, bool, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		var raw []byte
		var err error
		if path == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(path)
		}
		if err != nil {
			return "", false, apperrors.NewValidationError("file", path, err.Error())
		}
		return strings.TrimRight(string(raw), " \t\r\n"), true, nil
	}
	content, _ := cmd.Flags().GetString("content")
	return strings.TrimRight(content, " \t\r\n"), cmd.Flags().Changed("content"), nil
}

func newNoteAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add [title]",
		Short:   "Write a note",
		Example: `  tradestein note add "FOMC replay" --content "Faded the first spike, should have waited."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			content, _, err := noteContent(cmd)
			if err != nil {
				return err
			}
			note := models.Note{
				UserID:  userID,
				Title:   strings.TrimSpace(strings.Join(args, " ")),
				Content: content,
			}
			if err := app.Validator.ValidateNote(note); err != nil {
				return err
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.CreateNote(ctx, &note); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(note)
			}
			output.Success("✓ Note saved: %s", note.DisplayTitle())
			output.Dim("ID %s", note.ID)
			return nil
		},
	}
	cmd.Flags().String("content", "", "note body")
	cmd.Flags().String("file", "", "read the body from a file, - for stdin")
	return cmd
}

func newNoteListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List notes, newest edit first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			notes, err := st.ListNotes(ctx, userID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"notes": notes})
			}
			if len(notes) == 0 {
				output.Info("No notes yet.")
				return nil
			}

			table := NewTable(output, "Title", "Preview", "Updated", "ID")
			for _, n := range notes {
				preview := strings.Join(strings.Fields(n.Content), " ")
				table.AddRow(TruncateString(n.DisplayTitle(), 30), TruncateString(preview, 50),
					FormatDateTime(n.UpdatedAt), shortID(n.ID))
			}
			table.Render()
			return nil
		},
	}
}

func newNoteShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			note, err := st.GetNote(ctx, userID, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(note)
			}
			output.Bold("%s", note.DisplayTitle())
			output.Dim("Edited %s", FormatDateTime(note.UpdatedAt))
			output.Println()
			output.Println(note.Content)
			return nil
		},
	}
}

func newNoteEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a note's title or body",
		Long:  "Change a note's title or body. Flags that are not given keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			note, err := st.GetNote(ctx, userID, args[0])
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("title") {
				title, _ := cmd.Flags().GetString("title")
				note.Title = strings.TrimSpace(title)
			}
			content, changed, err := noteContent(cmd)
			if err != nil {
				return err
			}
			if changed {
				note.Content = content
			}
			if err := app.Validator.ValidateNote(*note); err != nil {
				return err
			}

			note, err = st.UpdateNote(ctx, userID, note.ID, note.Title, note.Content)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(note)
			}
			output.Success("✓ Note updated: %s", note.DisplayTitle())
			return nil
		},
	}
	cmd.Flags().String("title", "", "new title")
	cmd.Flags().String("content", "", "new body")
	cmd.Flags().String("file", "", "read the new body from a file, - for stdin")
	return cmd
}

func newNoteDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.DeleteNote(ctx, userID, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Note %s deleted", args[0])
			return nil
		},
	}
}
