package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tradestein/internal/analytics"
	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

func newGoalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Personal trading goals",
	}

	cmd.AddCommand(newGoalAddCmd(app))
	cmd.AddCommand(newGoalListCmd(app))
	cmd.AddCommand(newGoalProgressCmd(app))
	cmd.AddCommand(newGoalDeleteCmd(app))
	return cmd
}

func newGoalAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add <title>",
		Short:   "Create a goal",
		Example: `  tradestein goal add "Journal every trade" --deadline 2026-12-31`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			description, _ := cmd.Flags().GetString("description")
			deadline, _ := cmd.Flags().GetString("deadline")
			goal := models.Goal{
				UserID:      userID,
				Title:       strings.TrimSpace(strings.Join(args, " ")),
				Description: strings.TrimSpace(description),
				Deadline:    strings.TrimSpace(deadline),
			}
			if err := app.Validator.ValidateGoal(goal); err != nil {
				return err
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.CreateGoal(ctx, &goal); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(goal)
			}
			output.Success("✓ Goal created: %s", goal.Title)
			output.Dim("ID %s", goal.ID)
			return nil
		},
	}
	cmd.Flags().String("description", "", "longer description")
	cmd.Flags().String("deadline", "", "deadline YYYY-MM-DD")
	return cmd
}

func newGoalListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals with progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			sortBy, _ := cmd.Flags().GetString("sort")
			sort := models.GoalSort(sortBy)
			if sort != models.GoalSortDeadline && sort != models.GoalSortProgress {
				return apperrors.NewValidationError("sort", sortBy, "must be deadline or progress")
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			goals, err := st.ListGoals(ctx, userID, sort)
			if err != nil {
				return err
			}
			stats := analytics.SummarizeGoals(goals)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"goals": goals, "stats": stats})
			}
			if len(goals) == 0 {
				output.Info("No goals yet.")
				return nil
			}

			table := NewTable(output, "Title", "Deadline", "Progress", "", "ID")
			for _, g := range goals {
				progress := fmt.Sprintf("%d%%", g.Progress)
				if g.Completed {
					progress = output.Green("done")
				}
				table.AddRow(TruncateString(g.Title, 40), orDash(g.Deadline), progress,
					Bar(float64(g.Progress), 100, 20), shortID(g.ID))
			}
			table.Render()
			output.Println()
			output.Printf("%d goals, %d completed, average progress %d%%\n", stats.Total, stats.Completed, stats.AvgProgress)
			return nil
		},
	}
	cmd.Flags().String("sort", string(models.GoalSortDeadline), "order by deadline or progress")
	return cmd
}

func newGoalProgressCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <0-100>",
		Short: "Record progress on a goal",
		Long:  "Record progress on a goal. A goal is completed at 100.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			progress, err := strconv.Atoi(args[1])
			if err != nil {
				return apperrors.NewValidationError("progress", args[1], "must be an integer")
			}
			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			goal, err := st.UpdateGoalProgress(ctx, userID, args[0], progress)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(goal)
			}
			if goal.Completed {
				output.Success("✓ %s completed", goal.Title)
			} else {
				output.Printf("%s: %d%%\n", goal.Title, goal.Progress)
			}
			return nil
		},
	}
}

func newGoalDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a goal",
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
			if err := st.DeleteGoal(ctx, userID, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Goal %s deleted", args[0])
			return nil
		},
	}
}
