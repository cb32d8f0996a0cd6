package cli

import (
	"strings"

	"github.com/spf13/cobra"

	apperrors "tradestein/internal/errors"
	"tradestein/internal/models"
)

func newUserCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Profile, token and subscription management",
	}

	cmd.AddCommand(newUserCreateCmd(app))
	cmd.AddCommand(newUserListCmd(app))
	cmd.AddCommand(newUserProfileCmd(app))
	cmd.AddCommand(newUserTokenCmd(app))
	cmd.AddCommand(newUserSubscriptionCmd(app))
	return cmd
}

func newUserCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Register a profile",
		Long:  "Register a profile. New profiles start with an inactive subscription.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			authSvc, err := app.Auth()
			if err != nil {
				return err
			}
			username, _ := cmd.Flags().GetString("username")
			p, err := authSvc.Register(ctx, args[0], username)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(p)
			}
			output.Success("✓ Profile created")
			output.Printf("  ID:     %s\n", p.ID)
			output.Printf("  Email:  %s\n", p.Email)
			output.Printf("  Status: %s\n", p.SubscriptionStatus)
			return nil
		},
	}
	cmd.Flags().String("username", "", "display name")
	return cmd
}

func newUserListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			st, err := app.Store()
			if err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			profiles, err := st.ListProfiles(ctx, models.SubscriptionStatus(status))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(profiles)
			}
			if len(profiles) == 0 {
				output.Info("No profiles. Create one with 'tradestein user create <email>'.")
				return nil
			}
			table := NewTable(output, "ID", "Email", "Username", "Status", "Created")
			for _, p := range profiles {
				table.AddRow(p.ID, p.Email, orDash(p.Username), statusCell(output, p.SubscriptionStatus), FormatDateTime(p.CreatedAt))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("status", "", "only list profiles with this subscription status")
	return cmd
}

func newUserProfileCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the selected profile",
		Long: `Show the selected profile, or change its username, bio or avatar.
An empty value clears the field.`,
		Example: `  tradestein user profile --bio "Index futures, mornings only"
  tradestein user profile --avatar-url ""`,
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

			var update models.ProfileUpdate
			for flag, field := range map[string]**string{
				"username":   &update.Username,
				"bio":        &update.Bio,
				"avatar-url": &update.AvatarURL,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					*field = &v
				}
			}

			var p *models.Profile
			if update.Empty() {
				p, err = st.GetProfile(ctx, userID)
			} else {
				if err := app.Validator.ValidateProfileUpdate(update); err != nil {
					return err
				}
				p, err = st.UpdateProfile(ctx, userID, update)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(p)
			}
			if !update.Empty() {
				output.Success("✓ Profile updated")
			}
			output.Printf("  Email:    %s\n", p.Email)
			output.Printf("  Username: %s\n", orDash(p.Username))
			output.Printf("  Bio:      %s\n", orDash(p.Bio))
			output.Printf("  Avatar:   %s\n", orDash(p.AvatarURL))
			output.Printf("  Status:   %s\n", p.SubscriptionStatus)
			return nil
		},
	}
	cmd.Flags().String("username", "", "display name")
	cmd.Flags().String("bio", "", "short bio")
	cmd.Flags().String("avatar-url", "", "http(s) avatar image")
	return cmd
}

func newUserTokenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the selected profile",
		Long: `Issue a bearer token for the API. The token is shown once; only its
hash is stored.`,
		Example: `  tradestein user token --user me@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			authSvc, err := app.Auth()
			if err != nil {
				return err
			}
			token, expires, err := authSvc.IssueToken(ctx, userID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"token":      token,
					"expires_at": expires,
				})
			}
			output.Println(token)
			output.Dim("Expires %s. Store it now; it cannot be shown again.", FormatDateTime(expires))
			return nil
		},
	}
}

func newUserSubscriptionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription [active|inactive|cancelled]",
		Short: "Show or set the subscription status",
		Example: `  tradestein user subscription --user me@example.com
  tradestein user subscription active --user me@example.com --id sub_123`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd)
			defer cancel()

			userID, err := app.UserID(ctx, cmd)
			if err != nil {
				return err
			}
			authSvc, err := app.Auth()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				status := models.SubscriptionStatus(strings.ToLower(args[0]))
				if !status.Valid() {
					return apperrors.NewValidationError("status", args[0], "must be active, inactive or cancelled")
				}
				subID, _ := cmd.Flags().GetString("id")
				if err := authSvc.SetSubscription(ctx, userID, status, subID); err != nil {
					return err
				}
			}

			p, err := authSvc.Profile(ctx, userID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"profile": p,
					"status":  p.SubscriptionStatus,
					"active":  p.IsActive(),
				})
			}
			output.Printf("%s  %s\n", p.Email, statusCell(output, p.SubscriptionStatus))
			if p.SubscriptionID != "" {
				output.Dim("Subscription %s", p.SubscriptionID)
			}
			return nil
		},
	}
	cmd.Flags().String("id", "", "billing subscription id to record")
	return cmd
}

func statusCell(o *Output, s models.SubscriptionStatus) string {
	if s == models.SubscriptionActive {
		return o.Green(string(s))
	}
	return o.Yellow(string(s))
}
