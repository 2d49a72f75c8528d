package commands

import (
	"context"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"srcapp/internal/models"
	"srcapp/internal/observability"
	"srcapp/internal/services"
	contextutils "srcapp/internal/utils"

	"github.com/spf13/cobra"
)

// readPassword prompts on stdout and reads a password without echo.
// Replaced in tests.
var readPassword = func(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UserCommands returns the user management commands
func UserCommands(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for the SRC portal.

Available commands:
  list           - List all users
  create         - Create a user
  set-role       - Change a user's role
  reset-password - Reset password for a specific user
  delete         - Delete a user`,
	}

	userCmd.AddCommand(listCmd(userService, logger))
	userCmd.AddCommand(createCmd(userService, logger))
	userCmd.AddCommand(setRoleCmd(userService, logger))
	userCmd.AddCommand(resetPasswordCmd(userService, logger))
	userCmd.AddCommand(deleteUserCmd(userService, logger))

	return userCmd
}

func listCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			users, err := userService.GetAllUsers(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to get users", err, nil)
				return contextutils.WrapError(err, "failed to get users")
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}

			fmt.Fprintf(out, "%-5s %-20s %-25s %-30s %-12s %-10s\n", "ID", "Username", "Name", "Email", "Role", "Created")
			fmt.Fprintln(out, strings.Repeat("-", 105))
			for i := range users {
				user := &users[i]
				email := "N/A"
				if user.Email.Valid {
					email = user.Email.String
				}
				fmt.Fprintf(out, "%-5d %-20s %-25s %-30s %-12s %-10s\n",
					user.ID,
					user.Username,
					user.FullName(),
					email,
					user.Role,
					user.CreatedAt.Format("2006-01-02"),
				)
			}
			return nil
		},
	}
}

func createCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	var role, firstName, lastName, email string

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Long:  `Create a user with the given role. The password is prompted for.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			parsed, ok := models.ParseRole(role)
			if !ok {
				return contextutils.ErrorWithContextf("unknown role %q", role)
			}

			password, err := promptNewPassword(cmd)
			if err != nil {
				return err
			}

			user, err := userService.CreateUser(ctx, models.SystemActor(), services.CreateUserInput{
				Username:  strings.TrimSpace(args[0]),
				Password:  password,
				FirstName: strings.TrimSpace(firstName),
				LastName:  strings.TrimSpace(lastName),
				Email:     strings.TrimSpace(email),
				Role:      parsed,
			})
			if err != nil {
				logger.Error(ctx, "Failed to create user", err, map[string]interface{}{"username": args[0]})
				return contextutils.WrapErrorf(err, "failed to create user '%s'", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created user '%s' (ID: %d) as %s\n", user.Username, user.ID, user.Role.Label())
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(models.RoleMember), "role: super_admin, admin, member or student")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func setRoleCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <username> <role>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			role, ok := models.ParseRole(args[1])
			if !ok {
				return contextutils.ErrorWithContextf("unknown role %q", args[1])
			}

			user, err := lookupUser(ctx, userService, args[0])
			if err != nil {
				return err
			}

			updated, err := userService.UpdateUserRole(ctx, models.SystemActor(), user.ID, role)
			if err != nil {
				logger.Error(ctx, "Failed to update role", err, map[string]interface{}{"username": user.Username, "role": role})
				return contextutils.WrapErrorf(err, "failed to update role for '%s'", user.Username)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.Username, updated.Role.Label())
			return nil
		},
	}
}

func resetPasswordCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [username]",
		Short: "Reset password for a user",
		Long:  `Reset the password for a specific user. If username is not provided, you will be prompted for it.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var username string
			if len(args) > 0 {
				username = args[0]
			} else {
				fmt.Fprint(cmd.OutOrStdout(), "Enter username: ")
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &username); err != nil {
					return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read username: %v", err)
				}
			}
			if strings.TrimSpace(username) == "" {
				return contextutils.ErrorWithContextf("username is required")
			}

			user, err := lookupUser(ctx, userService, username)
			if err != nil {
				return err
			}

			password, err := promptNewPassword(cmd)
			if err != nil {
				return err
			}

			if err := userService.UpdateUserPassword(ctx, user.ID, password); err != nil {
				logger.Error(ctx, "Failed to update password", err, map[string]interface{}{"username": user.Username, "user_id": user.ID})
				return contextutils.WrapErrorf(err, "failed to update password for user '%s'", user.Username)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Password reset for user '%s' (ID: %d)\n", user.Username, user.ID)
			return nil
		},
	}
}

func deleteUserCmd(userService services.UserServiceInterface, logger *observability.Logger) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user",
		Long:  `Delete a user. Feedback they submitted stays as a direct submission; items assigned to them go back to pending.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			user, err := lookupUser(ctx, userService, args[0])
			if err != nil {
				return err
			}
			if !yes {
				return contextutils.ErrorWithContextf("refusing to delete '%s' without --yes", user.Username)
			}

			if err := userService.DeleteUser(ctx, models.SystemActor(), user.ID); err != nil {
				logger.Error(ctx, "Failed to delete user", err, map[string]interface{}{"username": user.Username})
				return contextutils.WrapErrorf(err, "failed to delete user '%s'", user.Username)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user '%s'\n", user.Username)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

func lookupUser(ctx context.Context, userService services.UserServiceInterface, username string) (*models.User, error) {
	user, err := userService.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to get user '%s'", username)
	}
	if user == nil {
		return nil, contextutils.ErrorWithContextf("user '%s' not found", username)
	}
	return user, nil
}

func promptNewPassword(cmd *cobra.Command) (string, error) {
	password, err := readPassword(cmd, "Enter new password: ")
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
	}
	if password == "" {
		return "", contextutils.ErrorWithContextf("password cannot be empty")
	}

	confirm, err := readPassword(cmd, "Confirm new password: ")
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password confirmation: %v", err)
	}
	if password != confirm {
		return "", contextutils.ErrorWithContextf("passwords do not match")
	}
	return password, nil
}
