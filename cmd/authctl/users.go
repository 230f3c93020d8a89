package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"learnauth/internal/model"
)

func newUsersCmd(a *app) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and administer accounts",
	}

	showCmd := &cobra.Command{
		Use:   "show <id|email>",
		Short: "Print an account's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			profile, err := a.users.Profile(cmd.Context(), user)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(profile)
		},
	}

	setRoleCmd := &cobra.Command{
		Use:   "set-role <id|email> <role>",
		Short: `Change an account's role ("user", "admin" or "super admin")`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := model.ParseRole(args[1])
			if err != nil {
				return err
			}
			user, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.users.SetRole(cmd.Context(), user.ID, role); err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d (%s) role: %s -> %s\n", user.ID, user.Email, user.Role, role)
			return nil
		},
	}

	setActiveCmd := &cobra.Command{
		Use:   "set-active <id|email> <true|false>",
		Short: "Enable or disable an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("active must be true or false: %w", err)
			}
			user, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.users.SetActive(cmd.Context(), user.ID, active); err != nil {
				return fmt.Errorf("set active: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d (%s) active: %t\n", user.ID, user.Email, active)
			return nil
		},
	}

	usersCmd.AddCommand(showCmd, setRoleCmd, setActiveCmd)
	return usersCmd
}

// lookup accepts a numeric id or an email address.
func (a *app) lookup(ctx context.Context, ref string) (*model.User, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return a.users.GetUser(ctx, uint(id))
	}
	return a.users.GetUserByEmail(ctx, ref)
}
