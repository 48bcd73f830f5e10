package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindsprint/internal/users"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var (
	newUser users.NewUser
	asAdmin bool
)

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if asAdmin {
			newUser.Role = users.RoleAdmin
		}
		a, err := openApp(cmd.Context(), cfg, lggr)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.users.Create(cmd.Context(), newUser)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", u.Username, u.Role, u.ID)
		return nil
	},
}

func init() {
	f := userAddCmd.Flags()
	f.StringVarP(&newUser.Username, "username", "u", "", "login name")
	f.StringVarP(&newUser.Password, "password", "p", "", "password")
	f.StringVar(&newUser.Email, "email", "", "email address")
	f.BoolVar(&asAdmin, "admin", false, "grant the admin role")
	_ = userAddCmd.MarkFlagRequired("username")
	_ = userAddCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userAddCmd)
}
