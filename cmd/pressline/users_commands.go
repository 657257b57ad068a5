package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pressline/internal/storeaccess"
	"pressline/internal/users"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage operators",
	}

	usersCmd.AddCommand(newUsersAddCommand(ctx))
	usersCmd.AddCommand(newUsersListCommand(ctx))

	return usersCmd
}

func newUsersAddCommand(ctx *commandContext) *cobra.Command {
	var in users.RegisterInput
	var role string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				password, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				in.Password = password
			}
			if in.Password == "" {
				in.Password = os.Getenv("PRESSLINE_USER_PASSWORD")
			}
			in.Role = users.Role(role)
			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				user, err := stack.Users.Register(c, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) as %s\n", user.Name, user.EmployeeID, user.Role)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in.Name, "name", "", "Display name")
	flags.StringVar(&in.EmployeeID, "employee-id", "", "Employee id (unique)")
	flags.StringVar(&in.Password, "password", "", "Password (or PRESSLINE_USER_PASSWORD)")
	flags.BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	flags.StringVar(&role, "role", string(users.RoleOperator), "operator, supervisor, or admin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("employee-id")
	return cmd
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(cmd, func(c context.Context, stack *storeaccess.Stack) error {
				found, err := stack.Users.List(c)
				if err != nil {
					return err
				}
				if asJSON {
					if found == nil {
						found = []*users.User{}
					}
					return writeJSON(cmd, found)
				}
				if len(found) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users")
					return nil
				}
				rows := make([][]string, 0, len(found))
				for _, user := range found {
					rows = append(rows, []string{
						user.EmployeeID,
						user.Name,
						humanLabel(string(user.Role)),
						user.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Employee", "Name", "Role", "Registered"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(string(data), "\r\n")
	if password == "" {
		return "", errors.New("read password: stdin was empty")
	}
	return password, nil
}
