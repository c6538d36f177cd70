package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockroom/internal/auth"
	"stockroom/internal/config"
	"stockroom/internal/store"
	"stockroom/internal/types"
)

var (
	userPassword string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Create an account",
	Long: `Creates an account. The role defaults to what the configured admin
list derives for the username; pass --role to override.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runUserList,
}

var userRoleCmd = &cobra.Command{
	Use:   "set-role [username] [role]",
	Short: "Change an account's role (admin or member)",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserSetRole,
}

func init() {
	userAddCmd.Flags().StringVarP(&userPassword, "password", "p", "", "account password (required)")
	userAddCmd.Flags().StringVarP(&userRole, "role", "r", "", "role override: admin or member")
	_ = userAddCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userRoleCmd)
}

func openManager() (*store.Store, *auth.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	am := auth.NewManager(st, logger, auth.Options{
		SessionTTL:     cfg.Auth.SessionTTLDuration(),
		EmailDomain:    cfg.Auth.EmailDomain,
		AdminUsernames: cfg.Auth.AdminUsernames,
	})
	return st, am, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	st, am, err := openManager()
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := am.Register(cmd.Context(), args[0], userPassword, types.Role(userRole))
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s) role=%s\n", user.Username, user.Email, user.Role)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, _, err := openManager()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%-24s %-8s %s\n", u.Username, u.Role, u.Email)
	}
	fmt.Printf("%d account(s)\n", len(users))
	return nil
}

func runUserSetRole(cmd *cobra.Command, args []string) error {
	role := types.Role(args[1])
	if !role.Valid() {
		return fmt.Errorf("unknown role %q (want admin or member)", args[1])
	}

	st, _, err := openManager()
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := st.GetUserByUsername(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := st.SetUserRole(cmd.Context(), user.ID, role); err != nil {
		return err
	}
	fmt.Printf("%s is now %s\n", user.Username, role)
	return nil
}
