package commands

import (
	"fmt"

	"sales-ledger/internal/auth"

	"github.com/spf13/cobra"
)

var (
	userName     string
	userUsername string
	userPhone    string
	userPassword string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage staff accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a staff account",
	Long: `Create a staff account. Use this for the first admin instead of opening
ALLOW_REGISTRATION.

Example:
  ledgerctl user create --username admin --name "Admin" --password '...' --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openLedger()
		if err != nil {
			return err
		}
		accounts := auth.NewAccounts(db, cfg.Auth.Secret, cfg.Auth.TokenTTL)
		user, err := accounts.Register(cmd.Context(), auth.RegisterInput{
			Name:     userName,
			Username: userUsername,
			Phone:    userPhone,
			Password: userPassword,
			Role:     auth.Role(userRole),
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(user)
		}
		fmt.Printf("created user %d (%s, %s)\n", user.ID, user.Username, user.Role)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "Login name")
	userCreateCmd.Flags().StringVar(&userPhone, "phone", "", "Phone number")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password (6+ characters)")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(auth.RoleAdmin), "admin, sales, marketer or mandobe")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}
