package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/vidshare/vidshare/internal/api"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		state, err := apiClient().Login(cmd.Context(), args[0], password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		viper.Set(accessTokenKey, state.AccessToken)
		viper.Set(displayNameKey, args[0])
		if err := saveConfig(); err != nil {
			return err
		}
		fmt.Printf("logged in as %s (token valid for %ds)\n", args[0], state.ExpiresIn)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup <username> <email>",
	Short: "Register a new account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		firstname, _ := cmd.Flags().GetString("firstname")
		lastname, _ := cmd.Flags().GetString("lastname")
		err = apiClient().Signup(cmd.Context(), api.SignupRequest{
			Username:        args[0],
			Email:           args[1],
			Password:        password,
			ConfirmPassword: confirm,
			Firstname:       firstname,
			Lastname:        lastname,
		})
		if err != nil {
			return fmt.Errorf("signup failed: %w", err)
		}
		fmt.Println("account created, now run `vidshare login`")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.Set(accessTokenKey, "")
		if err := saveConfig(); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	// piped input, e.g. tests
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	signupCmd.Flags().String("firstname", "", "first name")
	signupCmd.Flags().String("lastname", "", "last name")
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd)
}
