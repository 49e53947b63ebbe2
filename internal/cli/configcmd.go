package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vidshare/vidshare/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the stored client settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settings()
		fmt.Println("server:", config.NormalizeServerAddress(s.ServerAddress))
		fmt.Println("api:   ", s.APIBaseURL())
		fmt.Println("ws:    ", s.WSURL())
		if s.AccessToken != "" {
			fmt.Println("logged in as:", s.DisplayName)
		} else {
			fmt.Println("not logged in")
		}
		return nil
	},
}

var configServerCmd = &cobra.Command{
	Use:   "server <address>",
	Short: "Set the backend server address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		normalized := config.NormalizeServerAddress(args[0])
		viper.Set(serverAddressKey, normalized)
		if err := saveConfig(); err != nil {
			return err
		}
		fmt.Println("server set to", normalized)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configServerCmd)
	rootCmd.AddCommand(configCmd)
}
