// Package cli is the vidshare command surface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vidshare/vidshare/internal/api"
	"github.com/vidshare/vidshare/internal/auth"
	"github.com/vidshare/vidshare/internal/config"
	"github.com/vidshare/vidshare/internal/realtime"
)

var cfgFile string

const (
	serverAddressKey = "server_address"
	accessTokenKey   = "access_token"
	displayNameKey   = "display_name"
)

var rootCmd = &cobra.Command{
	Use:           "vidshare",
	Short:         "Command-line client for the vidshare platform",
	Long:          "Browse videos, comment, chat, and host synchronized watch parties from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vidshare.yaml)")
	rootCmd.PersistentFlags().String("server", "", "backend server address (host, scheme and port are stripped)")
	_ = viper.BindPFlag(serverAddressKey, rootCmd.PersistentFlags().Lookup("server"))
	viper.SetDefault(serverAddressKey, "localhost")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".vidshare")
	}

	viper.SetEnvPrefix("VIDSHARE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "error reading config file:", err)
		}
	}
}

// settings materializes the persisted client settings from viper.
func settings() config.Settings {
	return config.Settings{
		ServerAddress: viper.GetString(serverAddressKey),
		AccessToken:   viper.GetString(accessTokenKey),
		DisplayName:   viper.GetString(displayNameKey),
	}
}

func apiClient() *api.Client {
	return api.New(settings().APIBaseURL(), func() string {
		return viper.GetString(accessTokenKey)
	})
}

func wsDialer() *realtime.WebSocketDialer {
	return &realtime.WebSocketDialer{URL: settings().WSURL()}
}

// currentIdentity decodes the stored token into a user id and display name.
func currentIdentity() (userID, username string, err error) {
	token := viper.GetString(accessTokenKey)
	if token == "" {
		return "", "", fmt.Errorf("not logged in; run `vidshare login` first")
	}
	claims, err := auth.ParseClaims(token)
	if err != nil {
		return "", "", fmt.Errorf("stored token is unreadable, log in again: %w", err)
	}
	if claims.IsExpired() {
		return "", "", fmt.Errorf("stored token has expired; run `vidshare login` again")
	}
	username = claims.Username
	if name := viper.GetString(displayNameKey); name != "" {
		username = name
	}
	return claims.UserID, username, nil
}

// saveConfig persists the current viper values to the config file, creating
// it on first use.
func saveConfig() error {
	if err := viper.WriteConfig(); err == nil {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("locate home directory: %w", err)
	}
	path := filepath.Join(home, ".vidshare.yaml")
	if cfgFile != "" {
		path = cfgFile
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
