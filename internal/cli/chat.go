package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vidshare/vidshare/internal/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat <videoId>",
	Short: "Join a video's live chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoID, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		_, username, err := currentIdentity()
		if err != nil {
			return err
		}

		client, err := chat.Join(cmd.Context(), wsDialer(), viper.GetString(accessTokenKey), videoID, username)
		if err != nil {
			return err
		}
		defer client.Close()

		fmt.Printf("joined chat for video %d as %s (type /quit to leave)\n", videoID, username)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Messages() {
				if msg.Username == username {
					continue
				}
				fmt.Printf("[%s] %s\n", msg.Username, msg.Text)
			}
		}()

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				break
			}
			if err := client.Send(line); err != nil {
				return err
			}
		}

		_ = client.Close()
		<-done
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
