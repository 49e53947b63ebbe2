package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vidshare/vidshare/internal/api"
	"github.com/vidshare/vidshare/internal/validate"
	"github.com/vidshare/vidshare/internal/watchparty"
)

var partyCmd = &cobra.Command{
	Use:   "party",
	Short: "Host or join a synchronized watch party",
}

// terminalNavigator renders navigation side effects as terminal output; the
// CLI has no player to open, so it prints the stream URL instead.
type terminalNavigator struct {
	client *api.Client
}

func (n terminalNavigator) OpenVideo(videoID int64) {
	fmt.Printf("\n>>> now playing: %s\n", n.client.StreamURL(videoID))
}

func (n terminalNavigator) OpenLobby() {
	fmt.Println("\n>>> back to the watch-party lobby")
}

var partyHostCmd = &cobra.Command{
	Use:   "host",
	Short: "Create a room and control playback for everyone in it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _, err := currentIdentity()
		if err != nil {
			return err
		}
		client := apiClient()

		roomID, err := client.CreateRoom(cmd.Context())
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}

		coord := newCoordinator(client)
		if err := coord.Connect(cmd.Context(), roomID, userID, true); err != nil {
			return err
		}
		defer coord.ForceDisconnect()

		fmt.Printf("room %s is open — share this code\n", roomID)
		fmt.Println("commands: start <videoId>, leave")

		go printMessages(coord)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "start":
				if len(fields) != 2 {
					fmt.Println("usage: start <videoId>")
					continue
				}
				videoID, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil || videoID <= 0 {
					fmt.Println("usage: start <videoId>")
					continue
				}
				coord.PlayVideo(videoID)
				fmt.Printf(">>> now playing: %s\n", client.StreamURL(videoID))
				// keep-alive holds the channel open for the room; the
				// teardown fires once the window expires
				coord.Disconnect()
				waitDisconnected(coord)
				return nil
			case "leave", "quit", "exit":
				coord.ForceDisconnect()
				return nil
			default:
				fmt.Println("commands: start <videoId>, leave")
			}
		}
		return scanner.Err()
	},
}

var partyJoinCmd = &cobra.Command{
	Use:   "join <roomId>",
	Short: "Join a room and follow its playback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validate.RoomID(args[0]) {
			return fmt.Errorf("%q does not look like a room code (expected WP-XXXXXX)", args[0])
		}
		userID, _, err := currentIdentity()
		if err != nil {
			return err
		}
		client := apiClient()

		coord := newCoordinator(client)
		if err := coord.Connect(cmd.Context(), args[0], userID, false); err != nil {
			return err
		}
		defer coord.ForceDisconnect()

		fmt.Printf("joined room %s — waiting for the host (type leave to quit)\n", args[0])

		go printMessages(coord)

		input := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				input <- strings.TrimSpace(scanner.Text())
			}
			close(input)
		}()

		for {
			select {
			case connected := <-coord.ConnectionStatus():
				if !connected {
					return nil
				}
			case line, ok := <-input:
				if !ok || line == "leave" || line == "quit" || line == "exit" {
					coord.ForceDisconnect()
					return nil
				}
			}
		}
	},
}

func newCoordinator(client *api.Client) *watchparty.Coordinator {
	return watchparty.New(wsDialer(), client, terminalNavigator{client: client}, func() string {
		return viper.GetString(accessTokenKey)
	}, watchparty.Options{})
}

func printMessages(coord *watchparty.Coordinator) {
	for msg := range coord.Messages() {
		fmt.Println("*", msg)
	}
}

func waitDisconnected(coord *watchparty.Coordinator) {
	for connected := range coord.ConnectionStatus() {
		if !connected {
			return
		}
	}
}

func init() {
	partyCmd.AddCommand(partyHostCmd, partyJoinCmd)
	rootCmd.AddCommand(partyCmd)
}
