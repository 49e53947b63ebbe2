package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidshare/vidshare/internal/api"
	"github.com/vidshare/vidshare/internal/geocode"
)

var commentsCmd = &cobra.Command{
	Use:   "comments <videoId>",
	Short: "List a video's comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")

		result, err := apiClient().ListComments(cmd.Context(), id, page, size)
		if err != nil {
			return err
		}
		if len(result.Content) == 0 {
			fmt.Println("no comments")
			return nil
		}
		for _, c := range result.Content {
			name := c.Username
			if name == "" {
				name = fmt.Sprintf("user %d", c.UserID)
			}
			fmt.Printf("[%s] %s\n", name, c.Text)
		}
		fmt.Printf("page %d of %d (%d total)\n", result.Number+1, result.TotalPages, result.TotalElements)
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <videoId> <text>",
	Short: "Post a comment on a video",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		text := ""
		for i, word := range args[1:] {
			if i > 0 {
				text += " "
			}
			text += word
		}

		req := api.CreateCommentRequest{Text: text}
		if here, _ := cmd.Flags().GetBool("here"); here {
			attachLocation(cmd, &req)
		}

		created, err := apiClient().CreateComment(cmd.Context(), id, req)
		if err != nil {
			return err
		}
		fmt.Printf("comment #%d posted\n", created.ID)
		return nil
	},
}

// attachLocation annotates the comment with the caller's approximate
// location. Lookup failure degrades to a plain comment.
func attachLocation(cmd *cobra.Command, req *api.CreateCommentRequest) {
	resolver := geocode.New()
	place, err := resolver.LocationFromIP(cmd.Context())
	if err != nil {
		fmt.Println("could not determine location, posting without it")
		return
	}
	req.Latitude = &place.Latitude
	req.Longitude = &place.Longitude
	if named, err := resolver.ReverseGeocode(cmd.Context(), place.Latitude, place.Longitude); err == nil {
		req.LocationName = named.DisplayName
	} else if place.City != "" {
		req.LocationName = place.City
	}
}

var remainingCmd = &cobra.Command{
	Use:   "remaining <videoId>",
	Short: "Show how many comments a video has",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		n, err := apiClient().RemainingComments(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("%d comments\n", n)
		return nil
	},
}

func init() {
	commentsCmd.Flags().Int("page", 0, "zero-based page number")
	commentsCmd.Flags().Int("size", 10, "page size")
	commentCmd.Flags().Bool("here", false, "attach your approximate location to the comment")
	rootCmd.AddCommand(commentsCmd, commentCmd, remainingCmd)
}
