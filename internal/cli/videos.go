package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidshare/vidshare/internal/api"
)

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "List the video catalogue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		videos, err := apiClient().ListVideos(cmd.Context())
		if err != nil {
			return err
		}
		if len(videos) == 0 {
			fmt.Println("no videos yet")
			return nil
		}
		for _, v := range videos {
			fmt.Printf("%6d  %-40s  %d views, %d likes\n", v.ID, truncate(v.Title, 40), v.ViewsCount, v.LikesCount)
		}
		return nil
	},
}

var videoCmd = &cobra.Command{
	Use:   "video <id>",
	Short: "Show one video's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		client := apiClient()
		v, err := client.GetVideo(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("#%d %s\n", v.ID, v.Title)
		if v.Description != "" {
			fmt.Println(v.Description)
		}
		if len(v.Tags) > 0 {
			fmt.Println("tags:", strings.Join(v.Tags, ", "))
		}
		if v.Location != "" {
			fmt.Println("location:", v.Location)
		}
		fmt.Printf("%d views, %d likes", v.ViewsCount, v.LikesCount)
		if v.LikedByCurrentUser {
			fmt.Print(" (you liked this)")
		}
		fmt.Println()
		fmt.Println("stream:", client.StreamURL(v.ID))
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <video-file> <thumbnail-file>",
	Short: "Upload a video with its thumbnail",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			return fmt.Errorf("--title is required")
		}
		description, _ := cmd.Flags().GetString("description")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		location, _ := cmd.Flags().GetString("location")

		created, err := apiClient().UploadVideo(cmd.Context(), api.UploadRequest{
			Title:       title,
			Description: description,
			Tags:        tags,
			Location:    location,
		}, args[1], args[0])
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		fmt.Printf("uploaded video #%d %q\n", created.ID, created.Title)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one of your videos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		if err := apiClient().DeleteVideo(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("deleted video #%d\n", id)
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <id>",
	Short: "Like a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		if err := apiClient().LikeVideo(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("liked video #%d\n", id)
		return nil
	},
}

var unlikeCmd = &cobra.Command{
	Use:   "unlike <id>",
	Short: "Remove your like from a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseVideoID(args[0])
		if err != nil {
			return err
		}
		if err := apiClient().UnlikeVideo(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("removed like from video #%d\n", id)
		return nil
	},
}

func parseVideoID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid video id %q", arg)
	}
	return id, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func init() {
	uploadCmd.Flags().String("title", "", "video title (required)")
	uploadCmd.Flags().String("description", "", "video description")
	uploadCmd.Flags().StringSlice("tags", nil, "comma-separated tags")
	uploadCmd.Flags().String("location", "", "location label")
	rootCmd.AddCommand(videosCmd, videoCmd, uploadCmd, deleteCmd, likeCmd, unlikeCmd)
}
