package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidshare/vidshare/internal/api"
	"github.com/vidshare/vidshare/internal/geocode"
)

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show videos trending near you",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := api.TrendingQuery{}
		q.RadiusKm, _ = cmd.Flags().GetInt("radius")
		q.Limit, _ = cmd.Flags().GetInt("limit")

		if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lng, _ := cmd.Flags().GetFloat64("lng")
			q.Latitude = &lat
			q.Longitude = &lng
		} else if here, _ := cmd.Flags().GetBool("here"); here {
			if place, err := geocode.New().LocationFromIP(cmd.Context()); err == nil {
				q.Latitude = &place.Latitude
				q.Longitude = &place.Longitude
			}
		}

		result, err := apiClient().LocalTrending(cmd.Context(), q)
		if err != nil {
			return err
		}
		if len(result.Videos) == 0 {
			fmt.Println("nothing trending in this area")
			return nil
		}
		where := result.LocationInfo.LocationName
		if where == "" && !result.LocationInfo.IsApproximated {
			where = fmt.Sprintf("%.3f, %.3f", result.LocationInfo.Latitude, result.LocationInfo.Longitude)
		}
		if where != "" {
			fmt.Printf("trending near %s:\n", where)
		}
		for i, v := range result.Videos {
			fmt.Printf("%2d. #%d %-40s score %.1f", i+1, v.ID, truncate(v.Title, 40), v.Score)
			if v.DistanceKm > 0 {
				fmt.Printf("  %.1f km away", v.DistanceKm)
			}
			fmt.Println()
		}
		return nil
	},
}

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "Show the platform-wide popularity ranking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		videos, err := apiClient().TopVideos(cmd.Context())
		if err != nil {
			return err
		}
		if len(videos) == 0 {
			fmt.Println("no ranking yet")
			return nil
		}
		for i, v := range videos {
			fmt.Printf("%2d. #%d %-40s %.1f (%d views, %d likes)\n",
				i+1, v.VideoID, truncate(v.Title, 40), v.PopularityScore, v.TotalViews, v.LikesCount)
		}
		return nil
	},
}

func init() {
	trendingCmd.Flags().Int("radius", 50, "search radius in kilometers")
	trendingCmd.Flags().Int("limit", 10, "maximum number of results")
	trendingCmd.Flags().Float64("lat", 0, "latitude override")
	trendingCmd.Flags().Float64("lng", 0, "longitude override")
	trendingCmd.Flags().Bool("here", false, "locate yourself by IP before querying")
	rootCmd.AddCommand(trendingCmd, popularCmd)
}
