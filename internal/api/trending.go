package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

type TrendingVideo struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	ThumbnailPath   string  `json:"thumbnailPath,omitempty"`
	ViewsCount      int64   `json:"viewsCount"`
	LikesCount      int64   `json:"likesCount"`
	Score           float64 `json:"score"`
	DistanceKm      float64 `json:"distanceKm,omitempty"`
	PopularityScore float64 `json:"popularityScore,omitempty"`
	Location        string  `json:"location,omitempty"`
}

type TrendingLocation struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LocationName   string  `json:"locationName,omitempty"`
	IsApproximated bool    `json:"isApproximated,omitempty"`
}

type TrendingResult struct {
	Videos         []TrendingVideo  `json:"videos"`
	LocationInfo   TrendingLocation `json:"locationInfo"`
	ResponseTimeMs int64            `json:"responseTimeMs"`
}

// TrendingQuery narrows a local-trending lookup. Zero coordinates mean "let
// the backend locate the caller by IP".
type TrendingQuery struct {
	Latitude  *float64
	Longitude *float64
	RadiusKm  int
	Limit     int
}

// LocalTrending fetches videos trending near a location.
func (c *Client) LocalTrending(ctx context.Context, q TrendingQuery) (*TrendingResult, error) {
	params := url.Values{}
	if q.Latitude != nil && q.Longitude != nil {
		params.Set("lat", strconv.FormatFloat(*q.Latitude, 'f', -1, 64))
		params.Set("lng", strconv.FormatFloat(*q.Longitude, 'f', -1, 64))
	}
	radius := q.RadiusKm
	if radius <= 0 {
		radius = 50
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	params.Set("radiusKm", strconv.Itoa(radius))
	params.Set("limit", strconv.Itoa(limit))

	var out TrendingResult
	if err := c.get(ctx, fmt.Sprintf("/api/trending/local?%s", params.Encode()), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
