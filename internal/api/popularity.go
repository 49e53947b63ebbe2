package api

import "context"

type VideoPopularity struct {
	VideoID         int64   `json:"videoId"`
	Title           string  `json:"title"`
	ThumbnailPath   string  `json:"thumbnailPath,omitempty"`
	PopularityScore float64 `json:"popularityScore"`
	TotalViews      int64   `json:"totalViews"`
	LikesCount      int64   `json:"likesCount"`
	Location        string  `json:"location,omitempty"`
	Latitude        float64 `json:"latitude,omitempty"`
	Longitude       float64 `json:"longitude,omitempty"`
}

// TopVideos fetches the popularity read-model's current ranking.
func (c *Client) TopVideos(ctx context.Context) ([]VideoPopularity, error) {
	var out []VideoPopularity
	if err := c.get(ctx, "/api/popularity/top-videos", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunPopularityPipeline triggers a manual recomputation of the ranking.
func (c *Client) RunPopularityPipeline(ctx context.Context) error {
	return c.post(ctx, "/api/popularity/run-pipeline", nil, nil)
}

// PopularityHealth checks the popularity collaborator's health endpoint.
func (c *Client) PopularityHealth(ctx context.Context) error {
	return c.get(ctx, "/api/popularity/health", nil)
}
