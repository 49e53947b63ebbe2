package api

import (
	"context"
	"fmt"
)

type Comment struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	UserID    int64  `json:"userId,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	VideoID   int64  `json:"videoId,omitempty"`
}

// CommentPage is the backend's page envelope for comment listings.
type CommentPage struct {
	Content       []Comment `json:"content"`
	TotalElements int64     `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
	Size          int       `json:"size"`
	Number        int       `json:"number"`
	First         bool      `json:"first"`
	Last          bool      `json:"last"`
}

type CreateCommentRequest struct {
	Text         string   `json:"text"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"locationName,omitempty"`
}

type CommentUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type CommentResponse struct {
	ID                int64       `json:"id"`
	Text              string      `json:"text"`
	CreatedAt         string      `json:"createdAt"`
	VideoID           int64       `json:"videoId"`
	User              CommentUser `json:"user"`
	RemainingComments int64       `json:"remainingComments"`
}

type RemainingCommentsResponse struct {
	RemainingComments int64 `json:"remainingComments"`
}

// CreateComment posts a comment, optionally tagged with coordinates.
func (c *Client) CreateComment(ctx context.Context, videoID int64, req CreateCommentRequest) (*CommentResponse, error) {
	var out CommentResponse
	if err := c.post(ctx, fmt.Sprintf("/api/videos/%d/comments", videoID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListComments fetches one page of comments, newest first.
func (c *Client) ListComments(ctx context.Context, videoID int64, page, size int) (*CommentPage, error) {
	var out CommentPage
	path := fmt.Sprintf("/api/videos/%d/comments?page=%d&size=%d", videoID, page, size)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemainingComments reports how many comments the current user may still post
// on the video (the backend rate-limits commenting).
func (c *Client) RemainingComments(ctx context.Context, videoID int64) (int64, error) {
	var out RemainingCommentsResponse
	if err := c.get(ctx, fmt.Sprintf("/api/videos/%d/comments/remaining", videoID), &out); err != nil {
		return 0, err
	}
	return out.RemainingComments, nil
}
