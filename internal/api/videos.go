package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Video mirrors the platform's video read model.
type Video struct {
	ID                  int64    `json:"id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Tags                []string `json:"tags"`
	Location            string   `json:"location,omitempty"`
	ThumbnailPath       string   `json:"thumbnailPath,omitempty"`
	VideoPath           string   `json:"videoPath,omitempty"`
	CreatedAt           string   `json:"createdAt,omitempty"`
	UserID              int64    `json:"userId,omitempty"`
	LikesCount          int64    `json:"likesCount"`
	LikedByCurrentUser  bool     `json:"likedByCurrentUser"`
	ViewsCount          int64    `json:"viewsCount"`
	VideoDurationSecond int64    `json:"videoDurationSeconds,omitempty"`
}

// UploadRequest describes a new video; the media files ride along as
// multipart parts next to the JSON dto, matching the upload form.
type UploadRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Location    string   `json:"location,omitempty"`
}

// ListVideos fetches the public video catalogue.
func (c *Client) ListVideos(ctx context.Context) ([]Video, error) {
	var videos []Video
	if err := c.get(ctx, "/api/videos/", &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// GetVideo fetches a single video.
func (c *Client) GetVideo(ctx context.Context, id int64) (*Video, error) {
	var v Video
	if err := c.get(ctx, fmt.Sprintf("/api/videos/%d", id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteVideo removes one of the caller's videos.
func (c *Client) DeleteVideo(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/videos/%d", id))
}

// LikeVideo registers a like for the current user.
func (c *Client) LikeVideo(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/api/videos/%d/like", id), nil, nil)
}

// UnlikeVideo removes the current user's like.
func (c *Client) UnlikeVideo(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/videos/%d/like", id))
}

// ThumbnailURL returns the direct URL of a video's thumbnail.
func (c *Client) ThumbnailURL(id int64) string {
	return fmt.Sprintf("%s/api/videos/%d/thumbnail", c.baseURL, id)
}

// StreamURL returns the direct URL of a video's stream.
func (c *Client) StreamURL(id int64) string {
	return fmt.Sprintf("%s/api/videos/%d/video", c.baseURL, id)
}

// UploadVideo sends the dto plus thumbnail and video files as one multipart
// request and returns the created video.
func (c *Client) UploadVideo(ctx context.Context, req UploadRequest, thumbnailPath, videoPath string) (*Video, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUploadParts(mw, req, thumbnailPath, videoPath)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/videos/", pr)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &Error{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var created Video
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &created, nil
}

func writeUploadParts(mw *multipart.Writer, req UploadRequest, thumbnailPath, videoPath string) error {
	dto, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal video dto: %w", err)
	}
	if err := mw.WriteField("dto", string(dto)); err != nil {
		return fmt.Errorf("write dto part: %w", err)
	}
	if err := writeFilePart(mw, "thumbnail", thumbnailPath); err != nil {
		return err
	}
	return writeFilePart(mw, "video", videoPath)
}

func writeFilePart(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s file: %w", field, err)
	}
	defer func() { _ = f.Close() }()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s part: %w", field, err)
	}
	return nil
}
