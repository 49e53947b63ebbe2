package api

import (
	"context"
	"fmt"
)

type createRoomResponse struct {
	RoomID string `json:"roomId"`
	ID     string `json:"id"`
}

type startPlaybackRequest struct {
	VideoID int64 `json:"videoId"`
}

// CreateRoom asks the backend for a new watch-party room and returns its id.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	var out createRoomResponse
	if err := c.post(ctx, "/api/watch-party/rooms", struct{}{}, &out); err != nil {
		return "", err
	}
	roomID := out.RoomID
	if roomID == "" {
		roomID = out.ID
	}
	if roomID == "" {
		return "", fmt.Errorf("create room: response carried no room id")
	}
	return roomID, nil
}

// StartPlayback asks the backend to fan the playback-start broadcast out to
// the room. A 2xx response means accepted for broadcast, not that any guest
// has received it.
func (c *Client) StartPlayback(ctx context.Context, roomID string, videoID int64) error {
	path := fmt.Sprintf("/api/watch-party/rooms/%s/start", roomID)
	return c.post(ctx, path, startPlaybackRequest{VideoID: videoID}, nil)
}
