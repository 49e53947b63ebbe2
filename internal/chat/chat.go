// Package chat is the per-video chat client. Each video page has its own
// broadcast topic; the client subscribes once and relays messages both ways
// over the shared realtime channel.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vidshare/vidshare/internal/realtime"
)

// Message is one chat line on a video's topic.
type Message struct {
	Username string `json:"username"`
	Text     string `json:"message"`
	VideoID  int64  `json:"videoId"`
}

// VideoTopic is the broadcast topic for one video's chat.
func VideoTopic(videoID int64) string {
	return fmt.Sprintf("/topic/video/%d", videoID)
}

func sendDestination(videoID int64) string {
	return fmt.Sprintf("/app/chat/%d", videoID)
}

// Client is a connected chat session for a single video.
type Client struct {
	videoID  int64
	username string
	channel  realtime.Channel
	incoming chan Message
}

// Join subscribes to a video's chat topic and starts relaying inbound
// messages. The returned client is ready to Send immediately.
func Join(ctx context.Context, dialer realtime.Dialer, token string, videoID int64, username string) (*Client, error) {
	channel, err := dialer.Dial(ctx, VideoTopic(videoID), token)
	if err != nil {
		return nil, fmt.Errorf("join chat for video %d: %w", videoID, err)
	}

	c := &Client{
		videoID:  videoID,
		username: username,
		channel:  channel,
		incoming: make(chan Message, 64),
	}
	go c.relay()
	return c, nil
}

// Messages is the stream of inbound chat lines. It is closed when the
// channel drops or the client is closed.
func (c *Client) Messages() <-chan Message { return c.incoming }

// Send publishes one chat line under the client's username.
func (c *Client) Send(text string) error {
	msg := Message{Username: c.username, Text: text, VideoID: c.videoID}
	if err := c.channel.Send(sendDestination(c.videoID), msg); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	return nil
}

// Close leaves the chat. Safe to call more than once.
func (c *Client) Close() error {
	return c.channel.Close()
}

func (c *Client) relay() {
	defer close(c.incoming)
	for frame := range c.channel.Frames() {
		var msg Message
		if err := json.Unmarshal(frame.Body, &msg); err != nil {
			slog.Debug("chat: dropping malformed message", "video_id", c.videoID, "error", err)
			continue
		}
		c.incoming <- msg
	}
}
