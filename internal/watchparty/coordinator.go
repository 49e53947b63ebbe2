package watchparty

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vidshare/vidshare/internal/realtime"
)

// Broker destinations, matching the backend's watch-party controller.
const (
	destCreateRoom = "/app/watchparty.createRoom"
	destJoinRoom   = "/app/watchparty.join"
	destLeaveRoom  = "/app/watchparty.leave"
)

// RoomTopic is the broadcast topic for one room.
func RoomTopic(roomID string) string {
	return "/topic/watchparty/" + roomID
}

type controlMessage struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Role is a participant's authority within a room. It is fixed when the
// session starts; changing role means a full disconnect and reconnect.
type Role int

const (
	RoleNone Role = iota
	RoleOwner
	RoleMember
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleMember:
		return "member"
	default:
		return "none"
	}
}

// ConnState is the session's connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// RoomAPI is the REST collaborator behind owner-only playback control.
type RoomAPI interface {
	StartPlayback(ctx context.Context, roomID string, videoID int64) error
}

// Navigator receives the coordinator's navigation side effects: opening the
// video a redirect points at, or returning to the room-discovery view.
type Navigator interface {
	OpenVideo(videoID int64)
	OpenLobby()
}

// Options tune the coordinator's fixed delays. Zero values take the
// production defaults; tests inject short ones.
type Options struct {
	// RedirectDelay is how long a member shows the redirect status message
	// before navigating to the video.
	RedirectDelay time.Duration
	// GraceWindow is the keep-alive period an owner holds the channel open
	// after triggering playback, so guests can receive the broadcast.
	GraceWindow time.Duration
	// LobbyDelay is how long a member waits after a room-closed notice
	// before returning to the discovery view.
	LobbyDelay time.Duration
	// RequestTimeout bounds the playback-start REST call.
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.RedirectDelay <= 0 {
		o.RedirectDelay = 200 * time.Millisecond
	}
	if o.GraceWindow <= 0 {
		o.GraceWindow = 10 * time.Second
	}
	if o.LobbyDelay <= 0 {
		o.LobbyDelay = 3 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	return o
}

// TokenSource supplies the bearer token attached to the channel handshake.
type TokenSource func() string

// Coordinator manages at most one room session at a time. All session-state
// mutation is serialized under one mutex; observers consume the exported
// channels.
type Coordinator struct {
	dialer realtime.Dialer
	api    RoomAPI
	nav    Navigator
	token  TokenSource
	opts   Options

	mu   sync.Mutex
	sess *session

	messages chan string
	events   chan Event
	status   chan bool
}

// session is the state of one room membership. A torn-down session is never
// reused; Connect builds a fresh one.
type session struct {
	roomID        string
	participantID string
	role          Role
	state         ConnState
	channel       realtime.Channel

	keepAliveUntil  time.Time
	keepAliveTimer  *time.Timer
	teardownPending bool

	// done is closed exactly once, at teardown; it cancels delayed tasks
	// scheduled on behalf of this session.
	done chan struct{}
}

// New creates a coordinator. nav may be nil when the caller consumes redirect
// events itself through Events().
func New(dialer realtime.Dialer, api RoomAPI, nav Navigator, token TokenSource, opts Options) *Coordinator {
	if token == nil {
		token = func() string { return "" }
	}
	return &Coordinator{
		dialer:   dialer,
		api:      api,
		nav:      nav,
		token:    token,
		opts:     opts.withDefaults(),
		messages: make(chan string, 64),
		events:   make(chan Event, 64),
		status:   make(chan bool, 8),
	}
}

// Messages is the stream of human-readable room status lines.
func (c *Coordinator) Messages() <-chan string { return c.messages }

// Events is the stream of classified inbound events, emitted regardless of
// the coordinator's own handling so callers get raw access.
func (c *Coordinator) Events() <-chan Event { return c.events }

// ConnectionStatus emits true on connect and false on teardown.
func (c *Coordinator) ConnectionStatus() <-chan bool { return c.status }

// IsConnected reports whether a session is currently connected.
func (c *Coordinator) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.sess.state == StateConnected
}

// CurrentRole returns the active session's role, or RoleNone.
func (c *Coordinator) CurrentRole() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return RoleNone
	}
	return c.sess.role
}

// RoomID returns the active session's room id, or "".
func (c *Coordinator) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.roomID
}

// Connect joins (or, as owner, registers) the given room. Connecting to the
// room the session is already connected to is a no-op; connecting anywhere
// else first tears the current session down completely.
func (c *Coordinator) Connect(ctx context.Context, roomID, participantID string, asOwner bool) error {
	c.mu.Lock()
	if s := c.sess; s != nil && s.state == StateConnected && s.roomID == roomID {
		c.mu.Unlock()
		return nil
	}
	if c.sess != nil {
		c.teardownLocked(c.sess)
	}

	role := RoleMember
	if asOwner {
		role = RoleOwner
	}
	sess := &session{
		roomID:        roomID,
		participantID: participantID,
		role:          role,
		state:         StateConnecting,
		done:          make(chan struct{}),
	}
	c.sess = sess
	c.mu.Unlock()

	channel, err := c.dialer.Dial(ctx, RoomTopic(roomID), c.token())

	c.mu.Lock()
	if c.sess != sess {
		// superseded while dialing; whoever replaced us owns the state now
		c.mu.Unlock()
		if channel != nil {
			_ = channel.Close()
		}
		return fmt.Errorf("connect to room %s: session superseded", roomID)
	}
	if err != nil {
		c.sess = nil
		c.mu.Unlock()
		return fmt.Errorf("connect to room %s: %w", roomID, err)
	}

	sess.channel = channel
	dest := destJoinRoom
	if asOwner {
		dest = destCreateRoom
	}
	if err := channel.Send(dest, controlMessage{RoomID: roomID, UserID: participantID}); err != nil {
		c.teardownLocked(sess)
		c.mu.Unlock()
		return fmt.Errorf("announce to room %s: %w", roomID, err)
	}
	sess.state = StateConnected
	c.mu.Unlock()

	go c.dispatch(sess, channel)

	c.emitStatus(true)
	slog.Info("watchparty: connected", "room_id", roomID, "role", role.String())
	return nil
}

// dispatch consumes the channel's inbound frames until it closes. Frames are
// handled in arrival order; no reordering, no deduplication.
func (c *Coordinator) dispatch(sess *session, channel realtime.Channel) {
	for frame := range channel.Frames() {
		c.handleEvent(sess, DecodeEvent(frame.Body))
	}
}

func (c *Coordinator) handleEvent(sess *session, ev Event) {
	c.emitEvent(ev)

	switch ev.Type {
	case EventUserJoined:
		c.emitMessage(fmt.Sprintf("%s joined the room", ev.Username))

	case EventUserLeft:
		c.emitMessage(fmt.Sprintf("%s left the room", ev.Username))

	case EventRedirectVideo:
		if sess.role == RoleOwner {
			// the owner's teardown is governed by the keep-alive window,
			// not by its own broadcast echo
			c.emitMessage(fmt.Sprintf("video %d is now playing for the room", ev.VideoID))
			return
		}
		c.emitMessage(fmt.Sprintf("video %d is starting, opening player", ev.VideoID))
		videoID := ev.VideoID
		c.after(sess, c.opts.RedirectDelay, func() {
			if c.nav != nil {
				c.nav.OpenVideo(videoID)
			}
			c.Disconnect()
		})

	case EventRoomClosed:
		c.emitMessage("the room was closed by its owner")
		if sess.role != RoleMember {
			return
		}
		c.after(sess, c.opts.LobbyDelay, func() {
			if c.nav != nil {
				c.nav.OpenLobby()
			}
			c.Disconnect()
		})

	case EventChat, EventRaw:
		c.emitMessage(ev.Text)
	}
}

// PlayVideo triggers synchronized playback for the room. Only the owner may
// call it; for anyone else it is a no-op with a diagnostic (the server
// re-validates ownership regardless — the local check is advisory).
func (c *Coordinator) PlayVideo(videoID int64) {
	c.mu.Lock()
	sess := c.sess
	if sess == nil || sess.state != StateConnected {
		c.mu.Unlock()
		slog.Warn("watchparty: playback requested without an active room")
		c.emitMessage("not connected to a room")
		return
	}
	if sess.role != RoleOwner {
		c.mu.Unlock()
		slog.Warn("watchparty: playback requested by non-owner", "room_id", sess.roomID)
		c.emitMessage("only the room owner can start playback")
		return
	}

	// hold the channel open long enough for the broadcast round-trip;
	// a new start replaces any previous window rather than stacking
	if sess.keepAliveTimer != nil {
		sess.keepAliveTimer.Stop()
	}
	sess.keepAliveUntil = time.Now().Add(c.opts.GraceWindow)
	sess.keepAliveTimer = time.AfterFunc(c.opts.GraceWindow, func() {
		c.keepAliveExpired(sess)
	})
	roomID := sess.roomID
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
	defer cancel()

	if err := c.api.StartPlayback(ctx, roomID, videoID); err != nil {
		// the command never reached the server; no reason to hold the
		// channel open
		c.mu.Lock()
		if c.sess == sess {
			c.clearKeepAliveLocked(sess)
			if sess.teardownPending {
				c.teardownLocked(sess)
			}
		}
		c.mu.Unlock()
		slog.Warn("watchparty: playback start failed", "room_id", roomID, "video_id", videoID, "error", err)
		c.emitMessage(fmt.Sprintf("failed to start video %d: %v", videoID, err))
		return
	}

	// success leaves the keep-alive to expire naturally so late-arriving
	// broadcasts are not missed
	c.emitMessage(fmt.Sprintf("video %d start accepted, notifying the room", videoID))
}

func (c *Coordinator) keepAliveExpired(sess *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess {
		return
	}
	sess.keepAliveUntil = time.Time{}
	sess.keepAliveTimer = nil
	if sess.teardownPending {
		c.teardownLocked(sess)
	}
}

// Disconnect requests a teardown. While an owner's keep-alive window is open
// the request is deferred, not dropped: it fires when the window expires.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.sess
	if sess == nil {
		return
	}
	if !sess.keepAliveUntil.IsZero() && time.Now().Before(sess.keepAliveUntil) {
		sess.teardownPending = true
		slog.Info("watchparty: teardown deferred until keep-alive expiry",
			"room_id", sess.roomID, "until", sess.keepAliveUntil)
		return
	}
	c.teardownLocked(sess)
}

// ForceDisconnect tears down immediately, bypassing any keep-alive window.
// This is the explicit user-initiated "leave room" path.
func (c *Coordinator) ForceDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		c.teardownLocked(c.sess)
	}
}

// clearKeepAliveLocked cancels the window and its timer. Caller holds mu.
func (c *Coordinator) clearKeepAliveLocked(sess *session) {
	if sess.keepAliveTimer != nil {
		sess.keepAliveTimer.Stop()
		sess.keepAliveTimer = nil
	}
	sess.keepAliveUntil = time.Time{}
}

// teardownLocked runs the full teardown sequence. Every step is best-effort;
// the sequence completes regardless of individual failures, and running it
// against an already-torn-down session is harmless. Caller holds mu.
func (c *Coordinator) teardownLocked(sess *session) {
	wasConnected := sess.state == StateConnected
	if sess.state == StateConnected && sess.channel != nil {
		if err := sess.channel.Send(destLeaveRoom, controlMessage{RoomID: sess.roomID, UserID: sess.participantID}); err != nil {
			slog.Debug("watchparty: leave notification failed", "room_id", sess.roomID, "error", err)
		}
	}
	if sess.channel != nil {
		_ = sess.channel.Close()
	}

	sess.state = StateDisconnected
	c.clearKeepAliveLocked(sess)
	sess.teardownPending = false

	select {
	case <-sess.done:
	default:
		close(sess.done)
	}

	if c.sess == sess {
		c.sess = nil
		if wasConnected {
			c.emitStatus(false)
			slog.Info("watchparty: disconnected", "room_id", sess.roomID)
		}
	}
}

// after schedules fn unless the session is torn down first.
func (c *Coordinator) after(sess *session, d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case <-sess.done:
			return
		default:
		}
		fn()
	})
}

// Emission never blocks: a slow or absent observer loses lines rather than
// stalling frame handling.
func (c *Coordinator) emitMessage(msg string) {
	select {
	case c.messages <- msg:
	default:
	}
}

func (c *Coordinator) emitEvent(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}

func (c *Coordinator) emitStatus(connected bool) {
	select {
	case c.status <- connected:
	default:
	}
}
