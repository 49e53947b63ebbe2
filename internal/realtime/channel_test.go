package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

// newBrokerServer runs a minimal broker: acknowledges the first SUBSCRIBE
// with CONNECTED, then hands the connection to the given session func.
func newBrokerServer(t *testing.T, session func(conn *websocket.Conn, topic string)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub Frame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if sub.Command != CommandSubscribe {
			t.Errorf("expected SUBSCRIBE, got %q", sub.Command)
			return
		}
		if err := conn.WriteJSON(Frame{Command: CommandConnected}); err != nil {
			return
		}
		if session != nil {
			session(conn, sub.Destination)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialSubscribesAndReceivesFramesInOrder(t *testing.T) {
	_, wsURL := newBrokerServer(t, func(conn *websocket.Conn, topic string) {
		if topic != "/topic/watchparty/WP-AB12CD" {
			// report via frame so the client side fails too
			_ = conn.WriteJSON(Frame{Command: CommandError})
			return
		}
		for i := 0; i < 3; i++ {
			body, _ := json.Marshal(map[string]int{"seq": i})
			if err := conn.WriteJSON(Frame{Command: CommandMessage, Destination: topic, Body: body}); err != nil {
				return
			}
		}
		// wait for the client to close
		_, _, _ = conn.ReadMessage()
	})

	d := &WebSocketDialer{URL: wsURL}
	ch, err := d.Dial(context.Background(), "/topic/watchparty/WP-AB12CD", "tok")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	for want := 0; want < 3; want++ {
		select {
		case f := <-ch.Frames():
			var body struct {
				Seq int `json:"seq"`
			}
			if err := json.Unmarshal(f.Body, &body); err != nil {
				t.Fatalf("decode frame body: %v", err)
			}
			if body.Seq != want {
				t.Errorf("frame %d arrived out of order: got seq %d", want, body.Seq)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", want)
		}
	}
}

func TestDialPassesTokenAsQueryParam(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub Frame
		_ = conn.ReadJSON(&sub)
		_ = conn.WriteJSON(Frame{Command: CommandConnected})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	d := &WebSocketDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	ch, err := d.Dial(context.Background(), "/topic/video/1", "secret-token")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	if gotToken != "secret-token" {
		t.Errorf("expected token in query, got %q", gotToken)
	}
}

func TestDialFailsOnBrokerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub Frame
		_ = conn.ReadJSON(&sub)
		_ = conn.WriteJSON(Frame{Command: CommandError, Body: json.RawMessage(`"no such topic"`)})
	}))
	defer srv.Close()

	d := &WebSocketDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), HandshakeTimeout: time.Second}
	if _, err := d.Dial(context.Background(), "/topic/nope", ""); err == nil {
		t.Fatal("expected dial to fail on ERROR frame")
	}
}

func TestDialFailsWhenServerUnreachable(t *testing.T) {
	d := &WebSocketDialer{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: 500 * time.Millisecond}
	if _, err := d.Dial(context.Background(), "/topic/x", ""); err == nil {
		t.Fatal("expected dial to fail")
	}
}

func TestSendPublishesFrame(t *testing.T) {
	received := make(chan Frame, 1)
	_, wsURL := newBrokerServer(t, func(conn *websocket.Conn, topic string) {
		var f Frame
		if err := conn.ReadJSON(&f); err == nil {
			received <- f
		}
	})

	d := &WebSocketDialer{URL: wsURL}
	ch, err := d.Dial(context.Background(), "/topic/watchparty/WP-1", "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	if err := ch.Send("/app/watchparty.join", map[string]string{"roomId": "WP-1", "userId": "u-1"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case f := <-received:
		if f.Command != CommandSend || f.Destination != "/app/watchparty.join" {
			t.Errorf("unexpected frame %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestCloseIsIdempotentAndStopsFrames(t *testing.T) {
	_, wsURL := newBrokerServer(t, func(conn *websocket.Conn, topic string) {
		_, _, _ = conn.ReadMessage()
	})

	d := &WebSocketDialer{URL: wsURL}
	ch, err := d.Dial(context.Background(), "/topic/x", "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := ch.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	if err := ch.Send("/app/x", "late"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}

	select {
	case _, ok := <-ch.Frames():
		if ok {
			t.Error("expected frames channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frames channel never closed")
	}
}

func TestFramesChannelClosesWhenServerDrops(t *testing.T) {
	_, wsURL := newBrokerServer(t, func(conn *websocket.Conn, topic string) {
		// return immediately: the deferred close drops the connection
	})

	d := &WebSocketDialer{URL: wsURL}
	ch, err := d.Dial(context.Background(), "/topic/x", "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	select {
	case _, ok := <-ch.Frames():
		if ok {
			t.Error("expected closed frames channel, got a frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frames channel never closed after server drop")
	}
}
