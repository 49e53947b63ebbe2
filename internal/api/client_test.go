package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, func() string { return "test-token" }), srv
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))

	if _, err := client.ListVideos(context.Background()); err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
}

func TestNoAuthorizationHeaderWhenLoggedOut(t *testing.T) {
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := New(srv.URL, func() string { return "" })
	if _, err := client.ListVideos(context.Background()); err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if sawHeader {
		t.Error("expected no Authorization header without a token")
	}
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	}))

	err := client.StartPlayback(context.Background(), "WP-AB12CD", 42)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", apiErr.Status)
	}
}

func TestLoginDecodesTokenState(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode login request: %v", err)
		}
		if req.Username != "mila" {
			t.Errorf("unexpected username %q", req.Username)
		}
		_ = json.NewEncoder(w).Encode(TokenState{AccessToken: "tok", ExpiresIn: 3600})
	}))

	state, err := client.Login(context.Background(), "mila", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if state.AccessToken != "tok" || state.ExpiresIn != 3600 {
		t.Errorf("unexpected token state %+v", state)
	}
}

func TestListCommentsSendsPagination(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/videos/7/comments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("size") != "20" {
			t.Errorf("unexpected pagination params %v", q)
		}
		_ = json.NewEncoder(w).Encode(CommentPage{
			Content: []Comment{{ID: 1, Text: "nice"}},
			Number:  2,
			Last:    true,
		})
	}))

	page, err := client.ListComments(context.Background(), 7, 2, 20)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(page.Content) != 1 || page.Content[0].Text != "nice" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestLocalTrendingOmitsCoordinatesWhenUnknown(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Has("lat") || q.Has("lng") {
			t.Errorf("expected no coordinates, got %v", q)
		}
		if q.Get("radiusKm") != "50" || q.Get("limit") != "10" {
			t.Errorf("expected defaults, got %v", q)
		}
		_ = json.NewEncoder(w).Encode(TrendingResult{})
	}))

	if _, err := client.LocalTrending(context.Background(), TrendingQuery{}); err != nil {
		t.Fatalf("local trending: %v", err)
	}
}

func TestLocalTrendingSendsCoordinates(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("lat") != "45.25" || q.Get("lng") != "19.85" {
			t.Errorf("unexpected coordinates %v", q)
		}
		_ = json.NewEncoder(w).Encode(TrendingResult{})
	}))

	lat, lng := 45.25, 19.85
	_, err := client.LocalTrending(context.Background(), TrendingQuery{Latitude: &lat, Longitude: &lng, RadiusKm: 25, Limit: 5})
	if err != nil {
		t.Fatalf("local trending: %v", err)
	}
}

func TestCreateRoomAcceptsEitherIDField(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"roomId", `{"roomId":"WP-AB12CD"}`, "WP-AB12CD"},
		{"legacy id", `{"id":"WP-ZZ99XX"}`, "WP-ZZ99XX"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			got, err := client.CreateRoom(context.Background())
			if err != nil {
				t.Fatalf("create room: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCreateRoomRejectsEmptyResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	if _, err := client.CreateRoom(context.Background()); err == nil {
		t.Error("expected error when response has no room id")
	}
}

func TestStartPlaybackSendsVideoID(t *testing.T) {
	var gotPath string
	var gotBody startPlaybackRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))

	if err := client.StartPlayback(context.Background(), "WP-AB12CD", 42); err != nil {
		t.Fatalf("start playback: %v", err)
	}
	if gotPath != "/api/watch-party/rooms/WP-AB12CD/start" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotBody.VideoID != 42 {
		t.Errorf("expected videoId 42, got %d", gotBody.VideoID)
	}
}
