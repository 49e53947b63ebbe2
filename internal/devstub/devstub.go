// Package devstub is an in-memory double of the platform backend: the REST
// surface the client SDK talks to, plus a websocket hub speaking the room
// broadcast protocol. It backs integration tests and local development; it
// is not a product backend.
package devstub

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidshare/vidshare/internal/api"
	"github.com/vidshare/vidshare/internal/auth"
	"github.com/vidshare/vidshare/internal/httputil"
	"github.com/vidshare/vidshare/internal/ratelimit"
	"github.com/vidshare/vidshare/internal/validate"
)

type Config struct {
	JWTSecret string
	// AuthRate limits login/signup requests per second per IP; zero keeps
	// rate limiting off, which tests want.
	AuthRate  float64
	AuthBurst int
}

type userRecord struct {
	id           int64
	username     string
	passwordHash []byte
	email        string
	firstName    string
	lastName     string
}

type videoRecord struct {
	api.Video
	ownerID   int64
	latitude  float64
	longitude float64
}

type commentRecord struct {
	id        int64
	text      string
	userID    int64
	username  string
	createdAt time.Time
}

type Server struct {
	router chi.Router
	hub    *Hub
	secret string

	mu          sync.Mutex
	users       map[string]*userRecord
	nextUserID  int64
	videos      map[int64]*videoRecord
	nextVideoID int64
	comments    map[int64][]commentRecord
	nextComment int64
	likes       map[int64]map[int64]bool
}

func New(cfg Config) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "devstub-secret"
	}

	s := &Server{
		router:      chi.NewRouter(),
		hub:         NewHub(),
		secret:      cfg.JWTSecret,
		users:       make(map[string]*userRecord),
		nextUserID:  1,
		videos:      make(map[int64]*videoRecord),
		nextVideoID: 1,
		comments:    make(map[int64][]commentRecord),
		nextComment: 1,
		likes:       make(map[int64]map[int64]bool),
	}
	s.routes(cfg)
	return s
}

// Hub exposes the broadcast hub for tests that publish events directly.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(cfg Config) {
	s.router.Use(middleware.Recoverer)

	s.router.Route("/auth", func(r chi.Router) {
		if cfg.AuthRate > 0 {
			r.Use(ratelimit.NewLimiter(cfg.AuthRate, cfg.AuthBurst).Middleware)
		}
		r.Post("/login", s.handleLogin)
		r.Post("/signup", s.handleSignup)
	})

	s.router.Route("/api/videos", func(r chi.Router) {
		r.Get("/", s.handleListVideos)
		r.With(s.requireAuth).Post("/", s.handleUploadVideo)
		r.Get("/{id}", s.handleGetVideo)
		r.With(s.requireAuth).Delete("/{id}", s.handleDeleteVideo)
		r.With(s.requireAuth).Post("/{id}/like", s.handleLike)
		r.With(s.requireAuth).Delete("/{id}/like", s.handleUnlike)
		r.Get("/{id}/comments", s.handleListComments)
		r.With(s.requireAuth).Post("/{id}/comments", s.handleCreateComment)
		r.Get("/{id}/comments/remaining", s.handleRemainingComments)
	})

	s.router.Get("/api/trending/local", s.handleLocalTrending)

	s.router.Route("/api/popularity", func(r chi.Router) {
		r.Get("/top-videos", s.handleTopVideos)
		r.Post("/run-pipeline", s.handleRunPipeline)
		r.Get("/health", s.handlePopularityHealth)
	})

	s.router.Route("/api/watch-party", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/rooms", s.handleCreateRoom)
		r.Post("/rooms/{roomID}/start", s.handleStartPlayback)
	})

	s.router.Get("/ws", s.handleWS)
}

// requireAuth validates the bearer token and stashes its claims in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := auth.ValidateToken(s.secret, tokenStr)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	user, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(user.passwordHash, []byte(req.Password)) != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateAccessToken(s.secret, strconv.FormatInt(user.id, 10), user.username)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, api.TokenState{
		AccessToken: token,
		ExpiresIn:   int64(auth.AccessTokenDuration.Seconds()),
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req api.SignupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if msg := validate.Username(req.Username); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		httputil.WriteError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	// MinCost keeps test suites fast; the stub guards nothing real
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "password hashing failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		httputil.WriteError(w, http.StatusConflict, "username already taken")
		return
	}
	s.users[req.Username] = &userRecord{
		id:           s.nextUserID,
		username:     req.Username,
		passwordHash: hash,
		email:        req.Email,
		firstName:    req.Firstname,
		lastName:     req.Lastname,
	}
	s.nextUserID++
	w.WriteHeader(http.StatusCreated)
}

// AddUser seeds an account without going through signup. Test helper.
func (s *Server) AddUser(username, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return
	}
	s.users[username] = &userRecord{id: s.nextUserID, username: username, passwordHash: hash}
	s.nextUserID++
}

// AddVideo seeds a video. Test helper; returns the assigned id.
func (s *Server) AddVideo(v api.Video) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.nextVideoID
	s.nextVideoID++
	if v.CreatedAt == "" {
		v.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	s.videos[v.ID] = &videoRecord{Video: v, ownerID: v.UserID}
	return v.ID
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]api.Video, 0, len(s.videos))
	for _, rec := range s.videos {
		out = append(out, s.viewLocked(rec, 0))
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	s.mu.Lock()
	rec, ok := s.videos[id]
	var out api.Video
	if ok {
		out = s.viewLocked(rec, 0)
	}
	s.mu.Unlock()
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// viewLocked materializes the read model with like counts. Caller holds mu.
func (s *Server) viewLocked(rec *videoRecord, viewerID int64) api.Video {
	v := rec.Video
	v.LikesCount = int64(len(s.likes[v.ID]))
	v.LikedByCurrentUser = viewerID != 0 && s.likes[v.ID][viewerID]
	return v
}

func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	var dto api.UploadRequest
	if err := json.Unmarshal([]byte(r.FormValue("dto")), &dto); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed dto part")
		return
	}
	if dto.Title == "" {
		httputil.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	if msg := validate.Title(dto.Title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Description(dto.Description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	userID, _ := strconv.ParseInt(claims.UserID, 10, 64)
	s.mu.Lock()
	id := s.nextVideoID
	s.nextVideoID++
	rec := &videoRecord{
		Video: api.Video{
			ID:          id,
			Title:       dto.Title,
			Description: dto.Description,
			Tags:        dto.Tags,
			Location:    dto.Location,
			UserID:      userID,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		},
		ownerID: userID,
	}
	s.videos[id] = rec
	out := s.viewLocked(rec, userID)
	s.mu.Unlock()

	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.videos[id]
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	userID, _ := strconv.ParseInt(claims.UserID, 10, 64)
	if rec.ownerID != 0 && rec.ownerID != userID {
		httputil.WriteError(w, http.StatusForbidden, "not the video owner")
		return
	}
	delete(s.videos, id)
	delete(s.comments, id)
	delete(s.likes, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, true)
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, false)
}

func (s *Server) toggleLike(w http.ResponseWriter, r *http.Request, liked bool) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	userID, _ := strconv.ParseInt(claims.UserID, 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	if liked {
		if s.likes[id] == nil {
			s.likes[id] = make(map[int64]bool)
		}
		s.likes[id][userID] = true
	} else {
		delete(s.likes[id], userID)
	}
	w.WriteHeader(http.StatusNoContent)
}

const defaultCommentPageSize = 10

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	videoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = defaultCommentPageSize
	}

	s.mu.Lock()
	all := s.comments[videoID]
	total := len(all)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	content := make([]api.Comment, 0, end-start)
	// newest first, like the production listing
	for i := total - 1 - start; i >= total-end; i-- {
		c := all[i]
		content = append(content, api.Comment{
			ID:        c.id,
			Text:      c.text,
			UserID:    c.userID,
			Username:  c.username,
			CreatedAt: c.createdAt.UTC().Format(time.RFC3339),
			VideoID:   videoID,
		})
	}
	s.mu.Unlock()

	totalPages := (total + size - 1) / size
	httputil.WriteJSON(w, http.StatusOK, api.CommentPage{
		Content:       content,
		TotalElements: int64(total),
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
		First:         page == 0,
		Last:          end >= total,
	})
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	videoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	var req api.CreateCommentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "comment text is required")
		return
	}
	if msg := validate.Comment(req.Text); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	userID, _ := strconv.ParseInt(claims.UserID, 10, 64)
	s.mu.Lock()
	if _, ok := s.videos[videoID]; !ok {
		s.mu.Unlock()
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	rec := commentRecord{
		id:        s.nextComment,
		text:      req.Text,
		userID:    userID,
		username:  claims.Username,
		createdAt: time.Now(),
	}
	s.nextComment++
	s.comments[videoID] = append(s.comments[videoID], rec)
	remaining := int64(len(s.comments[videoID]))
	s.mu.Unlock()

	httputil.WriteJSON(w, http.StatusCreated, api.CommentResponse{
		ID:        rec.id,
		Text:      rec.text,
		CreatedAt: rec.createdAt.UTC().Format(time.RFC3339),
		VideoID:   videoID,
		User: api.CommentUser{
			ID:       userID,
			Username: claims.Username,
		},
		RemainingComments: remaining,
	})
}

func (s *Server) handleRemainingComments(w http.ResponseWriter, r *http.Request) {
	videoID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	s.mu.Lock()
	remaining := int64(len(s.comments[videoID]))
	s.mu.Unlock()
	httputil.WriteJSON(w, http.StatusOK, api.RemainingCommentsResponse{RemainingComments: remaining})
}

const defaultTrendingRadiusKm = 50

func (s *Server) handleLocalTrending(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	approximated := latErr != nil || lngErr != nil
	radius, _ := strconv.Atoi(q.Get("radiusKm"))
	if radius <= 0 {
		radius = defaultTrendingRadiusKm
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	var videos []api.TrendingVideo
	for _, rec := range s.videos {
		distance := 0.0
		if !approximated {
			distance = haversineKm(lat, lng, rec.latitude, rec.longitude)
			if distance > float64(radius) {
				continue
			}
		}
		likes := int64(len(s.likes[rec.ID]))
		videos = append(videos, api.TrendingVideo{
			ID:            rec.ID,
			Title:         rec.Title,
			ThumbnailPath: rec.ThumbnailPath,
			ViewsCount:    rec.ViewsCount,
			LikesCount:    likes,
			Score:         float64(rec.ViewsCount) + 2*float64(likes),
			DistanceKm:    distance,
			Location:      rec.Location,
		})
	}
	s.mu.Unlock()

	sort.Slice(videos, func(i, j int) bool { return videos[i].Score > videos[j].Score })
	if len(videos) > limit {
		videos = videos[:limit]
	}

	httputil.WriteJSON(w, http.StatusOK, api.TrendingResult{
		Videos: videos,
		LocationInfo: api.TrendingLocation{
			Latitude:       lat,
			Longitude:      lng,
			IsApproximated: approximated,
		},
		ResponseTimeMs: time.Since(started).Milliseconds(),
	})
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func (s *Server) handleTopVideos(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]api.VideoPopularity, 0, len(s.videos))
	for _, rec := range s.videos {
		likes := int64(len(s.likes[rec.ID]))
		out = append(out, api.VideoPopularity{
			VideoID:         rec.ID,
			Title:           rec.Title,
			ThumbnailPath:   rec.ThumbnailPath,
			PopularityScore: float64(rec.ViewsCount) + 2*float64(likes),
			TotalViews:      rec.ViewsCount,
			LikesCount:      likes,
			Location:        rec.Location,
		})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PopularityScore > out[j].PopularityScore })
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	// the stub's ranking is always current
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePopularityHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	roomID := newRoomID()
	s.hub.RegisterRoom(roomID, claims.UserID)
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

// newRoomID derives a short shareable code in the backend's WP-XXXXXX shape.
func newRoomID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("WP-%s", raw[:6])
}

func (s *Server) handleStartPlayback(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	roomID := chi.URLParam(r, "roomID")

	var req struct {
		VideoID int64 `json:"videoId"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil || req.VideoID == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	ownerID, ok := s.hub.RoomOwner(roomID)
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "room not found")
		return
	}
	if ownerID != claims.UserID {
		httputil.WriteError(w, http.StatusForbidden, "only the room owner can start playback")
		return
	}

	s.hub.Broadcast(roomTopic(roomID), roomEvent{EventType: "REDIRECT_VIDEO", VideoID: req.VideoID})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "broadcast"})
}

// handleWS upgrades the realtime endpoint. The token rides in the query
// string because browsers cannot set headers on websocket dials.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	username := ""
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		if claims, err := auth.ValidateToken(s.secret, tokenStr); err == nil {
			username = claims.Username
		}
	}
	s.hub.ServeWS(w, r, username)
}
