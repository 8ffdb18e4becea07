// Package api exposes the processing and query pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vidquery/internal/domain"
	"vidquery/internal/media"
	"vidquery/internal/metrics"
	"vidquery/internal/query"
	"vidquery/internal/retriever"
	"vidquery/internal/session"
)

const maxUploadBytes = 2 << 30 // 2GB

// Retriever is the index/search surface the server needs.
type Retriever interface {
	Index(ctx context.Context, t *domain.Transcript, videoID string) (string, error)
	Search(ctx context.Context, q string, topK int, collection string) ([]domain.SearchResult, error)
	EnsureIndexed(ctx context.Context, name string, t *domain.Transcript) (bool, error)
}

// Processor ingests videos into transcripts.
type Processor interface {
	ProcessURL(ctx context.Context, videoURL, language string) (*media.Result, error)
	ProcessLocal(ctx context.Context, videoPath string) (*media.Result, error)
}

// QueryHandler runs a user query through intent routing.
type QueryHandler interface {
	Handle(ctx context.Context, req query.Request) (*query.Response, error)
}

// SessionCleaner tears down a session and everything it owns.
type SessionCleaner interface {
	DeleteSession(ctx context.Context, id, userID string) error
}

// Config wires the server.
type Config struct {
	Host            string
	Port            int
	Workspace       string
	HistoryPerQuery int
	SnippetMax      float64
	MetricsEnabled  bool

	Store     domain.SessionStore
	Retriever Retriever
	Processor Processor
	Handler   QueryHandler
	Cleaner   SessionCleaner
	Clipper   query.Clipper
	Logger    *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	server *http.Server
	logger *slog.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.HistoryPerQuery <= 0 {
		cfg.HistoryPerQuery = 10
	}
	if cfg.SnippetMax <= 0 {
		cfg.SnippetMax = 60
	}
	return &Server{cfg: cfg, logger: cfg.Logger}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process/url", s.handleProcessURL)
	mux.HandleFunc("POST /process/upload", s.handleProcessUpload)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /snippet/query", s.handleSnippetQuery)
	mux.HandleFunc("POST /snippet/timestamp", s.handleSnippetTimestamp)
	mux.HandleFunc("GET /transcript/{session}", s.handleTranscript)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /sessions/{session}", s.handleDeleteSession)
	mux.HandleFunc("GET /conversations/{conversation}/messages", s.handleConversationMessages)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.cfg.MetricsEnabled {
		mux.HandleFunc("GET /metrics", metrics.Collector.Handler())
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Minute, // processing a long video takes a while
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("api server started", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// --- video processing ---

type processURLRequest struct {
	UserID   string `json:"user_id"`
	VideoURL string `json:"video_url"`
	Language string `json:"language"`
}

type sessionResponse struct {
	SessionID string  `json:"session_id"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Message   string  `json:"message"`
}

func (s *Server) handleProcessURL(w http.ResponseWriter, r *http.Request) {
	var req processURLRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.VideoURL == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and video_url are required")
		return
	}
	language := req.Language
	if language == "" {
		language = "en"
	}

	result, err := s.cfg.Processor.ProcessURL(r.Context(), req.VideoURL, language)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message := "Transcript extracted successfully from captions."
	if result.AudioPath != "" {
		message = "No captions available. Audio was downloaded and transcribed."
	}
	s.finishProcessing(w, r, req.UserID, result, message)
}

func (s *Server) handleProcessUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	userID := r.FormValue("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	uploadDir := filepath.Join(s.cfg.Workspace, "users", userID, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	videoPath := filepath.Join(uploadDir, filepath.Base(header.Filename))
	dst, err := os.Create(videoPath)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dst.Close()

	result, err := s.cfg.Processor.ProcessLocal(r.Context(), videoPath)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.finishProcessing(w, r, userID, result, "Video uploaded and transcribed.")
}

// finishProcessing indexes the transcript and persists the session.
func (s *Server) finishProcessing(w http.ResponseWriter, r *http.Request, userID string, result *media.Result, message string) {
	ctx := r.Context()

	collection, err := s.cfg.Retriever.Index(ctx, result.Transcript, result.VideoID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("index transcript: %v", err))
		return
	}
	metrics.IndexBuildsTotal.Inc()

	sess := domain.Session{
		ID:             session.NewID(),
		UserID:         userID,
		Source:         result.Source,
		VideoURL:       result.VideoURL,
		VideoPath:      result.VideoPath,
		AudioPath:      result.AudioPath,
		Title:          result.Title,
		Duration:       result.Duration,
		CollectionName: collection,
	}
	if err := s.cfg.Store.CreateSession(ctx, sess); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.cfg.Store.SaveTranscript(ctx, sess.ID, result.Transcript); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.VideosProcessed.Inc()

	s.writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID,
		Title:     sess.Title,
		Duration:  sess.Duration,
		Message:   message,
	})
}

// --- search & query ---

type searchRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	NResults  int    `json:"n_results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.NResults <= 0 {
		req.NResults = 5
	}

	sess, ok := s.loadSession(w, r, req.SessionID, req.UserID)
	if !ok {
		return
	}
	if !s.guardIndex(w, r, sess) {
		return
	}

	results, err := s.cfg.Retriever.Search(r.Context(), req.Query, req.NResults, sess.CollectionName)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.SearchesTotal.Inc()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": results,
		"count":   len(results),
	})
}

type queryRequest struct {
	UserID         string `json:"user_id"`
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	ctx := r.Context()

	sess, ok := s.loadSession(w, r, req.SessionID, req.UserID)
	if !ok {
		return
	}
	if !s.guardIndex(w, r, sess) {
		return
	}

	if req.ConversationID == "" {
		req.ConversationID = session.NewID()
	}
	if err := s.cfg.Store.EnsureConversation(ctx, domain.Conversation{
		ID:        req.ConversationID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
	}); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	turns, err := s.cfg.Store.GetTurns(ctx, req.ConversationID, s.cfg.HistoryPerQuery)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history := make([]domain.Message, 0, len(turns))
	for _, t := range turns {
		history = append(history, domain.Message{Role: t.Role, Content: t.Content})
	}

	transcript, err := s.cfg.Store.GetTranscript(ctx, req.SessionID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	started := time.Now()
	result, err := s.cfg.Handler.Handle(ctx, query.Request{
		Query:      req.Query,
		Collection: sess.CollectionName,
		Transcript: transcript,
		VideoPath:  sess.VideoPath,
		History:    history,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, query.ErrMissingTranscript) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error())
		return
	}
	metrics.QueryCounter(string(result.Intent)).Inc()
	metrics.QueryLatency.Observe(time.Since(started).Seconds())

	if err := s.cfg.Store.AddTurn(ctx, req.ConversationID, domain.Turn{Role: "user", Content: req.Query}); err != nil {
		s.logger.Warn("cannot save user turn", "error", err)
	}
	if err := s.cfg.Store.AddTurn(ctx, req.ConversationID, domain.Turn{Role: "assistant", Content: result.Message}); err != nil {
		s.logger.Warn("cannot save assistant turn", "error", err)
	}

	s.writeJSON(w, http.StatusOK, struct {
		ConversationID string `json:"conversation_id"`
		*query.Response
	}{req.ConversationID, result})
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	convID := r.PathValue("conversation")
	userID := r.URL.Query().Get("user_id")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	conv, err := s.cfg.Store.GetConversation(r.Context(), convID, userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"messages": []any{}, "count": 0})
		return
	}

	turns, err := s.cfg.Store.GetTurns(r.Context(), convID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	messages := make([]map[string]string, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, map[string]string{"role": t.Role, "content": t.Content})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": convID,
		"messages":        messages,
		"count":           len(messages),
	})
}

// --- snippets ---

type snippetQueryRequest struct {
	UserID      string  `json:"user_id"`
	SessionID   string  `json:"session_id"`
	Query       string  `json:"query"`
	NResults    int     `json:"n_results"`
	MaxDuration float64 `json:"max_duration"`
}

func (s *Server) handleSnippetQuery(w http.ResponseWriter, r *http.Request) {
	var req snippetQueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.NResults <= 0 {
		req.NResults = 3
	}
	if req.MaxDuration <= 0 {
		req.MaxDuration = s.cfg.SnippetMax
	}

	sess, ok := s.loadSession(w, r, req.SessionID, req.UserID)
	if !ok {
		return
	}
	if !s.guardIndex(w, r, sess) {
		return
	}

	results, err := s.cfg.Retriever.Search(r.Context(), req.Query, req.NResults, sess.CollectionName)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(results) == 0 {
		s.writeError(w, http.StatusNotFound, "No relevant content found")
		return
	}

	isYouTube := sess.Source == domain.SourceYouTube && sess.VideoURL != ""
	snippets := make([]map[string]any, 0, len(results))
	for i, result := range results {
		window := query.ResolveWindow([]domain.SearchResult{result}, 2, req.MaxDuration)

		entry := map[string]any{
			"index":     i + 1,
			"relevance": result.Relevance,
			"context":   result.Text,
		}
		if isYouTube {
			links, err := media.YouTubeSnippetLinks(sess.VideoURL, window)
			if err != nil {
				s.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			entry["links"] = links
		} else {
			path, err := s.cfg.Clipper.Cut(r.Context(), sess.VideoPath, window)
			if err != nil {
				s.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			entry["snippet_path"] = path
			entry["start_time"] = window.Start
			entry["end_time"] = window.End
		}
		snippets = append(snippets, entry)
	}

	source := domain.SourceLocal
	if isYouTube {
		source = domain.SourceYouTube
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"source":         source,
		"query":          req.Query,
		"total_snippets": len(snippets),
		"snippets":       snippets,
	})
}

type snippetTimestampRequest struct {
	UserID    string  `json:"user_id"`
	SessionID string  `json:"session_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func (s *Server) handleSnippetTimestamp(w http.ResponseWriter, r *http.Request) {
	var req snippetTimestampRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.EndTime <= req.StartTime {
		s.writeError(w, http.StatusBadRequest, "end_time must be after start_time")
		return
	}

	sess, ok := s.loadSession(w, r, req.SessionID, req.UserID)
	if !ok {
		return
	}
	window := domain.TimeRange{Start: req.StartTime, End: req.EndTime}

	if sess.Source == domain.SourceYouTube && sess.VideoURL != "" {
		links, err := media.YouTubeSnippetLinks(sess.VideoURL, window)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"source": domain.SourceYouTube, "links": links})
		return
	}

	path, err := s.cfg.Clipper.Cut(r.Context(), sess.VideoPath, window)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"source":       domain.SourceLocal,
		"snippet_path": path,
		"start_time":   window.Start,
		"end_time":     window.End,
	})
}

// --- transcript & sessions ---

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	userID := r.URL.Query().Get("user_id")
	withTimestamps := r.URL.Query().Get("with_timestamps") != "false"

	if _, ok := s.loadSession(w, r, sessionID, userID); !ok {
		return
	}
	transcript, err := s.cfg.Store.GetTranscript(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if transcript == nil {
		s.writeError(w, http.StatusNotFound, "Transcript not found")
		return
	}

	if withTimestamps {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"segments": transcript.Segments,
			"duration": transcript.Duration,
			"language": transcript.Language,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"text":     transcript.FullText,
		"duration": transcript.Duration,
		"language": transcript.Language,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sessions, err := s.cfg.Store.ListSessions(r.Context(), userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, map[string]any{
			"session_id": sess.ID,
			"title":      sess.Title,
			"duration":   sess.Duration,
			"source":     sess.Source,
			"created_at": sess.CreatedAt,
		})
	}
	metrics.SessionsActive.Set(int64(len(sessions)))
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": out, "total": len(out)})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	userID := r.URL.Query().Get("user_id")

	err := s.cfg.Cleaner.DeleteSession(r.Context(), sessionID, userID)
	if errors.Is(err, session.ErrSessionNotFound) {
		s.writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		// The rows are gone but some resource could not be freed; the caller
		// should know rather than assume a clean delete.
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"message": "Session deleted with failures",
			"detail":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"message": "Session deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": int64(metrics.Collector.Uptime().Seconds()),
	})
}

// --- helpers ---

// loadSession writes a 404 when the session does not exist for this user.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request, sessionID, userID string) (*domain.Session, bool) {
	if sessionID == "" || userID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id and user_id are required")
		return nil, false
	}
	sess, err := s.cfg.Store.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if sess == nil {
		s.writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return sess, true
}

// guardIndex makes sure the session's collection is queryable, rebuilding it
// from the stored transcript when the index service lost it.
func (s *Server) guardIndex(w http.ResponseWriter, r *http.Request, sess *domain.Session) bool {
	transcript, err := s.cfg.Store.GetTranscript(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}

	rebuilt, err := s.cfg.Retriever.EnsureIndexed(r.Context(), sess.CollectionName, transcript)
	if err != nil {
		if errors.Is(err, retriever.ErrNoIndex) || errors.Is(err, retriever.ErrEmptyTranscript) {
			s.writeError(w, http.StatusServiceUnavailable, "Failed to load or rebuild search index")
			return false
		}
		s.writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("search index unavailable: %v", err))
		return false
	}
	if rebuilt {
		metrics.IndexRebuildsTotal.Inc()
		s.logger.Info("search index rebuilt", "session", sess.ID, "collection", sess.CollectionName)
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("cannot encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
