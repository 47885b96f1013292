package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"filesmanager/internal/metrics"
	"filesmanager/internal/util"
	"filesmanager/pkg/domain"
	"filesmanager/services/api/internal/app"
)

const defaultMaxUploadBytes = 64 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
}

// Server exposes the files manager HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", metrics.Middleware("api", util.WithSecurityHeaders(util.WithCORS(s.mux)))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/stats", s.handleStats)

	// auth
	s.mux.HandleFunc("/users", s.handleRegister)
	s.mux.Handle("/users/me", s.withUser(s.handleMe))
	s.mux.HandleFunc("/connect", s.handleConnect)
	s.mux.HandleFunc("/disconnect", s.handleDisconnect)

	// files
	s.mux.Handle("/files", s.withUser(s.handleFiles))
	s.mux.HandleFunc("/files/", s.handleFileByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	health := s.app.Status(r.Context())
	status := http.StatusOK
	if !health.SessionStoreAlive || !health.MetadataStoreAlive {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, health)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Stats(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, err := s.app.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.CurrentUser(r.Context(), userID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleConnect exchanges Basic credentials for a session token.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	email, password, ok := r.BasicAuth()
	if !ok {
		s.writeAppError(w, r, app.ErrUnauthenticated)
		return
	}
	token, err := s.app.IssueToken(r.Context(), email, password)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	token := sessionToken(r)
	if _, err := s.app.ValidateToken(r.Context(), token); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.app.RevokeToken(r.Context(), token); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.app.ValidateToken(r.Context(), sessionToken(r))
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		next(w, r, userID)
	})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r, userID)
	case http.MethodGet:
		s.handleList(w, r, userID)
	default:
		methodNotAllowed(w)
	}
}

type uploadRequest struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	ParentID domain.Parent `json:"parentId"`
	IsPublic bool          `json:"isPublic"`
	Data     string        `json:"data"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, userID string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		case errors.Is(err, domain.ErrInvalidParent):
			s.writeAppError(w, r, app.ErrInvalidParent)
		default:
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
		}
		return
	}
	node, err := s.app.CreateNode(r.Context(), userID, app.CreateNodeInput{
		Name:     req.Name,
		Type:     req.Type,
		Parent:   req.ParentID,
		IsPublic: req.IsPublic,
		Data:     req.Data,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 0
	}
	nodes, err := s.app.ListChildren(r.Context(), userID, domain.ParseParent(q.Get("parentId")), page)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// /files/{id}, /files/{id}/publish, /files/{id}/unpublish, /files/{id}/data
func (s *Server) handleFileByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/files/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w)
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
			node, err := s.app.GetNode(r.Context(), userID, id)
			if err != nil {
				s.writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, node)
		}).ServeHTTP(w, r)
	case "publish", "unpublish":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		isPublic := action == "publish"
		s.withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
			node, err := s.app.SetVisibility(r.Context(), userID, id, isPublic)
			if err != nil {
				s.writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, node)
		}).ServeHTTP(w, r)
	case "data":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleData(w, r, id)
	default:
		notFound(w)
	}
}

// handleData serves node bytes. Authentication is optional: public nodes
// are readable by anyone, private ones only with the owner's token.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request, id string) {
	requesterID := ""
	if token := sessionToken(r); token != "" {
		userID, err := s.app.ValidateToken(r.Context(), token)
		switch {
		case err == nil:
			requesterID = userID
		case !errors.Is(err, app.ErrUnauthenticated):
			s.writeAppError(w, r, err)
			return
		}
	}

	width := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeAppError(w, r, app.ErrNotFound)
			return
		}
		width = n
	}

	content, err := s.app.ReadContent(r.Context(), requesterID, id, width)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Data)
}

// writeAppError maps application errors onto status codes. Anything not
// classified is an infrastructure failure and is logged, not echoed.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, app.ErrNotFound):
		notFound(w)
	case app.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// sessionToken reads X-Token, falling back to an Authorization bearer.
func sessionToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("X-Token")); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not found")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
