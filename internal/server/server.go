package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/config"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/store"
	"github.com/MarkAustinGrow/Marvin-xAccount-monitor/internal/types"
)

const authRealm = "Marvin Account Monitor"

// Server is the operator dashboard: review queue, tweet cache browser
// and account management, behind HTTP basic auth.
type Server struct {
	config config.WebConfig
	store  store.Store
	server *http.Server
}

// New creates the dashboard server.
func New(cfg config.WebConfig, st store.Store) *Server {
	s := &Server{
		config: cfg,
		store:  st,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.auth(s.handleReviewPage))
	mux.HandleFunc("GET /accounts", s.auth(s.handleAccountsPage))
	mux.HandleFunc("GET /tweets", s.auth(s.handleTweetsPage))
	mux.HandleFunc("GET /api/accounts", s.auth(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.auth(s.handleAddAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.auth(s.handleRemoveAccount))
	mux.HandleFunc("PATCH /api/accounts/{id}/priority", s.auth(s.handleUpdatePriority))
	mux.HandleFunc("POST /api/accounts/{id}/status", s.auth(s.handleUpdateStatus))
	mux.HandleFunc("GET /api/reviews", s.auth(s.handleListReviews))
	mux.HandleFunc("GET /api/tweets", s.auth(s.handleListTweets))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("[server] Web server running on port %d", s.config.Port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// auth wraps a handler with HTTP basic auth. Comparisons are
// constant-time so credential length and prefix don't leak.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.config.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.config.Password)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", authRealm))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.AccountsToMonitor(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "accounts": accounts})
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Priority int    `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Handle == "" {
		writeError(w, http.StatusBadRequest, "Account handle is required")
		return
	}

	handle := strings.TrimPrefix(req.Handle, "@")
	if err := s.store.AddAccount(r.Context(), handle, req.Priority); err != nil {
		if err == store.ErrAccountExists {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Account @%s is already being monitored", handle))
			return
		}
		log.Printf("[server] Error adding account @%s: %v", handle, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}
	if err := s.store.RemoveAccount(r.Context(), id); err != nil {
		log.Printf("[server] Error removing account %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpdatePriority(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	var req struct {
		Priority int `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.store.UpdateAccountPriority(r.Context(), id, req.Priority); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}

	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status := types.ReviewStatus(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid status %q", req.Status))
		return
	}
	if err := s.store.UpdateReviewStatus(r.Context(), id, status, req.Notes); err != nil {
		log.Printf("[server] Error updating review entry %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ReviewEntries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	grouped := map[types.ReviewStatus][]types.ReviewEntry{
		types.ReviewPending: {},
		types.ReviewFixed:   {},
		types.ReviewIgnored: {},
	}
	for _, e := range entries {
		grouped[e.Status] = append(grouped[e.Status], e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reviews": grouped})
}

func (s *Server) handleListTweets(w http.ResponseWriter, r *http.Request) {
	groups, err := s.accountsWithTweets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "accounts": groups})
}

// accountTweets pairs an account with its cached tweets for the
// tweets view and API.
type accountTweets struct {
	Account types.Account       `json:"account"`
	Tweets  []types.CachedTweet `json:"tweets"`
}

func (s *Server) accountsWithTweets(ctx context.Context) ([]accountTweets, error) {
	accounts, err := s.store.AccountsToMonitor(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]accountTweets, 0, len(accounts))
	for _, a := range accounts {
		tweets, err := s.store.CachedTweets(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, accountTweets{Account: a, Tweets: tweets})
	}
	return out, nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
