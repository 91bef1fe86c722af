// Package admin exposes the control surface: thin HTTP triggers into the
// pipeline (force-poll, trigger-digest, channel management, review
// decisions, the realtime message entry point). No pipeline logic lives here.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/leadsignal/intel-bot/internal/approval"
	coreerrors "github.com/leadsignal/intel-bot/internal/core/errors"
	"github.com/leadsignal/intel-bot/internal/digest"
	"github.com/leadsignal/intel-bot/internal/poller"
	"github.com/leadsignal/intel-bot/internal/registry"
)

const shutdownTimeout = 5 * time.Second

// Server wires the control endpoints.
type Server struct {
	port      int
	poller    *poller.Poller
	generator *digest.Generator
	registry  *registry.Registry
	approvals *approval.Handler
	logger    *zerolog.Logger
}

func NewServer(port int, p *poller.Poller, g *digest.Generator, r *registry.Registry, a *approval.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		port:      port,
		poller:    p,
		generator: g,
		registry:  r,
		approvals: a,
		logger:    logger,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/poll", s.handleForcePoll)
		r.Post("/digest", s.handleTriggerDigest)

		r.Get("/channels", s.handleListChannels)
		r.Post("/channels", s.handleAddChannel)
		r.Delete("/channels/{channelID}", s.handleRemoveChannel)
		r.Put("/channels/{channelID}/account", s.handleSetAccount)
		r.Post("/channels/{channelID}/rename", s.handleRename)

		r.Post("/items/{itemID}/approve", s.handleApprove)
		r.Post("/items/{itemID}/reject", s.handleReject)
		r.Post("/items/approve", s.handleBulkApprove)
		r.Post("/items/reject", s.handleBulkReject)

		r.Post("/events/message", s.handleRealtimeMessage)
	})

	return r
}

func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("admin server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server error: %w", err)
	}

	return nil
}

func (s *Server) handleForcePoll(w http.ResponseWriter, r *http.Request) {
	stats, err := s.poller.RunOnce(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTriggerDigest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Destination string `json:"destination"`
	}

	_ = json.NewDecoder(r.Body).Decode(&req)

	summary, err := s.generator.RunOnce(r.Context(), req.Destination)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleAddChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID   string `json:"channel_id"`
		ChannelName string `json:"channel_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" || req.ChannelName == "" {
		http.Error(w, "channel_id and channel_name are required", http.StatusBadRequest)

		return
	}

	ch, err := s.registry.Register(r.Context(), req.ChannelID, req.ChannelName)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleRemoveChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Unregister(r.Context(), chi.URLParam(r, "channelID")); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountName string `json:"account_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountName == "" {
		http.Error(w, "account_name is required", http.StatusBadRequest)

		return
	}

	if err := s.registry.SetAccount(r.Context(), chi.URLParam(r, "channelID"), req.AccountName); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelName string `json:"channel_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelName == "" {
		http.Error(w, "channel_name is required", http.StatusBadRequest)

		return
	}

	if err := s.registry.OnRename(r.Context(), chi.URLParam(r, "channelID"), req.ChannelName); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	reviewedBy := s.reviewer(r)
	if err := s.approvals.ApproveAndSync(r.Context(), chi.URLParam(r, "itemID"), reviewedBy); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	reviewedBy := s.reviewer(r)
	if err := s.approvals.Reject(r.Context(), chi.URLParam(r, "itemID"), reviewedBy); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	ids, reviewedBy, ok := s.decodeBulk(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, s.approvals.ApproveAll(r.Context(), ids, reviewedBy))
}

func (s *Server) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	ids, reviewedBy, ok := s.decodeBulk(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, s.approvals.RejectAll(r.Context(), ids, reviewedBy))
}

func (s *Server) handleRealtimeMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
		MessageTS string `json:"message_ts"`
		Text      string `json:"text"`
		AuthorID  string `json:"author_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" || req.MessageTS == "" {
		http.Error(w, "channel_id and message_ts are required", http.StatusBadRequest)

		return
	}

	created, err := s.poller.ProcessRealtime(r.Context(), req.ChannelID, req.MessageTS, req.Text, req.AuthorID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"created": created})
}

func (s *Server) decodeBulk(w http.ResponseWriter, r *http.Request) ([]string, string, bool) {
	var req struct {
		IDs        []string `json:"ids"`
		ReviewedBy string   `json:"reviewed_by"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		http.Error(w, "ids are required", http.StatusBadRequest)

		return nil, "", false
	}

	if req.ReviewedBy == "" {
		req.ReviewedBy = "admin"
	}

	return req.IDs, req.ReviewedBy, true
}

func (s *Server) reviewer(r *http.Request) string {
	var req struct {
		ReviewedBy string `json:"reviewed_by"`
	}

	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.ReviewedBy == "" {
		return "admin"
	}

	return req.ReviewedBy
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, coreerrors.ErrChannelNotFound), errors.Is(err, coreerrors.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, coreerrors.ErrNoLinkedAccount), errors.Is(err, coreerrors.ErrNotPending),
		errors.Is(err, coreerrors.ErrDailyCapReached):
		status = http.StatusConflict
	case errors.Is(err, coreerrors.ErrMonitoringDisabled):
		status = http.StatusServiceUnavailable
	}

	http.Error(w, err.Error(), status)
}
