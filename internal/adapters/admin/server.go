// Package admin exposes the operator HTTP API: agent policy configuration,
// synthetic validation, the policy catalogue and the audit trail.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inboxagents/mail-gateway/internal/adapters/trust"
	"github.com/inboxagents/mail-gateway/internal/audit"
	"github.com/inboxagents/mail-gateway/internal/config"
	"github.com/inboxagents/mail-gateway/internal/core"
	"go.uber.org/zap"
)

// Server is the operator HTTP API.
type Server struct {
	cfg      config.AdminConfig
	security *core.SecurityLayer
	auditLog *audit.Log
	trust    *trust.MemoryStore
	logger   *zap.Logger
	httpSrv  *http.Server
}

// NewServer creates the admin server. trust may be nil when no runtime trust
// mutation is wanted.
func NewServer(
	cfg config.AdminConfig,
	security *core.SecurityLayer,
	auditLog *audit.Log,
	trustStore *trust.MemoryStore,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		security: security,
		auditLog: auditLog,
		trust:    trustStore,
		logger:   logger,
	}
}

// Handler builds the chi router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/agents", func(r chi.Router) {
		r.Get("/", s.handleListAgents)
		r.Post("/bulk", s.handleBulkConfig)
		r.Route("/{agent}", func(r chi.Router) {
			r.Get("/config", s.handleGetConfig)
			r.Put("/config", s.handlePutConfig)
			r.Patch("/policies", s.handlePatchPolicies)
		})
	})
	r.Post("/validate", s.handleValidate)
	r.Get("/policies", s.handlePolicyCatalog)
	r.Get("/audit", s.handleAudit)
	r.Put("/trust", s.handlePutTrust)

	return r
}

// Start starts the admin HTTP server
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("Admin API disabled")
		return nil
	}

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("Admin API starting", zap.String("address", s.cfg.ListenAddress))

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Admin API server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the admin HTTP server
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	configs, err := s.security.ListAgentConfigs(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"agents": configs})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	agent := chi.URLParam(r, "agent")

	cfg, err := s.security.GetAgentConfig(r.Context(), agent)
	if errors.Is(err, core.ErrConfigNotFound) {
		s.respondError(w, http.StatusNotFound, "no configuration for agent "+agent)
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var patch core.AgentConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	patch.AgentName = chi.URLParam(r, "agent")

	cfg, err := s.security.SetAgentConfig(r.Context(), patch)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePatchPolicies(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Policies []core.PolicyName `json:"policies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	patch := core.AgentConfigPatch{
		AgentName: chi.URLParam(r, "agent"),
		Policies:  &body.Policies,
	}
	cfg, err := s.security.SetAgentConfig(r.Context(), patch)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

// handleBulkConfig applies one patch to several agents in a single call.
func (s *Server) handleBulkConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Agents []string              `json:"agents"`
		Config core.AgentConfigPatch `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.Agents) == 0 {
		s.respondError(w, http.StatusBadRequest, "agents list is required")
		return
	}

	updated := make([]*core.AgentSecurityConfig, 0, len(body.Agents))
	for _, agent := range body.Agents {
		patch := body.Config
		patch.AgentName = agent
		cfg, err := s.security.SetAgentConfig(r.Context(), patch)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "agent "+agent+": "+err.Error())
			return
		}
		updated = append(updated, cfg)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"agents": updated})
}

type validateRequest struct {
	Agent string `json:"agent"`
	Owner string `json:"owner,omitempty"`
	Email struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Cc      []string `json:"cc"`
		Bcc     []string `json:"bcc"`
		Subject string   `json:"subject"`
		Body    string   `json:"body"`
	} `json:"email"`
}

// handleValidate runs the agent's policy chain against a synthetic email and
// reports the verdict without delivering anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Agent == "" {
		s.respondError(w, http.StatusBadRequest, "agent is required")
		return
	}

	email := &core.EmailData{
		From:       req.Email.From,
		To:         req.Email.To,
		Cc:         req.Email.Cc,
		Bcc:        req.Email.Bcc,
		Subject:    req.Email.Subject,
		Body:       req.Email.Body,
		ReceivedAt: time.Now(),
	}

	owner := req.Owner
	if owner == "" && len(email.To) > 0 {
		owner = email.To[0]
	}

	vctx := core.NewVisibilityContext(email, owner)
	result := s.security.ValidateRequest(r.Context(), email, vctx, req.Agent)
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handlePolicyCatalog(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"policies": core.PolicyCatalog()})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"decisions": s.auditLog.Recent(limit)})
}

func (s *Server) handlePutTrust(w http.ResponseWriter, r *http.Request) {
	if s.trust == nil {
		s.respondError(w, http.StatusNotImplemented, "trust store is not mutable")
		return
	}

	var body struct {
		Owner  string `json:"owner"`
		Sender string `json:"sender"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Owner == "" || body.Sender == "" {
		s.respondError(w, http.StatusBadRequest, "owner and sender are required")
		return
	}

	status := core.TrustStatus(body.Status)
	switch status {
	case core.TrustStatusTrusted, core.TrustStatusBlocked, core.TrustStatusUnknown:
	default:
		s.respondError(w, http.StatusBadRequest, "status must be trusted, blocked or unknown")
		return
	}

	s.trust.SetTrustStatus(body.Owner, body.Sender, status)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"owner":  body.Owner,
		"sender": body.Sender,
		"status": status,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
