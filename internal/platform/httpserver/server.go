package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	legislativeworkflow "assembly/contexts/legislature/legislative-workflow"
	workflowerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	workflowhttp "assembly/contexts/legislature/legislative-workflow/transport/http"
	_ "assembly/internal/platform/httpserver/docs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	workflow legislativeworkflow.Module
	gatherer prometheus.Gatherer
}

// New registers every route on a fresh mux. A nil gatherer disables
// /metrics.
func New(
	workflow legislativeworkflow.Module,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		workflow: workflow,
		gatherer: gatherer,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "assembly-api")
}

// Run serves until ctx is done and then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server stopping",
			"event", "http_server_stopping",
			"module", "internal/platform/httpserver",
			"layer", "platform",
		)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.mux.HandleFunc("POST /v1/bills", s.handleSubmitBill)
	s.mux.HandleFunc("GET /v1/bills", s.handleListBills)
	s.mux.HandleFunc("GET /v1/bills/{bill_id}", s.handleGetBill)
	s.mux.HandleFunc("GET /v1/members", s.handleListMembers)
	s.mux.HandleFunc("GET /v1/members/{member_id}/bills", s.handleMemberBills)
	s.mux.HandleFunc("POST /v1/bills/{bill_id}/conference-review", s.handleOpenConferenceReview)
	s.mux.HandleFunc("POST /v1/bills/{bill_id}/conference-decision", s.handleDecideConference)
	s.mux.HandleFunc("POST /v1/bills/{bill_id}/analysis", s.handleRecordAnalysis)
	s.mux.HandleFunc("POST /v1/bills/{bill_id}/schedule", s.handleScheduleBill)

	s.mux.HandleFunc("GET /v1/plenary/session", s.handleSessionState)
	s.mux.HandleFunc("POST /v1/plenary/sessions", s.handleOpenSession)
	s.mux.HandleFunc("POST /v1/plenary/sessions/{bill_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /v1/plenary/sessions/{bill_id}/close", s.handleCloseSession)

	s.mux.HandleFunc("GET /v1/stats", s.handleStats)
	s.mux.HandleFunc("GET /v1/notifications", s.handleListNotifications)
	s.mux.HandleFunc("POST /v1/notifications/{notification_id}/read", s.handleMarkNotificationRead)
	s.mux.HandleFunc("POST /v1/convocations", s.handleSendConvocation)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitBill(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req workflowhttp.SubmitBillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.workflow.Handler.SubmitBillHandler(r.Context(), identity, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.ListBillsHandler(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.GetBillHandler(r.Context(), r.PathValue("bill_id"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.ListMembersHandler(r.Context())
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMemberBills(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.MemberBillsHandler(r.Context(), r.PathValue("member_id"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenConferenceReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	resp, err := s.workflow.Handler.OpenConferenceReviewHandler(r.Context(), identity, r.PathValue("bill_id"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDecideConference(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req workflowhttp.ConferenceDecisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.workflow.Handler.DecideConferenceHandler(r.Context(), identity, r.PathValue("bill_id"), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordAnalysis(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req workflowhttp.AnalysisRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.workflow.Handler.RecordAnalysisHandler(r.Context(), identity, r.PathValue("bill_id"), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScheduleBill(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	resp, err := s.workflow.Handler.ScheduleBillHandler(r.Context(), identity, r.PathValue("bill_id"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.SessionStateHandler(r.Context())
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req workflowhttp.OpenSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.workflow.Handler.OpenSessionHandler(r.Context(), identity, req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req workflowhttp.CastVoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.workflow.Handler.CastVoteHandler(r.Context(), identity, r.PathValue("bill_id"), req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	resp, err := s.workflow.Handler.CloseSessionHandler(r.Context(), identity, r.PathValue("bill_id"))
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.workflow.Handler.StatsHandler(r.Context())
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeWorkflowError(w, http.StatusBadRequest, "invalid_unread", "unread must be a boolean")
			return
		}
		unreadOnly = parsed
	}
	resp, err := s.workflow.Handler.ListNotificationsHandler(r.Context(), identity, unreadOnly)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := s.workflow.Handler.MarkNotificationReadHandler(r.Context(), identity, r.PathValue("notification_id")); err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendConvocation(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req workflowhttp.ConvocationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.workflow.Handler.SendConvocationHandler(r.Context(), identity, req)
	if err != nil {
		writeWorkflowDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (workflowhttp.Identity, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeWorkflowError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return workflowhttp.Identity{}, false
	}
	return workflowhttp.Identity{
		UserID:   userID,
		UserName: strings.TrimSpace(r.Header.Get("X-User-Name")),
		Role:     strings.TrimSpace(r.Header.Get("X-User-Role")),
	}, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeWorkflowError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeWorkflowDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflowerrors.ErrValidation):
		writeWorkflowError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, workflowerrors.ErrPermission):
		writeWorkflowError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, workflowerrors.ErrNotFound):
		writeWorkflowError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, workflowerrors.ErrConflict):
		writeWorkflowError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, workflowerrors.ErrPrecondition):
		writeWorkflowError(w, http.StatusPreconditionFailed, "precondition_failed", err.Error())
	case errors.Is(err, workflowerrors.ErrInvalidTransition):
		writeWorkflowError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	default:
		writeWorkflowError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeWorkflowError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, workflowhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
