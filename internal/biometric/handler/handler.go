// Package handler exposes the matching engine over HTTP. It stays thin:
// request parsing and response writing here, workflow logic in the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"biomatch/internal/biometric/models"
	"biomatch/internal/biometric/service"
	"biomatch/internal/platform/middleware"
	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
	"biomatch/pkg/platform/httputil"
	"biomatch/pkg/requestcontext"
)

// Service defines the engine operations the HTTP layer needs.
type Service interface {
	Enroll(ctx context.Context, req service.EnrollRequest) (*service.EnrollResult, error)
	Verify(ctx context.Context, req service.VerifyRequest) (*service.VerifyResult, error)
	Identify(ctx context.Context, req service.IdentifyRequest) (*service.IdentifyResult, error)
	ListTemplates(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, modality models.Modality) ([]*models.BiometricTemplate, error)
	DeactivateTemplate(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) error
	ReactivateTemplate(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) error
	DeleteTemplate(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) error
	ListAttempts(ctx context.Context, tenantID id.TenantID, subjectID *id.SubjectID, limit int) ([]*models.MatchAttempt, error)
}

// Handler handles biometric endpoints.
type Handler struct {
	engine    Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

// New creates a biometric Handler.
func New(engine Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{engine: engine, logger: logger, validator: validator}
}

// Register mounts the biometric routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Device)
	router.Use(middleware.RequireAuth(h.validator, h.logger))

	router.Post("/v1/biometrics/enroll", h.handleEnroll)
	router.Post("/v1/biometrics/verify", h.handleVerify)
	router.Post("/v1/biometrics/identify", h.handleIdentify)
	router.Get("/v1/subjects/{subjectID}/templates", h.handleListTemplates)
	router.Post("/v1/templates/{templateID}/deactivate", h.handleDeactivate)
	router.Post("/v1/templates/{templateID}/reactivate", h.handleReactivate)
	router.Delete("/v1/templates/{templateID}", h.handleDelete)
	router.Get("/v1/attempts", h.handleListAttempts)

	r.Mount("/", router)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req enrollRequest
	if err := decodeBody(r.Body, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	subjectID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	modality, err := models.ParseModality(req.Modality)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sample, err := decodeSample(req.Sample)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.engine.Enroll(ctx, service.EnrollRequest{
		TenantID:        middleware.GetTenantID(ctx),
		SubjectID:       subjectID,
		Modality:        modality,
		Sample:          sample,
		RequireLiveness: req.RequireLiveness,
	})
	if err != nil {
		h.logFailure(ctx, "enrollment failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := decodeBody(r.Body, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	subjectID, err := id.ParseSubjectID(req.SubjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	modality, err := models.ParseModality(req.Modality)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sample, err := decodeSample(req.Sample)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.engine.Verify(ctx, service.VerifyRequest{
		TenantID:        middleware.GetTenantID(ctx),
		SubjectID:       subjectID,
		Modality:        modality,
		Sample:          sample,
		RequireLiveness: req.RequireLiveness,
	})
	if err != nil {
		h.logFailure(ctx, "verification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req identifyRequest
	if err := decodeBody(r.Body, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	modality, err := models.ParseModality(req.Modality)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sample, err := decodeSample(req.Sample)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.engine.Identify(ctx, service.IdentifyRequest{
		TenantID:      middleware.GetTenantID(ctx),
		Modality:      modality,
		Sample:        sample,
		MinConfidence: req.MinConfidence,
		MaxResults:    req.MaxResults,
	})
	if err != nil {
		h.logFailure(ctx, "identification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	modality, err := models.ParseModality(r.URL.Query().Get("modality"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	templates, err := h.engine.ListTemplates(ctx, middleware.GetTenantID(ctx), subjectID, modality)
	if err != nil {
		h.logFailure(ctx, "template listing failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.mutateTemplate(w, r, h.engine.DeactivateTemplate)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.mutateTemplate(w, r, h.engine.ReactivateTemplate)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.mutateTemplate(w, r, h.engine.DeleteTemplate)
}

func (h *Handler) mutateTemplate(w http.ResponseWriter, r *http.Request, op func(context.Context, id.TenantID, id.TemplateID) error) {
	ctx := r.Context()

	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := op(ctx, middleware.GetTenantID(ctx), templateID); err != nil {
		h.logFailure(ctx, "template mutation failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var subjectID *id.SubjectID
	if raw := r.URL.Query().Get("subject_id"); raw != "" {
		parsed, err := id.ParseSubjectID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		subjectID = &parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	attempts, err := h.engine.ListAttempts(ctx, middleware.GetTenantID(ctx), subjectID, limit)
	if err != nil {
		h.logFailure(ctx, "attempt listing failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

// logFailure records workflow errors at warn; rejections are expected
// operational outcomes, not server faults.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
