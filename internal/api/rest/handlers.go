package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/dialerops/callgate-backend/internal/domain/errors"
	"github.com/dialerops/callgate-backend/internal/domain/call"
	"github.com/dialerops/callgate-backend/internal/domain/values"
	"github.com/dialerops/callgate-backend/internal/service/gate"
)

// Handler exposes the gate's admission operations over HTTP.
type Handler struct {
	gate     *gate.CallGate
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(g *gate.CallGate, logger *zap.Logger) *Handler {
	return &Handler{
		gate:     g,
		validate: validator.New(),
		logger:   logger,
	}
}

type EvaluateRequest struct {
	AccountID        string `json:"account_id" validate:"required,uuid"`
	Destination      string `json:"destination" validate:"required,e164"`
	EstimatedMinutes int64  `json:"estimated_minutes" validate:"required,min=1"`
	Timezone         string `json:"timezone" validate:"omitempty,timezone"`
}

type CommitRequest struct {
	ReservationID string `json:"reservation_id" validate:"required,uuid"`
	ActualMinutes int64  `json:"actual_minutes" validate:"min=0"`
	Outcome       string `json:"outcome" validate:"required,oneof=answered voicemail busy no_answer converted"`
}

type ReleaseRequest struct {
	ReservationID string `json:"reservation_id" validate:"required,uuid"`
}

func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !h.decode(w, r, &req) {
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		h.writeError(w, r, domainErrors.NewValidationError("INVALID_ACCOUNT_ID", "account_id must be a UUID"))
		return
	}
	destination, err := values.NewPhoneNumber(req.Destination)
	if err != nil {
		h.writeError(w, r, domainErrors.NewValidationError("INVALID_DESTINATION", err.Error()))
		return
	}

	decision, err := h.gate.Evaluate(r.Context(), accountID, destination, req.EstimatedMinutes, req.Timezone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if !h.decode(w, r, &req) {
		return
	}

	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		h.writeError(w, r, domainErrors.NewValidationError("INVALID_RESERVATION_ID", "reservation_id must be a UUID"))
		return
	}

	if err := h.gate.Commit(r.Context(), reservationID, req.ActualMinutes, call.Outcome(req.Outcome)); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "committed"})
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	var req ReleaseRequest
	if !h.decode(w, r, &req) {
		return
	}

	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		h.writeError(w, r, domainErrors.NewValidationError("INVALID_RESERVATION_ID", "reservation_id must be a UUID"))
		return
	}

	if err := h.gate.Release(r.Context(), reservationID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.writeError(w, r, domainErrors.NewValidationError("INVALID_JSON", "request body is not valid JSON"))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, validationAppError(err))
		return false
	}
	return true
}

func validationAppError(err error) *domainErrors.AppError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		appErr := domainErrors.NewValidationError("INVALID_REQUEST", "request validation failed")
		return appErr.WithDetails(map[string]interface{}{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		})
	}
	return domainErrors.NewValidationError("INVALID_REQUEST", err.Error())
}

type errorResponse struct {
	Error *domainErrors.AppError `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *domainErrors.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("unhandled error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
		)
		appErr = domainErrors.NewInternalError("an internal error occurred")
	}

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if appErr.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	h.writeJSON(w, status, errorResponse{Error: appErr})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
