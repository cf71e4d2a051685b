package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/glowmart/cart-session/internal/api/middleware"
	appErrors "github.com/glowmart/cart-session/internal/errors"
	"github.com/glowmart/cart-session/internal/limiter"
	"github.com/glowmart/cart-session/internal/models"
	service "github.com/glowmart/cart-session/internal/services"
	"github.com/glowmart/cart-session/internal/utils"
	"github.com/glowmart/cart-session/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type CartHandler struct {
	sessions  service.SessionSource
	limiter   limiter.MutationLimiter
	validator *validator.Validate
}

func NewCartHandler(sessions service.SessionSource, mutationLimiter limiter.MutationLimiter) *CartHandler {
	return &CartHandler{
		sessions:  sessions,
		limiter:   mutationLimiter,
		validator: validator.New(),
	}
}

// GetCart reconciles and returns the consumer's cart view. Visitors without
// a session credential get an empty unauthenticated view, not an error.
func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Success(w, http.StatusOK, models.CartView{IsUnauthenticated: true})
			return
		}

		session := h.sessions.Session(claims.UserID.String(), consumerTag(r))

		// A plain read must not invalidate sibling consumers.
		view, err := session.Load(r.Context(), service.LoadOptions{SkipBroadcast: true, Trigger: "initial"})
		if err != nil {
			logger.Error("Cart load failed", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

// StepQuantity handles a +/- stepper click on one line.
func (h *CartHandler) StepQuantity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		session, claims, ok := h.requireSession(w, r)
		if !ok {
			return
		}

		lineID := r.PathValue("id")
		if lineID == "" {
			response.Error(w, appErrors.BadRequestError("Line ID is required"))
			return
		}

		var req models.StepQuantityRequest
		if err := utils.DecodeJSONBody(r, &req); err != nil {
			response.Error(w, appErrors.BadRequestError(err.Error()))
			return
		}

		if err := h.validator.Struct(req); err != nil {
			if validationErrs, ok := err.(validator.ValidationErrors); ok {
				response.ValidationError(w, validationErrs)
				return
			}

			response.Error(w, appErrors.ValidationError("Invalid request"))
			return
		}

		if !h.allowMutation(w, r, claims.UserID.String(), lineID) {
			return
		}

		view, err := session.StepQuantity(r.Context(), lineID, req.Direction)
		if err != nil {
			logger.Warn("Quantity step rejected", slog.String("line_id", lineID), slog.String("error", err.Error()))
			h.writeMutationOutcome(w, view, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

// CommitQuantity handles a free-text quantity entry for one line.
func (h *CartHandler) CommitQuantity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		session, claims, ok := h.requireSession(w, r)
		if !ok {
			return
		}

		lineID := r.PathValue("id")
		if lineID == "" {
			response.Error(w, appErrors.BadRequestError("Line ID is required"))
			return
		}

		var req models.CommitQuantityRequest
		if err := utils.DecodeJSONBody(r, &req); err != nil {
			response.Error(w, appErrors.BadRequestError(err.Error()))
			return
		}

		if !h.allowMutation(w, r, claims.UserID.String(), lineID) {
			return
		}

		view, err := session.CommitQuantityEntry(r.Context(), lineID, req.Value)
		if err != nil {
			logger.Warn("Quantity entry rejected", slog.String("line_id", lineID), slog.String("error", err.Error()))
			h.writeMutationOutcome(w, view, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

func (h *CartHandler) RemoveLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		session, _, ok := h.requireSession(w, r)
		if !ok {
			return
		}

		lineID := r.PathValue("id")
		if lineID == "" {
			response.Error(w, appErrors.BadRequestError("Line ID is required"))
			return
		}

		view, err := session.RemoveLine(r.Context(), lineID)
		if err != nil {
			logger.Warn("Line removal failed", slog.String("line_id", lineID), slog.String("error", err.Error()))
			h.writeMutationOutcome(w, view, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

func (h *CartHandler) UpdateSelection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		session, _, ok := h.requireSession(w, r)
		if !ok {
			return
		}

		var req models.SelectionRequest
		if err := utils.DecodeJSONBody(r, &req); err != nil {
			response.Error(w, appErrors.BadRequestError(err.Error()))
			return
		}

		if !req.All && req.LineID == "" {
			response.Error(w, appErrors.BadRequestError("Either line_id or all must be set"))
			return
		}

		view, err := session.SetSelection(r.Context(), req)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

func (h *CartHandler) requireSession(w http.ResponseWriter, r *http.Request) (service.Session, *models.Claims, bool) {

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, appErrors.UnauthorizedError("Authentication required"))
		return nil, nil, false
	}

	return h.sessions.Session(claims.UserID.String(), consumerTag(r)), claims, true
}

func (h *CartHandler) allowMutation(w http.ResponseWriter, r *http.Request, userID, lineID string) bool {

	if h.limiter == nil {
		return true
	}

	allowed, retryAfter, err := h.limiter.Allow(r.Context(), userID, lineID)
	if err != nil {
		// The limiter is a backstop, not a gate; fail open.
		middleware.LoggerFromContext(r.Context()).Warn("Mutation limiter unavailable", slog.String("error", err.Error()))
		return true
	}

	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		response.Error(w, appErrors.TooManyRequestsError("Too many quantity changes, slow down"))
		return false
	}

	return true
}

// writeMutationOutcome still returns the (self-healed) view alongside the
// error so the UI can render both the notification and current truth.
func (h *CartHandler) writeMutationOutcome(w http.ResponseWriter, view models.CartView, err error) {

	statusCode := http.StatusInternalServerError

	appErr, ok := appErrors.IsAppError(err)
	if ok {
		statusCode = appErr.StatusCode
	}

	body := response.APIResponse{
		Success: false,
		Data:    view,
	}

	if ok {
		body.Error = &response.ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	} else {
		body.Error = &response.ErrorResponse{Code: appErrors.ErrCodeInternal, Message: "An unexpected error occured"}
	}

	response.WriteJson(w, statusCode, body)
}
