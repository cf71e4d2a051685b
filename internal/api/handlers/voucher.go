package handlers

import (
	"log/slog"
	"net/http"

	"github.com/glowmart/cart-session/internal/api/middleware"
	appErrors "github.com/glowmart/cart-session/internal/errors"
	"github.com/glowmart/cart-session/internal/gateway"
	"github.com/glowmart/cart-session/internal/models"
	service "github.com/glowmart/cart-session/internal/services"
	"github.com/glowmart/cart-session/internal/utils"
	"github.com/glowmart/cart-session/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type VoucherHandler struct {
	sessions  service.SessionSource
	vouchers  gateway.VoucherGateway
	validator *validator.Validate
}

func NewVoucherHandler(sessions service.SessionSource, vouchers gateway.VoucherGateway) *VoucherHandler {
	return &VoucherHandler{
		sessions:  sessions,
		vouchers:  vouchers,
		validator: validator.New(),
	}
}

func (h *VoucherHandler) ApplyVoucher() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, appErrors.UnauthorizedError("Authentication required"))
			return
		}

		var req models.ApplyVoucherRequest
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

		session := h.sessions.Session(claims.UserID.String(), consumerTag(r))

		view, err := session.ApplyVoucher(r.Context(), req.Code)
		if err != nil {
			logger.Warn("Voucher application rejected", slog.String("code", req.Code), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Voucher applied", slog.String("code", view.AppliedVoucherCode))
		response.Success(w, http.StatusOK, view)
	}
}

func (h *VoucherHandler) ClearVoucher() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, appErrors.UnauthorizedError("Authentication required"))
			return
		}

		session := h.sessions.Session(claims.UserID.String(), consumerTag(r))

		view, err := session.ClearVoucher(r.Context())
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

// Suggestions derives the vouchers worth offering against the consumer's
// current selection. Derived, never cached: it reflects whatever the session
// holds at request time.
func (h *VoucherHandler) Suggestions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.Success(w, http.StatusOK, []models.VoucherSuggestion{})
			return
		}

		session := h.sessions.Session(claims.UserID.String(), consumerTag(r))
		view := session.View()

		catalog, err := h.vouchers.GetActiveVouchers(r.Context())
		if err != nil {
			logger.Error("Voucher catalog fetch failed", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		suggestions := service.Suggest(catalog, view.CalculatedSubtotal, view.CartSnapshot.HasSelection())

		response.Success(w, http.StatusOK, suggestions)
	}
}
