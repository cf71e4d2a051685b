package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glowmart/cart-session/internal/api/handlers"
	appErrors "github.com/glowmart/cart-session/internal/errors"
	"github.com/glowmart/cart-session/internal/models"
	"github.com/glowmart/cart-session/internal/services/mocks"
	"github.com/glowmart/cart-session/internal/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeVoucherCatalog serves a scripted active voucher list.
type fakeVoucherCatalog struct {
	vouchers []models.VoucherSuggestion
	err      error
}

func (f *fakeVoucherCatalog) GetActiveVouchers(context.Context) ([]models.VoucherSuggestion, error) {
	return f.vouchers, f.err
}

func TestApplyVoucher(t *testing.T) {
	userID := uuid.New()

	newRequest := func(body string) *http.Request {
		return testutils.CreateTestRequestWithContext(
			http.MethodPost, "/api/v1/cart/voucher", bytes.NewBufferString(body), userID, nil)
	}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		sessions := new(mocks.SessionSource)
		session := new(mocks.Session)
		handler := handlers.NewVoucherHandler(sessions, &fakeVoucherCatalog{})

		applied := models.CartView{
			CartSnapshot: models.CartSnapshot{AppliedVoucherCode: "SALE10", VoucherDiscount: 5},
		}

		sessions.On("Session", userID.String(), mock.Anything).Return(session)
		session.On("ApplyVoucher", mock.Anything, "SALE10").Return(applied, nil)

		rec := httptest.NewRecorder()

		// Act
		handler.ApplyVoucher().ServeHTTP(rec, newRequest(`{"code": "SALE10"}`))

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		session.AssertExpectations(t)
	})

	t.Run("Missing code fails validation", func(t *testing.T) {
		// Arrange
		sessions := new(mocks.SessionSource)
		handler := handlers.NewVoucherHandler(sessions, &fakeVoucherCatalog{})

		rec := httptest.NewRecorder()

		// Act
		handler.ApplyVoucher().ServeHTTP(rec, newRequest(`{}`))

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		sessions.AssertNotCalled(t, "Session", mock.Anything, mock.Anything)
	})

	t.Run("Empty selection rejection surfaces", func(t *testing.T) {
		// Arrange
		sessions := new(mocks.SessionSource)
		session := new(mocks.Session)
		handler := handlers.NewVoucherHandler(sessions, &fakeVoucherCatalog{})

		sessions.On("Session", userID.String(), mock.Anything).Return(session)
		session.On("ApplyVoucher", mock.Anything, "SALE10").
			Return(models.CartView{}, appErrors.EmptySelectionError("Select at least one product before applying a voucher"))

		rec := httptest.NewRecorder()

		// Act
		handler.ApplyVoucher().ServeHTTP(rec, newRequest(`{"code": "SALE10"}`))

		// Assert
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}

		require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
		assert.Equal(t, appErrors.ErrCodeEmptySelection, envelope.Error.Code)
	})

	t.Run("Upstream rejection reason passes through", func(t *testing.T) {
		// Arrange
		sessions := new(mocks.SessionSource)
		session := new(mocks.Session)
		handler := handlers.NewVoucherHandler(sessions, &fakeVoucherCatalog{})

		sessions.On("Session", userID.String(), mock.Anything).Return(session)
		session.On("ApplyVoucher", mock.Anything, "EXPIRED").
			Return(models.CartView{}, appErrors.VoucherRejectedError("Voucher expired on 2026-01-01"))

		rec := httptest.NewRecorder()

		// Act
		handler.ApplyVoucher().ServeHTTP(rec, newRequest(`{"code": "EXPIRED"}`))

		// Assert
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}

		require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
		assert.Equal(t, "Voucher expired on 2026-01-01", envelope.Error.Message)
	})
}

func TestClearVoucher(t *testing.T) {
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		sessions := new(mocks.SessionSource)
		session := new(mocks.Session)
		handler := handlers.NewVoucherHandler(sessions, &fakeVoucherCatalog{})

		sessions.On("Session", userID.String(), mock.Anything).Return(session)
		session.On("ClearVoucher", mock.Anything).Return(models.CartView{}, nil)

		req := testutils.CreateTestRequestWithContext(http.MethodDelete, "/api/v1/cart/voucher", nil, userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.ClearVoucher().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		session.AssertExpectations(t)
	})
}

func TestSuggestions(t *testing.T) {
	userID := uuid.New()

	t.Run("Filters the catalog against the current selection", func(t *testing.T) {
		// Arrange
		sessions := new(mocks.SessionSource)
		session := new(mocks.Session)

		catalog := &fakeVoucherCatalog{vouchers: []models.VoucherSuggestion{
			{Code: "ORDER10", ApplyScope: models.ScopeOrder, IsActive: true, ApprovalStatus: models.ApprovalApproved},
			{Code: "LIPSTICK5", ApplyScope: models.ScopeProduct, IsActive: true, ApprovalStatus: models.ApprovalApproved},
		}}

		handler := handlers.NewVoucherHandler(sessions, catalog)

		view := models.CartView{
			CartSnapshot: models.CartSnapshot{
				Lines: []models.CartLine{{ID: "l1", LineTotal: 30, Selected: true}},
			},
			CalculatedSubtotal: 30,
		}

		sessions.On("Session", userID.String(), mock.Anything).Return(session)
		session.On("View").Return(view)

		req := testutils.CreateTestRequestWithContext(http.MethodGet, "/api/v1/cart/voucher-suggestions", nil, userID, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.Suggestions().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)

		var envelope struct {
			Data []models.VoucherSuggestion `json:"data"`
		}

		require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
		require.Len(t, envelope.Data, 1)
		assert.Equal(t, "ORDER10", envelope.Data[0].Code)
	})

	t.Run("Visitor gets an empty list", func(t *testing.T) {
		// Arrange
		sessions := new(mocks.SessionSource)
		handler := handlers.NewVoucherHandler(sessions, &fakeVoucherCatalog{})

		req := testutils.CreateTestRequestWithoutContext(http.MethodGet, "/api/v1/cart/voucher-suggestions", nil, nil)
		rec := httptest.NewRecorder()

		// Act
		handler.Suggestions().ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)
		sessions.AssertNotCalled(t, "Session", mock.Anything, mock.Anything)
	})
}
