package mocks

import (
	"context"

	"github.com/glowmart/cart-session/internal/bus"
	"github.com/glowmart/cart-session/internal/models"
	service "github.com/glowmart/cart-session/internal/services"
	"github.com/stretchr/testify/mock"
)

type Session struct {
	mock.Mock
}

var _ service.Session = (*Session)(nil)

func (m *Session) Load(ctx context.Context, opts service.LoadOptions) (models.CartView, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(models.CartView), args.Error(1)
}

func (m *Session) StepQuantity(ctx context.Context, lineID string, direction int) (models.CartView, error) {
	args := m.Called(ctx, lineID, direction)
	return args.Get(0).(models.CartView), args.Error(1)
}

func (m *Session) CommitQuantityEntry(ctx context.Context, lineID, raw string) (models.CartView, error) {
	args := m.Called(ctx, lineID, raw)
	return args.Get(0).(models.CartView), args.Error(1)
}

func (m *Session) RemoveLine(ctx context.Context, lineID string) (models.CartView, error) {
	args := m.Called(ctx, lineID)
	return args.Get(0).(models.CartView), args.Error(1)
}

func (m *Session) SetSelection(ctx context.Context, req models.SelectionRequest) (models.CartView, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.CartView), args.Error(1)
}

func (m *Session) ApplyVoucher(ctx context.Context, code string) (models.CartView, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(models.CartView), args.Error(1)
}

func (m *Session) ClearVoucher(ctx context.Context) (models.CartView, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.CartView), args.Error(1)
}

func (m *Session) View() models.CartView {
	args := m.Called()
	return args.Get(0).(models.CartView)
}

func (m *Session) HandleInvalidation(msg bus.Message) {
	m.Called(msg)
}

func (m *Session) Reset() {
	m.Called()
}

type SessionSource struct {
	mock.Mock
}

var _ service.SessionSource = (*SessionSource)(nil)

func (m *SessionSource) Session(userID, consumerTag string) service.Session {
	args := m.Called(userID, consumerTag)
	return args.Get(0).(service.Session)
}
