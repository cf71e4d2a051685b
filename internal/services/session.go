package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/glowmart/cart-session/internal/bus"
	appErrors "github.com/glowmart/cart-session/internal/errors"
	"github.com/glowmart/cart-session/internal/gateway"
	"github.com/glowmart/cart-session/internal/metrics"
	"github.com/glowmart/cart-session/internal/models"
)

// CredentialProvider yields the session credential for a request context,
// empty when no valid credential exists. It is consulted before every load;
// an empty credential is the unauthenticated cart state, never an error.
type CredentialProvider func(ctx context.Context) string

type LoadOptions struct {
	// SkipBroadcast suppresses the invalidation signal after the reload.
	// Invalidation-triggered reloads always set it to avoid ping-pong
	// between consumers.
	SkipBroadcast bool
	// SkipLoadingFlag keeps the Loading flag down so silent reconciliations
	// don't flicker the UI. The flag is only ever raised for the first load
	// of a session regardless.
	SkipLoadingFlag bool
	// Trigger labels the reload for metrics.
	Trigger string
}

// Session is one consumer's view of the cart: the header badge, the cart
// page and the checkout page each hold their own instance against the same
// remote truth and converge through the invalidation bus.
type Session interface {
	Load(ctx context.Context, opts LoadOptions) (models.CartView, error)
	StepQuantity(ctx context.Context, lineID string, direction int) (models.CartView, error)
	CommitQuantityEntry(ctx context.Context, lineID, raw string) (models.CartView, error)
	RemoveLine(ctx context.Context, lineID string) (models.CartView, error)
	SetSelection(ctx context.Context, req models.SelectionRequest) (models.CartView, error)
	ApplyVoucher(ctx context.Context, code string) (models.CartView, error)
	ClearVoucher(ctx context.Context) (models.CartView, error)
	View() models.CartView
	HandleInvalidation(msg bus.Message)
	Reset()
}

type CartSession struct {
	userID      string
	tag         string
	cart        gateway.CartGateway
	stock       *StockResolver
	bus         bus.Bus
	credentials CredentialProvider
	logger      *slog.Logger

	mu              sync.Mutex
	snapshot        models.CartSnapshot
	selection       map[models.LineIdentity]bool
	lineErrors      map[string]string
	lastToken       string
	loading         bool
	unauthenticated bool
	loadedOnce      bool
}

func NewCartSession(userID, tag string, cart gateway.CartGateway, stock *StockResolver, invalidation bus.Bus, credentials CredentialProvider, logger *slog.Logger) *CartSession {
	if logger == nil {
		logger = slog.Default()
	}

	return &CartSession{
		userID:      userID,
		tag:         tag,
		cart:        cart,
		stock:       stock,
		bus:         invalidation,
		credentials: credentials,
		logger:      logger.With(slog.String("user_id", userID), slog.String("consumer_tag", tag)),
		selection:   make(map[models.LineIdentity]bool),
		lineErrors:  make(map[string]string),
	}
}

// Tag returns the source tag this session stamps on its own broadcasts.
func (s *CartSession) Tag() string {
	return s.tag
}

func (s *CartSession) Load(ctx context.Context, opts LoadOptions) (models.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(ctx, opts)
}

func (s *CartSession) loadLocked(ctx context.Context, opts LoadOptions) (models.CartView, error) {

	token := s.tokenLocked(ctx)
	if token == "" {
		s.becomeUnauthenticatedLocked()

		return s.viewLocked(), nil
	}

	s.lastToken = token
	s.unauthenticated = false

	showLoading := !opts.SkipLoadingFlag && !s.loadedOnce
	if showLoading {
		s.loading = true
	}

	snapshot, err := s.fetchLocked(ctx, token)

	s.loading = false

	if err != nil {

		// 401/403 is "no session", not a failure: empty cart, no error
		// surfaced.
		if appErrors.IsAuthStatus(err) {
			s.becomeUnauthenticatedLocked()

			return s.viewLocked(), nil
		}

		s.snapshot = models.CartSnapshot{}

		s.logger.Error("Cart load failed", slog.String("error", err.Error()))

		return s.viewLocked(), appErrors.UpstreamError("Failed to load cart, please try again").WithError(err)
	}

	s.snapshot = *snapshot
	s.loadedOnce = true
	s.pruneLocked()

	// Selecting nothing must never leave a discount silently active: when
	// the merged selection is empty but the server still reports a voucher,
	// clear it upstream and take a fresh snapshot.
	if !s.snapshot.HasSelection() && s.snapshot.AppliedVoucherCode != "" {
		if err := s.cart.ClearVoucher(ctx, token); err != nil {
			s.logger.Warn("Auto voucher clear failed", slog.String("error", err.Error()))
		} else if refreshed, err := s.fetchLocked(ctx, token); err == nil {
			s.snapshot = *refreshed
			s.pruneLocked()
		}
	}

	trigger := opts.Trigger
	if trigger == "" {
		trigger = "manual"
	}

	metrics.CartReloads.WithLabelValues(trigger).Inc()

	if !opts.SkipBroadcast {
		s.fireLocked(ctx, bus.ReasonMutation)
	}

	return s.viewLocked(), nil
}

// fetchLocked pulls server truth, resolves stock ceilings and re-joins the
// client-local selection flags by line identity. A freshly added line
// defaults to unselected.
func (s *CartSession) fetchLocked(ctx context.Context, token string) (*models.CartSnapshot, error) {

	snapshot, err := s.cart.GetCart(ctx, token)
	if err != nil {
		return nil, err
	}

	snapshot.Lines = s.stock.Enrich(ctx, snapshot.Lines)

	for i := range snapshot.Lines {
		snapshot.Lines[i].Selected = s.selection[snapshot.Lines[i].Identity()]
	}

	return snapshot, nil
}

func (s *CartSession) StepQuantity(ctx context.Context, lineID string, direction int) (models.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.lineLocked(lineID)
	if line == nil {
		return s.viewLocked(), appErrors.NotFoundError("Cart line not found")
	}

	return s.applyDecisionLocked(ctx, line, EvaluateStep(line, direction))
}

func (s *CartSession) CommitQuantityEntry(ctx context.Context, lineID, raw string) (models.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.lineLocked(lineID)
	if line == nil {
		return s.viewLocked(), appErrors.NotFoundError("Cart line not found")
	}

	return s.applyDecisionLocked(ctx, line, EvaluateEntry(line, raw))
}

func (s *CartSession) applyDecisionLocked(ctx context.Context, line *models.CartLine, decision GuardDecision) (models.CartView, error) {

	if decision.Transient {
		return s.viewLocked(), nil
	}

	// Error transitions are per line: a later in-bounds edit clears only
	// this line's error.
	if decision.ErrorMessage != "" {
		s.lineErrors[line.ID] = decision.ErrorMessage
	} else {
		delete(s.lineErrors, line.ID)
	}

	if !decision.Mutate {
		if decision.ErrorMessage != "" {
			return s.viewLocked(), appErrors.StockLimitError(decision.ErrorMessage)
		}

		return s.viewLocked(), nil
	}

	// Mutate before deriving the view: the trailing reload inside
	// mutateLocked replaces the snapshot, and the caller must see that, not
	// the pre-mutation state.
	err := s.mutateLocked(ctx, line, decision.Delta)

	return s.viewLocked(), err
}

func (s *CartSession) RemoveLine(ctx context.Context, lineID string) (models.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.lineLocked(lineID)
	if line == nil {
		return s.viewLocked(), appErrors.NotFoundError("Cart line not found")
	}

	delete(s.lineErrors, line.ID)

	// There is no distinct delete endpoint: driving the quantity to zero
	// makes the remote cart drop the line.
	err := s.mutateLocked(ctx, line, -line.Quantity)

	return s.viewLocked(), err
}

// mutateLocked applies the optimistic local rewrite, submits the signed delta
// upstream, then unconditionally reloads server truth, discarding the
// optimistic guess whether the call succeeded or not.
func (s *CartSession) mutateLocked(ctx context.Context, line *models.CartLine, delta int) error {

	token := s.tokenLocked(ctx)
	if token == "" {
		s.becomeUnauthenticatedLocked()

		return appErrors.UnauthorizedError("Session expired")
	}

	// The snapshot is replaced by the trailing reload; keep what the
	// gateway call needs before the line pointer goes stale.
	productID, variantCode := line.ProductID, line.VariantCode

	candidate := line.Quantity + delta
	if candidate <= 0 {
		s.dropLineLocked(line.ID)
	} else {
		line.Quantity = candidate
		line.LineTotal = line.UnitPrice * float64(candidate)
	}

	gwErr := s.cart.AdjustLine(ctx, token, productID, delta, variantCode)

	if _, err := s.loadLocked(ctx, LoadOptions{SkipLoadingFlag: true, Trigger: "mutation"}); err != nil {
		s.logger.Warn("Trailing reload after mutation failed", slog.String("error", err.Error()))
	}

	if gwErr != nil {
		s.logger.Warn("Quantity mutation failed, cart re-synchronized",
			slog.String("product_id", productID),
			slog.Int("delta", delta),
			slog.String("error", gwErr.Error()))

		// The trailing reload already healed the view; all the caller
		// needs is a retryable notification.
		return appErrors.UpstreamError("Could not update the cart, it has been refreshed").WithError(gwErr)
	}

	return nil
}

// SetSelection is a pure local mutation: no network call, but derived totals
// are recomputed synchronously and an emptied selection triggers the voucher
// auto-clear.
func (s *CartSession) SetSelection(ctx context.Context, req models.SelectionRequest) (models.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.All {
		for i := range s.snapshot.Lines {
			s.selection[s.snapshot.Lines[i].Identity()] = req.Selected
			s.snapshot.Lines[i].Selected = req.Selected
		}
	} else {
		line := s.lineLocked(req.LineID)
		if line == nil {
			return s.viewLocked(), appErrors.NotFoundError("Cart line not found")
		}

		s.selection[line.Identity()] = req.Selected
		line.Selected = req.Selected
	}

	if !s.snapshot.HasSelection() && s.snapshot.AppliedVoucherCode != "" {
		token := s.tokenLocked(ctx)
		if token != "" {
			if err := s.cart.ClearVoucher(ctx, token); err != nil {
				s.logger.Warn("Auto voucher clear failed", slog.String("error", err.Error()))
			} else if _, err := s.loadLocked(ctx, LoadOptions{SkipLoadingFlag: true, Trigger: "voucher"}); err != nil {
				s.logger.Warn("Reload after voucher clear failed", slog.String("error", err.Error()))
			}
		}
	}

	return s.viewLocked(), nil
}

func (s *CartSession) ApplyVoucher(ctx context.Context, code string) (models.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A voucher cannot be applied to an empty selection; reject locally,
	// no network call.
	if !s.snapshot.HasSelection() {
		return s.viewLocked(), appErrors.EmptySelectionError("Select at least one product before applying a voucher")
	}

	token := s.tokenLocked(ctx)
	if token == "" {
		s.becomeUnauthenticatedLocked()

		return s.viewLocked(), appErrors.UnauthorizedError("Session expired")
	}

	result, err := s.cart.ApplyVoucher(ctx, token, code)
	if err != nil {
		// Rejection reason surfaces verbatim; state stays at
		// last-known-good.
		return s.viewLocked(), err
	}

	// Applying always supersedes, never stacks: the upstream response
	// carries the single voucher now active for the whole cart.
	s.snapshot.AppliedVoucherCode = result.AppliedVoucherCode
	s.snapshot.VoucherDiscount = result.VoucherDiscount
	s.snapshot.Total = result.TotalAmount

	if _, err := s.loadLocked(ctx, LoadOptions{SkipLoadingFlag: true, Trigger: "voucher"}); err != nil {
		s.logger.Warn("Reload after voucher apply failed", slog.String("error", err.Error()))
	}

	return s.viewLocked(), nil
}

func (s *CartSession) ClearVoucher(ctx context.Context) (models.CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.tokenLocked(ctx)
	if token == "" {
		s.becomeUnauthenticatedLocked()

		return s.viewLocked(), nil
	}

	if err := s.cart.ClearVoucher(ctx, token); err != nil {
		return s.viewLocked(), appErrors.UpstreamError("Could not remove the voucher").WithError(err)
	}

	if _, err := s.loadLocked(ctx, LoadOptions{SkipLoadingFlag: true, Trigger: "voucher"}); err != nil {
		s.logger.Warn("Reload after voucher clear failed", slog.String("error", err.Error()))
	}

	return s.viewLocked(), nil
}

func (s *CartSession) View() models.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.viewLocked()
}

// HandleInvalidation reacts to a bus message. The session ignores echoes of
// its own writes and silently re-pulls truth for everything else.
func (s *CartSession) HandleInvalidation(msg bus.Message) {

	if msg.SourceTag == s.tag {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidationReloadTimeout)
	defer cancel()

	if _, err := s.Load(ctx, LoadOptions{SkipBroadcast: true, SkipLoadingFlag: true, Trigger: "invalidation"}); err != nil {
		s.logger.Warn("Invalidation reload failed", slog.String("error", err.Error()))
	}
}

// Reset empties the session, used on sign-out and cart-clearing events.
func (s *CartSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = models.CartSnapshot{}
	s.selection = make(map[models.LineIdentity]bool)
	s.lineErrors = make(map[string]string)
	s.lastToken = ""
	s.loadedOnce = false
	s.loading = false
}

// tokenLocked resolves the session credential. Bus-delivered invalidations
// arrive on a background context carrying no request credential, so the
// session falls back to the one it last authenticated with.
func (s *CartSession) tokenLocked(ctx context.Context) string {
	if token := s.credentials(ctx); token != "" {
		return token
	}

	return s.lastToken
}

func (s *CartSession) becomeUnauthenticatedLocked() {
	s.unauthenticated = true
	s.snapshot = models.CartSnapshot{}
	s.lineErrors = make(map[string]string)
	s.lastToken = ""
	s.loading = false
}

func (s *CartSession) lineLocked(lineID string) *models.CartLine {
	for i := range s.snapshot.Lines {
		if s.snapshot.Lines[i].ID == lineID {
			return &s.snapshot.Lines[i]
		}
	}

	return nil
}

func (s *CartSession) dropLineLocked(lineID string) {
	for i := range s.snapshot.Lines {
		if s.snapshot.Lines[i].ID == lineID {
			s.snapshot.Lines = append(s.snapshot.Lines[:i], s.snapshot.Lines[i+1:]...)

			return
		}
	}
}

// pruneLocked drops selection and error entries for lines that no longer
// exist in the snapshot.
func (s *CartSession) pruneLocked() {

	kept := make(map[models.LineIdentity]bool, len(s.snapshot.Lines))
	ids := make(map[string]struct{}, len(s.snapshot.Lines))

	for i := range s.snapshot.Lines {
		identity := s.snapshot.Lines[i].Identity()
		if s.selection[identity] {
			kept[identity] = true
		}

		ids[s.snapshot.Lines[i].ID] = struct{}{}
	}

	s.selection = kept

	for lineID := range s.lineErrors {
		if _, ok := ids[lineID]; !ok {
			delete(s.lineErrors, lineID)
		}
	}
}

func (s *CartSession) fireLocked(ctx context.Context, reason string) {

	if s.bus == nil {
		return
	}

	msg := bus.Message{UserID: s.userID, SourceTag: s.tag, Reason: reason}

	if err := s.bus.Fire(ctx, msg); err != nil {
		s.logger.Warn("Invalidation broadcast failed", slog.String("error", err.Error()))
	}
}

// viewLocked derives the figures checkout must use: the raw snapshot totals
// cover the whole cart, the derived ones only the selected subset.
func (s *CartSession) viewLocked() models.CartView {

	view := models.CartView{
		CartSnapshot: models.CartSnapshot{
			Lines:              make([]models.CartLine, len(s.snapshot.Lines)),
			Subtotal:           s.snapshot.Subtotal,
			VoucherDiscount:    s.snapshot.VoucherDiscount,
			Total:              s.snapshot.Total,
			AppliedVoucherCode: s.snapshot.AppliedVoucherCode,
		},
		Loading:           s.loading,
		IsUnauthenticated: s.unauthenticated,
	}

	copy(view.Lines, s.snapshot.Lines)

	for i := range view.Lines {
		if view.Lines[i].Selected {
			view.CalculatedSubtotal += view.Lines[i].LineTotal
		}
	}

	if view.CartSnapshot.HasSelection() {
		view.EffectiveDiscount = s.snapshot.VoucherDiscount
	}

	view.CalculatedTotal = view.CalculatedSubtotal - view.EffectiveDiscount
	if view.CalculatedTotal < 0 {
		view.CalculatedTotal = 0
	}

	if len(s.lineErrors) > 0 {
		view.LineErrors = make(map[string]string, len(s.lineErrors))
		for lineID, message := range s.lineErrors {
			view.LineErrors[lineID] = message
		}
	}

	return view
}
