package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/glowmart/cart-session/internal/bus"
	"github.com/glowmart/cart-session/internal/gateway"
)

const invalidationReloadTimeout = 10 * time.Second

// SessionSource hands out the per-(user, consumer) session instances.
type SessionSource interface {
	Session(userID, consumerTag string) Session
}

// SessionRegistry lazily creates cart sessions, wires each to the
// invalidation bus for its user, and evicts sessions idle past the TTL.
type SessionRegistry struct {
	cart        gateway.CartGateway
	stock       *StockResolver
	bus         bus.Bus
	credentials CredentialProvider
	logger      *slog.Logger
	idleTTL     time.Duration

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	session     *CartSession
	unsubscribe func()
	lastSeen    time.Time
}

func NewSessionRegistry(cart gateway.CartGateway, stock *StockResolver, invalidation bus.Bus, credentials CredentialProvider, idleTTL time.Duration, logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}

	return &SessionRegistry{
		cart:        cart,
		stock:       stock,
		bus:         invalidation,
		credentials: credentials,
		logger:      logger,
		idleTTL:     idleTTL,
		entries:     make(map[string]*sessionEntry),
	}
}

func registryKey(userID, consumerTag string) string {
	return userID + "|" + consumerTag
}

// Session returns the live session for a (user, consumer) pair, creating and
// subscribing it on first use.
func (r *SessionRegistry) Session(userID, consumerTag string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey(userID, consumerTag)

	if entry, ok := r.entries[key]; ok {
		entry.lastSeen = time.Now()

		return entry.session
	}

	session := NewCartSession(userID, consumerTag, r.cart, r.stock, r.bus, r.credentials, r.logger)

	entry := &sessionEntry{session: session, lastSeen: time.Now()}

	if r.bus != nil {
		unsubscribe, err := r.bus.Subscribe(context.Background(), userID, func(msg bus.Message) {
			if msg.SourceTag == session.Tag() {
				return
			}

			// An order was placed or the user signed out elsewhere; the
			// remote cart is gone, so drop local state instead of
			// reconciling against it.
			if msg.Reason == bus.ReasonCartCleared {
				session.Reset()

				return
			}

			session.HandleInvalidation(msg)
		})
		if err != nil {
			r.logger.Error("Bus subscription failed, session will not receive invalidations",
				slog.String("user_id", userID),
				slog.String("consumer_tag", consumerTag),
				slog.String("error", err.Error()))
		} else {
			entry.unsubscribe = unsubscribe
		}
	}

	r.entries[key] = entry

	return session
}

// Drop tears down every session of a user, used on sign-out and
// cart-clearing events.
func (r *SessionRegistry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.entries {
		if entry.session.userID != userID {
			continue
		}

		if entry.unsubscribe != nil {
			entry.unsubscribe()
		}

		delete(r.entries, key)
	}
}

// Start runs the idle eviction loop until ctx is cancelled.
func (r *SessionRegistry) Start(ctx context.Context) {
	ticker := time.NewTicker(r.idleTTL / 2)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.evictIdle()
			}
		}
	}()
}

func (r *SessionRegistry) evictIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.idleTTL)

	for key, entry := range r.entries {
		if entry.lastSeen.After(cutoff) {
			continue
		}

		if entry.unsubscribe != nil {
			entry.unsubscribe()
		}

		delete(r.entries, key)

		r.logger.Debug("Evicted idle cart session", slog.String("key", key))
	}
}

// Close unsubscribes every session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.entries {
		if entry.unsubscribe != nil {
			entry.unsubscribe()
		}

		delete(r.entries, key)
	}
}
