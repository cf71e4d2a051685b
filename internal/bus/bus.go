// Package bus carries the cross-consumer invalidation signal. Nothing but a
// "something changed, your turn to re-fetch" marker plus the originating tag
// travels over it; every consumer re-pulls truth from the upstream API itself.
package bus

import (
	"context"
	"time"
)

const (
	ReasonMutation    = "mutation"
	ReasonCartCleared = "cart-cleared"
)

type Message struct {
	UserID    string `json:"user_id"`
	SourceTag string `json:"source_tag"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type Handler func(msg Message)

type Bus interface {
	// Fire notifies every subscriber on the user's channel, including the
	// firing consumer; subscribers filter echoes by SourceTag.
	Fire(ctx context.Context, msg Message) error
	// Subscribe registers handler for the user's channel and returns an
	// unsubscribe function. The handler runs on the subscription goroutine.
	Subscribe(ctx context.Context, userID string, handler Handler) (func(), error)
}

func now() int64 {
	return time.Now().UnixNano()
}
