package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/glowmart/cart-session/internal/models"
)

// GuardDecision is the outcome of validating a quantity edit for one line.
// Decisions are per line; an error on one line never blocks edits on another.
type GuardDecision struct {
	// Mutate reports whether a delta should be submitted upstream.
	Mutate bool
	// Delta is the signed quantity change to submit when Mutate is true.
	Delta int
	// ErrorMessage is the per-line validation message, empty when the edit
	// is in bounds. It is set (and later cleared) independently per line.
	ErrorMessage string
	// Transient reports a mid-typing free-text value: accepted on screen,
	// no mutation, existing error state untouched.
	Transient bool
}

func stockLimitMessage(ceiling int64) string {
	return fmt.Sprintf("Số lượng tối đa còn lại là %d.", ceiling)
}

// EvaluateStep validates a +/- stepper click. direction is +1 or -1.
func EvaluateStep(line *models.CartLine, direction int) GuardDecision {
	return evaluateCandidate(line, line.Quantity+direction)
}

// EvaluateEntry validates a free-text quantity edit. Non-numeric or empty
// input is accepted transiently (the user is mid-typing) and triggers no
// mutation until it parses to an integer.
func EvaluateEntry(line *models.CartLine, raw string) GuardDecision {

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return GuardDecision{Transient: true}
	}

	candidate, err := strconv.Atoi(trimmed)
	if err != nil {
		return GuardDecision{Transient: true}
	}

	return evaluateCandidate(line, candidate)
}

// Rule order matters: clamp below one first, then the ceiling, then the
// idempotence check.
func evaluateCandidate(line *models.CartLine, candidate int) GuardDecision {

	if candidate <= 0 {
		candidate = 1
	}

	if line.StockCeiling != nil && int64(candidate) > *line.StockCeiling {

		decision := GuardDecision{ErrorMessage: stockLimitMessage(*line.StockCeiling)}

		// Never silently go higher: if the committed quantity is still
		// below the ceiling, correct it to exactly the ceiling; if it is
		// already there, issue nothing.
		if int64(line.Quantity) < *line.StockCeiling {
			decision.Mutate = true
			decision.Delta = int(*line.StockCeiling) - line.Quantity
		}

		return decision
	}

	// Re-submitting the committed quantity issues no mutation.
	if candidate == line.Quantity {
		return GuardDecision{}
	}

	return GuardDecision{Mutate: true, Delta: candidate - line.Quantity}
}
