package handlers

import (
	"net/http"

	"github.com/google/uuid"
)

// ConsumerTagHeader names the UI surface (header badge, cart page, checkout)
// behind a request. The tag becomes the session's bus source tag so a
// consumer can ignore echoes of its own writes.
const ConsumerTagHeader = "X-Consumer-ID"

func consumerTag(r *http.Request) string {

	if tag := r.Header.Get(ConsumerTagHeader); tag != "" {
		return tag
	}

	// An anonymous consumer still needs a distinct tag, otherwise two
	// untagged surfaces would swallow each other's invalidations.
	return uuid.NewString()
}
