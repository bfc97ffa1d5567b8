package dispatch

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mitto/internal/interfaces"
)

// defaultTimeout bounds a single upload or download round-trip.
const defaultTimeout = 5 * time.Minute

// newHTTPClient creates a simple HTTP client with a timeout
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// ForAdapter returns the dispatcher implementing the named adapter.
func ForAdapter(name string, logger arbor.ILogger) (interfaces.Dispatcher, error) {
	switch name {
	case "client":
		return NewClientDispatcher(logger), nil
	case "jobd":
		return NewJobdDispatcher(logger), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
}
