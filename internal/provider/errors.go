package provider

import "fmt"

// APIError is the failure a provider call escalates to its caller. RateLimited
// marks the transient class that is worth retrying inside a single call; every
// other API error advances the fallback chain immediately.
type APIError struct {
	Provider    string
	Status      int
	Message     string
	RateLimited bool
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}
