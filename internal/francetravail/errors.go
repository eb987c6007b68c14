package francetravail

import "fmt"

// AuthError reports a failed client-credentials token exchange. It is fatal
// to the one call that triggered it; the next call retries the exchange.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed: status %d", e.StatusCode)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx, non-204 response from the search API.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("bad status: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("bad status: %s", e.Status)
}
