package providers

import (
	"fmt"

	"github.com/sawpanic/pinevolume/internal/exchange"
)

// FetchError is returned when an exchange endpoint answers with a non-2xx status
type FetchError struct {
	Exchange   exchange.Exchange
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s GET API call failed with status %d", e.Exchange.Title(), e.StatusCode)
}

// IsRetryable returns true if the request may succeed when repeated
func (e *FetchError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ParseError is returned when a response body does not have the expected shape
type ParseError struct {
	Exchange exchange.Exchange
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %v", e.Exchange.Title(), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
