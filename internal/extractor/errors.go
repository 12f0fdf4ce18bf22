package extractor

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrParse is matched by every error caused by the page content rather
	// than by getting it. Retrying does not help.
	ErrParse = errors.New("extractor: unusable product page")

	ErrUnknownRetailer = errors.New("extractor: unknown retailer")
)

// Kind says which required field could not be extracted.
type Kind int

const (
	MissingTitle Kind = iota + 1
	MissingPrice
)

func (k Kind) String() string {
	switch k {
	case MissingTitle:
		return "title"
	case MissingPrice:
		return "price"
	default:
		return "field"
	}
}

// ExtractionError means no selector candidate produced a required field.
type ExtractionError struct {
	Retailer string
	Kind     Kind
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extractor: %s: could not extract product %s", e.Retailer, e.Kind)
}

func (e *ExtractionError) Unwrap() error {
	return ErrParse
}

// FetchError wraps a transport failure, timeout or non-2xx response while
// getting a page. Fetch errors are transient from the caller's point of view.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extractor: fetching %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("extractor: fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary reports true: a later attempt may succeed.
func (e *FetchError) Temporary() bool {
	return true
}

// Timeout reports whether the fetch gave up because of a deadline.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// IsFetch reports whether err is, or wraps, a *FetchError.
func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsParse reports whether err came from unusable page content.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}
