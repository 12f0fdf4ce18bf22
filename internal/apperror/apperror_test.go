package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("product", "42"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("url", "url is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "7"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "QuotaExceeded wraps ErrQuotaExceeded",
			err:       QuotaExceeded(3),
			target:    ErrQuotaExceeded,
			wantMatch: true,
		},
		{
			name:      "UnsupportedRetailer wraps ErrUnsupported",
			err:       UnsupportedRetailer("example.com"),
			target:    ErrUnsupported,
			wantMatch: true,
		},
		{
			name:      "wrapped QuotaExceeded still matches",
			err:       fmt.Errorf("adding product: %w", QuotaExceeded(3)),
			target:    ErrQuotaExceeded,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "1"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "QuotaExceeded does NOT match ErrConflict",
			err:       QuotaExceeded(3),
			target:    ErrConflict,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "12345"),
			wantMessage: "user not found with id 12345",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("target_price", "target price must be positive"),
			wantMessage: "target price must be positive",
		},
		{
			name:        "QuotaExceeded mentions the limit",
			err:         QuotaExceeded(4),
			wantMessage: "you can only track 4 products; refer friends to unlock more slots",
		},
		{
			name:        "UnsupportedRetailer quotes the host",
			err:         UnsupportedRetailer("ebay.com"),
			wantMessage: `unsupported website "ebay.com"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := QuotaExceeded(3)
	if unwrapped := err.Unwrap(); unwrapped != ErrQuotaExceeded {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrQuotaExceeded)
	}
}

func TestUnsupportedRetailerField(t *testing.T) {
	err := UnsupportedRetailer("ebay.com")
	if err.Field != "url" {
		t.Errorf("Field = %q, want %q", err.Field, "url")
	}
}
