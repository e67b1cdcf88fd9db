package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := QuotaExceeded("Trial limit reached")
	wrapped := fmt.Errorf("consume: %w", err)

	if !stderrors.Is(wrapped, ErrQuotaExceeded) {
		t.Fatal("expected wrapped error to match ErrQuotaExceeded")
	}
	if stderrors.Is(wrapped, ErrNotFound) {
		t.Fatal("quota error must not match ErrNotFound")
	}
}

func TestAs(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"app error", Expired("Device code expired"), ErrCodeExpired, http.StatusBadRequest},
		{"wrapped app error", fmt.Errorf("poll: %w", SlowDown()), ErrCodeSlowDown, http.StatusTooManyRequests},
		{"plain error", stderrors.New("boom"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := As(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", got.Code, tt.wantCode)
			}
			if got.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", got.StatusCode, tt.wantStatus)
			}
		})
	}

	if As(nil) != nil {
		t.Error("As(nil) should be nil")
	}
}
