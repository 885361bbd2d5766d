package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Internal, http.StatusInternalServerError},
		{Validation, http.StatusBadRequest},
		{AuthRequired, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{InsufficientCredits, http.StatusPaymentRequired},
		{Upstream, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := StatusOf(tc.kind); got != tc.want {
			t.Errorf("StatusOf(%d) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestWithStatusKeepsIdentity(t *testing.T) {
	base := New(Upstream, "Payment gateway unavailable", "try later")
	cp := base.WithStatus(http.StatusTooManyRequests)
	if cp.HTTPStatus() != http.StatusTooManyRequests || base.HTTPStatus() != http.StatusServiceUnavailable {
		t.Fatalf("status = %d/%d", cp.HTTPStatus(), base.HTTPStatus())
	}
	wrapped := fmt.Errorf("create order: %w", cp)
	if !errors.Is(wrapped, base) {
		t.Error("copy should match the sentinel")
	}
}
