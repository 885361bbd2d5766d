package ctxcall

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoHonoursDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Do(ctx, func() (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do = %v, want deadline exceeded", err)
	}
}

func TestDoReturnsResult(t *testing.T) {
	v, err := Do(context.Background(), func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("Do = %d, %v", v, err)
	}

	boom := errors.New("boom")
	if _, err := Do(context.Background(), func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("Do = %v, want boom", err)
	}
}
