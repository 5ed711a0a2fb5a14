package doltutil

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCloseWithin(t *testing.T) {
	t.Run("returns close error", func(t *testing.T) {
		boom := errors.New("boom")
		err := closeWithin("store", time.Second, func() error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped boom, got %v", err)
		}
	})

	t.Run("nil on success", func(t *testing.T) {
		if err := closeWithin("store", time.Second, func() error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("times out", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		err := closeWithin("store", 10*time.Millisecond, func() error {
			<-release
			return nil
		})
		if err == nil || !strings.Contains(err.Error(), "timed out") {
			t.Fatalf("expected timeout error, got %v", err)
		}
	})
}
