// Package doltutil holds helpers shared by the store backends that are not
// tied to a single driver.
package doltutil

import (
	"fmt"
	"time"
)

// CloseTimeout bounds how long a backend may take to shut down.
// The embedded Dolt engine can block indefinitely on close.
const CloseTimeout = 5 * time.Second

// CloseWithTimeout runs closeFn, giving up after CloseTimeout.
func CloseWithTimeout(name string, closeFn func() error) error {
	return closeWithin(name, CloseTimeout, closeFn)
}

func closeWithin(name string, timeout time.Duration, closeFn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- closeFn()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close %s: %w", name, err)
		}
		return nil
	case <-timer.C:
		// The close goroutine is abandoned; the process is about to exit.
		return fmt.Errorf("%s close timed out after %v", name, timeout)
	}
}
