package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/http"
	"go.uber.org/zap"
)

// WaitFor holds a readiness probe polled before a collection runs.
type WaitFor struct {
	URL      string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

// waitForService polls a URL until it returns the expected status code or times out
func (r *Runner) waitForService(ctx context.Context, cfg *WaitFor) error {
	status := cfg.Status
	if status == 0 {
		status = 200
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	url := r.resolver.Resolve(cfg.URL)

	r.logger.Info("waiting for service",
		zap.String("url", url),
		zap.Int("status", status),
		zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	var lastStatus int
	for {
		wire, err := r.client.Do(ctx, http.NewRequest("GET", url))
		if err != nil {
			lastErr = err
		} else {
			lastStatus = wire.StatusCode
			wire.Body.Close()
			if wire.StatusCode == status {
				r.logger.Info("service ready", zap.String("url", url))
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil && lastStatus == 0 {
				return fmt.Errorf("service %s not ready after %v: %v", url, timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				url, timeout, lastStatus, status)
		case <-time.After(interval):
		}
	}
}
