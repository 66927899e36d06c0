package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/feedharvest/internal/logger"
)

// navigate loads url, retrying up to Navigation.Attempts times with a
// linearly growing delay
func (p *Pipeline) navigate(ctx context.Context, url string) error {
	nav := p.config.Navigation

	var lastErr error
	for attempt := 1; attempt <= nav.Attempts; attempt++ {
		err := p.surface.Navigate(ctx, url, nav.Timeout)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		p.log.Warn("navigation failed",
			logger.String("url", url),
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", nav.Attempts),
			logger.Error(err),
		)

		if attempt < nav.Attempts {
			if err := p.surface.Wait(ctx, retryDelay(nav.RetryDelay, attempt)); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %w", ErrNavigation, url, nav.Attempts, lastErr)
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}
