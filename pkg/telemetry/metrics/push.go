package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the current metrics to the configured Pushgateway. One-shot
// runs use it since they exit before a scrape.
func (c *Collector) Push(ctx context.Context) error {
	if !c.config.Enabled || c.config.PushGateway == "" {
		return nil
	}
	job := c.config.Job
	if job == "" {
		job = "cleaner"
	}
	if err := push.New(c.config.PushGateway, job).Gatherer(c.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", c.config.PushGateway, err)
	}
	return nil
}
