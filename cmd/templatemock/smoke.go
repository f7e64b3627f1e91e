package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TemplateMock/internal/client"
	"TemplateMock/pkg/kit"
)

var (
	smokeURL     string
	smokeRetries int

	smokeCmd = &cobra.Command{
		Use:   "smoke",
		Short: "Drive every endpoint of a running mock once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := kit.NewLogger(service+"-smoke", "info")
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			return runSmoke(ctx, client.New(smokeURL), smokeRetries, log)
		},
	}
)

func init() {
	smokeCmd.Flags().StringVar(&smokeURL, "url", "http://localhost:8000", "base URL of the mock")
	smokeCmd.Flags().IntVar(&smokeRetries, "retries", 5, "attempts for the listing call, which fails at random")
}

func runSmoke(ctx context.Context, c *client.Client, retries int, log *zap.Logger) error {
	h, _, err := c.Health(ctx)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	log.Info("health", zap.String("status", h.Status), zap.Int("templates", h.TemplateCount))

	list, err := listWithRetry(ctx, c, retries, log)
	if err != nil {
		return err
	}
	log.Info("list", zap.Int("count", len(list)))

	found, _, err := c.Search(ctx, "template", client.ListOptions{})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	log.Info("search", zap.Int("matches", len(found)))

	id := "smoke-" + uuid.NewString()
	if _, _, err := c.Upload(ctx, client.Upload{
		ID:          id,
		Name:        "Smoke Test",
		Description: "uploaded by templatemock smoke",
		Content:     "# smoke",
	}); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	got, timing, err := c.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get %s: %w", id, err)
	}
	log.Info("get",
		zap.String("id", got.ID),
		zap.String("category", got.Category),
		zap.Duration("process_time", timing.ProcessTime),
	)

	if _, _, err := c.Upload(ctx, client.Upload{ID: id, Name: "dup"}); !errors.Is(err, client.ErrConflict) {
		return fmt.Errorf("duplicate upload: want conflict, got %v", err)
	}

	if _, _, err := c.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if _, _, err := c.Get(ctx, id); !errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("get after delete: want not found, got %v", err)
	}

	if _, err := c.TestError(ctx, 503); !errors.Is(err, client.ErrServerFault) {
		return fmt.Errorf("test error: want server fault, got %v", err)
	}

	log.Info("smoke passed")
	return nil
}

func listWithRetry(ctx context.Context, c *client.Client, retries int, log *zap.Logger) ([]client.Template, error) {
	var lastErr error
	for attempt := 1; attempt <= max(retries, 1); attempt++ {
		list, _, err := c.List(ctx, client.ListOptions{})
		if err == nil {
			return list, nil
		}
		if !errors.Is(err, client.ErrServerFault) {
			return nil, fmt.Errorf("list: %w", err)
		}
		log.Warn("list failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("list: gave up after %d attempts: %w", retries, lastErr)
}
