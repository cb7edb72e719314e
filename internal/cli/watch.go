package cli

import (
	"context"
	"log/slog"
)

// WatchTemplates reloads the stack's prompt templates whenever their
// directory changes, until ctx is done. It is a no-op for built-in templates.
func WatchTemplates(ctx context.Context, stack *Stack, logger *slog.Logger) error {
	if stack.Templates == nil {
		return nil
	}
	changes, err := stack.Templates.Watch(ctx, stack.Prompts, func(err error) {
		logger.Error("Template reload failed, keeping previous templates", "err", err)
	})
	if err != nil {
		return err
	}

	go func() {
		for id := range changes {
			logger.Info("Templates reloaded", "changed", id, "templates", stack.Prompts.IDs())
		}
	}()
	return nil
}
