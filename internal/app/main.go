package app

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"microboard/internal/auth"
	"microboard/internal/config"
	"microboard/internal/logger"
)

// Main is the body of every service binary. It returns the process exit code.
func Main(service config.Service) int {
	logger.Setup(os.Stdout, slog.LevelInfo, string(service))

	cfg, err := config.Load(service)
	if err != nil {
		if errors.Is(err, auth.ErrSecretMissing) {
			slog.Error("refusing to start without required secrets", "error", err)
		} else {
			slog.Error("failed to load config", "error", err)
		}
		return 1
	}
	logger.Setup(os.Stdout, cfg.LogLevel, string(service))

	application, err := New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		return 1
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		return 1
	}
	return 0
}
