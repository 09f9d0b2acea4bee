package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"microboard/internal/secrets"
)

func TestPrettyHandlerLevelsAndAttrs(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	log := slog.New(NewPrettyHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("hidden")
	require.Empty(t, out.String())

	log.With("service", "auth").WithGroup("req").Warn("rejected", "status", 401)
	require.Contains(t, out.String(), "rejected")
	require.Contains(t, out.String(), "service")
	require.Contains(t, out.String(), "req.status")
}

func TestPrettyHandlerMasksSecrets(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	log := slog.New(NewPrettyHandler(&out, nil))

	log.Info("secret loaded", "secret", secrets.Value{Name: "jwt_secret", Value: "a-very-long-signing-secret", Source: secrets.SourceFile})
	require.NotContains(t, out.String(), "a-very-long-signing-secret")
	require.Contains(t, out.String(), "a-ve****cret")
	require.Contains(t, out.String(), "secret.source")
}
