package secrets

import (
	"bytes"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"microboard/internal/auth"
)

func newTestResolver(t *testing.T, dir string, production bool, env map[string]string) (*Resolver, *bytes.Buffer) {
	t.Helper()

	var logs bytes.Buffer
	r := New(Options{
		Dir:        dir,
		Production: production,
		Defaults:   map[string]string{"jwt_secret": "dev_jwt_secret_key_for_development_only"},
		LookupEnv: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	return r, &logs
}

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	t.Run("file wins over environment and is trimmed", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt_secret"), []byte("  from-file-secret-value \n"), 0o600))

		r, _ := newTestResolver(t, dir, true, map[string]string{"JWT_SECRET": "from-env"})
		v, err := r.Resolve("jwt_secret")
		require.NoError(t, err)
		require.Equal(t, "from-file-secret-value", v.Value)
		require.Equal(t, SourceFile, v.Source)
	})

	t.Run("environment used when no file", func(t *testing.T) {
		r, _ := newTestResolver(t, t.TempDir(), true, map[string]string{"JWT_SECRET": "from-env"})
		v, err := r.Resolve("jwt_secret")
		require.NoError(t, err)
		require.Equal(t, "from-env", v.Value)
		require.Equal(t, SourceEnv, v.Source)
	})

	t.Run("explicit env var name", func(t *testing.T) {
		r, _ := newTestResolver(t, t.TempDir(), false, map[string]string{"DB_PASSWORD": "pw"})
		v, err := r.ResolveEnv("auth_db_password", "DB_PASSWORD")
		require.NoError(t, err)
		require.Equal(t, "pw", v.Value)
	})

	t.Run("development falls back to default and warns", func(t *testing.T) {
		r, logs := newTestResolver(t, t.TempDir(), false, nil)
		v, err := r.Resolve("jwt_secret")
		require.NoError(t, err)
		require.Equal(t, "dev_jwt_secret_key_for_development_only", v.Value)
		require.Equal(t, SourceDefault, v.Source)
		require.Contains(t, logs.String(), "level=WARN")
		require.NotContains(t, logs.String(), "dev_jwt_secret_key_for_development_only")

		other, err := r.Resolve("smtp_host")
		require.NoError(t, err)
		require.Equal(t, "dev_smtp_host_value", other.Value)
	})

	t.Run("blank environment value is treated as absent", func(t *testing.T) {
		r, _ := newTestResolver(t, t.TempDir(), false, map[string]string{"JWT_SECRET": "   "})
		v, err := r.Resolve("jwt_secret")
		require.NoError(t, err)
		require.Equal(t, SourceDefault, v.Source)
	})
}

func TestResolveProductionWithoutSourcesIsFatal(t *testing.T) {
	t.Parallel()

	r, _ := newTestResolver(t, t.TempDir(), true, nil)
	v, err := r.Resolve("jwt_secret")
	require.Error(t, err)
	require.ErrorIs(t, err, auth.ErrSecretMissing)
	require.Empty(t, v.Value)
	require.Empty(t, r.Loaded())
}

func TestResolveCachesByName(t *testing.T) {
	t.Parallel()

	reads := 0
	r := New(Options{
		Dir: "/nonexistent",
		ReadFile: func(path string) ([]byte, error) {
			reads++
			return []byte("cached-secret-value"), nil
		},
		Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})

	first, err := r.Resolve("jwt_secret")
	require.NoError(t, err)
	second, err := r.Resolve("jwt_secret")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, reads)
	require.Len(t, r.Loaded(), 1)
}

func TestUnreadableFileInProductionIsFatal(t *testing.T) {
	t.Parallel()

	r := New(Options{
		Production: true,
		ReadFile: func(string) ([]byte, error) {
			return nil, fs.ErrPermission
		},
		LookupEnv: func(string) (string, bool) { return "from-env", true },
		Logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})

	_, err := r.Resolve("jwt_secret")
	require.ErrorIs(t, err, auth.ErrSecretMissing)
	require.ErrorIs(t, err, fs.ErrPermission)
}

func TestMask(t *testing.T) {
	t.Parallel()

	require.Equal(t, "supe****alue", Mask("jwt_secret", "super-secret-value"))
	require.Equal(t, "****", Mask("db_password", "short"))
	require.Equal(t, "****", Mask("api_gateway_key", "12345678"))
	require.Equal(t, "localhost", Mask("auth_db_host", "localhost"))

	v := Value{Name: "jwt_secret", Value: "super-secret-value", Source: SourceEnv}
	require.Equal(t, "supe****alue", v.String())
}

func TestLoggedValuesAreMasked(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt_secret"), []byte("very-long-production-secret"), 0o600))

	r, logs := newTestResolver(t, dir, true, nil)
	_, err := r.Resolve("jwt_secret")
	require.NoError(t, err)
	require.NotContains(t, logs.String(), "very-long-production-secret")
	require.Contains(t, logs.String(), "very****cret")
}

func TestRequireReportsEveryMissingSecret(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt_secret"), []byte("x"), 0o600))
	reqs := []Requirement{
		{Name: "jwt_secret"},
		{Name: "auth_db_password", EnvVar: "DB_PASSWORD"},
		{Name: "auth_db_user", EnvVar: "DB_USER"},
		{Name: "auth_service_url"},
	}

	prod, logs := newTestResolver(t, dir, true, map[string]string{"AUTH_SERVICE_URL": "http://auth:3001"})
	err := prod.Require(reqs...)
	require.ErrorIs(t, err, auth.ErrSecretMissing)
	require.Contains(t, err.Error(), "auth_db_password, auth_db_user")
	require.NotContains(t, err.Error(), "jwt_secret")
	require.NotContains(t, err.Error(), "auth_service_url")
	require.Contains(t, logs.String(), "required secret missing")

	withEnv, _ := newTestResolver(t, dir, true, map[string]string{
		"DB_PASSWORD":      "pw",
		"DB_USER":          "u",
		"AUTH_SERVICE_URL": "http://auth:3001",
	})
	require.NoError(t, withEnv.Require(reqs...))

	dev, _ := newTestResolver(t, dir, false, nil)
	require.NoError(t, dev.Require(reqs...))
}
