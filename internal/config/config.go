package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"microboard/internal/secrets"
)

type Service string

const (
	ServiceAuth    Service = "auth"
	ServicePost    Service = "post"
	ServiceComment Service = "comment"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var defaultPorts = map[Service]string{
	ServiceAuth:    "3001",
	ServicePost:    "3002",
	ServiceComment: "3003",
}

// developmentDefaults are only ever used outside production.
var developmentDefaults = map[string]string{
	"auth_db_host":     "localhost",
	"auth_db_port":     "5432",
	"auth_db_name":     "microboard_auth_dev",
	"auth_db_user":     "dev_user",
	"auth_db_password": "dev_password_123",

	"post_db_host":     "localhost",
	"post_db_port":     "5433",
	"post_db_name":     "microboard_posts_dev",
	"post_db_user":     "dev_user",
	"post_db_password": "dev_password_123",

	"comment_db_host":     "localhost",
	"comment_db_port":     "5434",
	"comment_db_name":     "microboard_comments_dev",
	"comment_db_user":     "dev_user",
	"comment_db_password": "dev_password_123",

	"jwt_secret":       "dev_jwt_secret_key_for_development_only",
	"auth_service_url": "http://localhost:3001",
	"post_service_url": "http://localhost:3002",
}

// Config is resolved once at startup and passed explicitly to every component.
type Config struct {
	Service     Service
	Environment string
	Production  bool
	SecretsDir  string
	LogLevel    slog.Level

	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	ShutdownTimeout         time.Duration

	StoreDriver string
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	AuthServiceURL string
	PostServiceURL string
	RemoteTimeout  time.Duration

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix
	MaxPageSize    int
}

func Load(service Service) (*Config, error) {
	_ = godotenv.Load()

	environment := strings.ToLower(getEnv("APP_ENV", "development"))
	resolver := secrets.New(secrets.Options{
		Dir:        getEnv("SECRETS_DIR", secrets.DefaultDir),
		Production: environment == "production",
		Defaults:   developmentDefaults,
	})

	return LoadWithResolver(service, resolver)
}

// LoadWithResolver builds the configuration for service, pulling every
// security-sensitive value through resolver.
func LoadWithResolver(service Service, resolver *secrets.Resolver) (*Config, error) {
	if _, ok := defaultPorts[service]; !ok {
		return nil, fmt.Errorf("unknown service %q", service)
	}

	cfg := &Config{
		Service:                 service,
		Environment:             strings.ToLower(getEnv("APP_ENV", "development")),
		Production:              resolver.Production(),
		SecretsDir:              getEnv("SECRETS_DIR", secrets.DefaultDir),
		LogLevel:                getLevel("LOG_LEVEL", slog.LevelInfo),
		ServerPort:              getEnv("SERVER_PORT", defaultPorts[service]),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:         getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		StoreDriver:             strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		DBMaxConns:              int32(getInt("DB_MAX_CONNECTIONS", 20)),
		DBMinConns:              int32(getInt("DB_MIN_CONNECTIONS", 2)),
		JWTTTL:                  getDuration("JWT_EXPIRES_IN", 24*time.Hour),
		BcryptCost:              getInt("BCRYPT_ROUNDS", 12),
		RemoteTimeout:           getDuration("VERIFY_TIMEOUT", 5*time.Second),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 30),
		MaxPageSize:             getInt("MAX_PAGE_SIZE", 50),
	}

	trusted, err := parseTrustedProxies(splitCSV(getEnv("TRUSTED_PROXIES", "")))
	if err != nil {
		return nil, err
	}
	cfg.TrustedProxies = trusted

	// Report every absent production secret together before the first fatal resolve.
	if err := resolver.Require(requirements(service, cfg.StoreDriver)...); err != nil {
		return nil, err
	}

	if cfg.StoreDriver == StorePostgres {
		databaseURL, err := resolveDatabaseURL(service, resolver)
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = databaseURL
	}

	// Only the identity service holds the signing secret.
	if service == ServiceAuth {
		secret, err := resolver.Resolve("jwt_secret")
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret.Value
	}

	if service == ServicePost || service == ServiceComment {
		authURL, err := resolver.Resolve("auth_service_url")
		if err != nil {
			return nil, err
		}
		cfg.AuthServiceURL = authURL.Value
	}

	if service == ServiceComment {
		postURL, err := resolver.Resolve("post_service_url")
		if err != nil {
			return nil, err
		}
		cfg.PostServiceURL = postURL.Value
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, value := range resolver.Loaded() {
		slog.Debug("configuration secret", "secret", value)
	}
	slog.Info("configuration loaded",
		"service", cfg.Service,
		"environment", cfg.Environment,
		"secrets", len(resolver.Loaded()),
	)

	return cfg, nil
}

var databaseFields = []string{"host", "port", "name", "user", "password"}

// requirements lists the secrets service resolves at startup.
func requirements(service Service, storeDriver string) []secrets.Requirement {
	reqs := make([]secrets.Requirement, 0, 8)
	if storeDriver == StorePostgres && strings.TrimSpace(os.Getenv("DATABASE_URL")) == "" {
		for _, field := range databaseFields {
			reqs = append(reqs, secrets.Requirement{
				Name:   string(service) + "_db_" + field,
				EnvVar: "DB_" + strings.ToUpper(field),
			})
		}
	}

	switch service {
	case ServiceAuth:
		reqs = append(reqs, secrets.Requirement{Name: "jwt_secret"})
	case ServicePost:
		reqs = append(reqs, secrets.Requirement{Name: "auth_service_url"})
	case ServiceComment:
		reqs = append(reqs,
			secrets.Requirement{Name: "auth_service_url"},
			secrets.Requirement{Name: "post_service_url"})
	}
	return reqs
}

func resolveDatabaseURL(service Service, resolver *secrets.Resolver) (string, error) {
	if raw := strings.TrimSpace(os.Getenv("DATABASE_URL")); raw != "" {
		return raw, nil
	}

	prefix := string(service) + "_db_"
	parts := map[string]string{}
	for _, field := range databaseFields {
		value, err := resolver.ResolveEnv(prefix+field, "DB_"+strings.ToUpper(field))
		if err != nil {
			return "", err
		}
		parts[field] = value.Value
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(parts["user"], parts["password"]),
		Host:     parts["host"] + ":" + parts["port"],
		Path:     "/" + parts["name"],
		RawQuery: "sslmode=" + getEnv("DB_SSLMODE", "disable"),
	}
	return u.String(), nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	switch c.StoreDriver {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("database URL cannot be empty")
		}
	case StoreMemory:
		if c.Production {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.Service == ServiceAuth && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret is required")
	}

	if c.Service != ServiceAuth && strings.TrimSpace(c.AuthServiceURL) == "" {
		return fmt.Errorf("auth_service_url is required")
	}

	if c.Service == ServiceComment && strings.TrimSpace(c.PostServiceURL) == "" {
		return fmt.Errorf("post_service_url is required")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("VERIFY_TIMEOUT must be positive")
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_ROUNDS must be between 4 and 31")
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNECTIONS cannot exceed DB_MAX_CONNECTIONS")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}

	return level
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}

// parseTrustedProxies accepts CIDRs and bare addresses.
func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
