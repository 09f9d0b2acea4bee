// Package secrets resolves security-sensitive configuration values from a mounted
// secrets directory, the environment, or a development default, in that order.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"microboard/internal/auth"
)

const DefaultDir = "/run/secrets"

type Source string

const (
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceDefault Source = "default"
)

type Value struct {
	Name   string
	Value  string
	Source Source
}

// Masked is the only form of a value that may appear in logs.
func (v Value) Masked() string {
	return Mask(v.Name, v.Value)
}

func (v Value) String() string {
	return v.Masked()
}

func (v Value) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", v.Name),
		slog.String("source", string(v.Source)),
		slog.String("value", v.Masked()),
	)
}

// Sensitive reports whether name looks like it holds a credential.
func Sensitive(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "secret") ||
		strings.Contains(lower, "password") ||
		strings.Contains(lower, "key")
}

// Mask keeps the first and last four characters of sensitive values longer than
// eight characters and hides everything else. Non-sensitive values pass through.
func Mask(name string, value string) string {
	if !Sensitive(name) {
		return value
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "****" + value[len(value)-4:]
}

type Options struct {
	Dir        string
	Production bool
	Defaults   map[string]string
	LookupEnv  func(string) (string, bool)
	ReadFile   func(string) ([]byte, error)
	Logger     *slog.Logger
}

type Resolver struct {
	dir        string
	production bool
	defaults   map[string]string
	lookupEnv  func(string) (string, bool)
	readFile   func(string) ([]byte, error)
	logger     *slog.Logger

	mu    sync.RWMutex
	cache map[string]Value
}

func New(opts Options) *Resolver {
	r := &Resolver{
		dir:        strings.TrimSpace(opts.Dir),
		production: opts.Production,
		defaults:   map[string]string{},
		lookupEnv:  opts.LookupEnv,
		readFile:   opts.ReadFile,
		logger:     opts.Logger,
		cache:      map[string]Value{},
	}
	if r.dir == "" {
		r.dir = DefaultDir
	}
	for name, value := range opts.Defaults {
		r.defaults[name] = value
	}
	if r.lookupEnv == nil {
		r.lookupEnv = os.LookupEnv
	}
	if r.readFile == nil {
		r.readFile = os.ReadFile
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func (r *Resolver) Production() bool {
	return r.production
}

// Resolve looks name up using the environment variable named strings.ToUpper(name)
// as the second source.
func (r *Resolver) Resolve(name string) (Value, error) {
	return r.ResolveEnv(name, strings.ToUpper(name))
}

// ResolveEnv is Resolve with an explicit environment variable name. Results are
// cached by secret name for the life of the resolver.
func (r *Resolver) ResolveEnv(name string, envVar string) (Value, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Value{}, errors.New("secret name is required")
	}

	r.mu.RLock()
	cached, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[name]; ok {
		return cached, nil
	}

	value, err := r.resolveLocked(name, envVar)
	if err != nil {
		return Value{}, err
	}
	r.cache[name] = value
	return value, nil
}

func (r *Resolver) resolveLocked(name string, envVar string) (Value, error) {
	path := filepath.Join(r.dir, name)
	data, err := r.readFile(path)
	switch {
	case err == nil:
		value := Value{Name: name, Value: strings.TrimSpace(string(data)), Source: SourceFile}
		r.logger.Info("secret loaded", "secret", value)
		return value, nil
	case !errors.Is(err, fs.ErrNotExist):
		// An unreadable mounted secret is an operator error, never a reason to fall back.
		if r.production {
			return Value{}, auth.NewError(auth.KindSecretMissing, fmt.Sprintf("read secret %s", name), err)
		}
		r.logger.Warn("secret file unreadable; trying fallbacks", "secret", name, "path", path, "error", err)
	}

	if envVar == "" {
		envVar = strings.ToUpper(name)
	}
	if raw, ok := r.lookupEnv(envVar); ok && strings.TrimSpace(raw) != "" {
		value := Value{Name: name, Value: strings.TrimSpace(raw), Source: SourceEnv}
		r.logger.Info("secret loaded from environment", "secret", value, "env", envVar)
		return value, nil
	}

	if r.production {
		return Value{}, auth.NewError(auth.KindSecretMissing,
			fmt.Sprintf("secret %s not found in %s or $%s in production", name, r.dir, envVar), nil)
	}

	value := Value{Name: name, Value: r.defaultValue(name), Source: SourceDefault}
	r.logger.Warn("using development default for secret", "secret", value)
	return value, nil
}

func (r *Resolver) defaultValue(name string) string {
	if value, ok := r.defaults[name]; ok {
		return value
	}
	return "dev_" + name + "_value"
}

// Loaded returns everything resolved so far, sorted by name.
func (r *Resolver) Loaded() []Value {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values := make([]Value, 0, len(r.cache))
	for _, value := range r.cache {
		values = append(values, value)
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Name < values[j].Name })
	return values
}

// Requirement names a secret and the environment variable that may stand in for
// its file. An empty EnvVar means strings.ToUpper(Name).
type Requirement struct {
	Name   string
	EnvVar string
}

// Require checks every requirement up front and reports all absent secrets in one
// SECRET_MISSING error. Outside production it always succeeds.
func (r *Resolver) Require(reqs ...Requirement) error {
	if !r.production {
		return nil
	}

	missing := make([]string, 0)
	for _, req := range reqs {
		if _, err := r.readFile(filepath.Join(r.dir, req.Name)); err == nil {
			continue
		}
		envVar := req.EnvVar
		if envVar == "" {
			envVar = strings.ToUpper(req.Name)
		}
		if raw, ok := r.lookupEnv(envVar); ok && strings.TrimSpace(raw) != "" {
			continue
		}
		r.logger.Error("required secret missing", "secret", req.Name, "dir", r.dir, "env", envVar)
		missing = append(missing, req.Name)
	}

	if len(missing) == 0 {
		return nil
	}
	return auth.NewError(auth.KindSecretMissing,
		fmt.Sprintf("secrets missing in production: %s", strings.Join(missing, ", ")), nil)
}
