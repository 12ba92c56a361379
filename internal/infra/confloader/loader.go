package confloader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "REGMESH_"

// envPathSeparator separates path segments in environment variable names,
// so single underscores stay inside key names (verify_interval).
const envPathSeparator = "__"

// Loader reads layered configuration: file, then environment, then
// overrides. Each later layer wins.
type Loader struct {
	envPrefix string
	filePath  string
	overrides map[string]any

	mu     sync.RWMutex
	k      *koanf.Koanf
	loaded bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets values applied after the file and the environment.
// Keys are dotted paths. Nil values are skipped, so unset flags can be
// passed straight through.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		for k, v := range values {
			if v == nil {
				continue
			}
			if l.overrides == nil {
				l.overrides = make(map[string]any)
			}
			l.overrides[k] = v
		}
	}
}

// NewLoader creates a loader. Nothing is read until Load.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath returns the configuration file path, empty when none is used.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Load reads every layer and unmarshals into target. Fields absent from
// all layers keep the values target already holds.
func (l *Loader) Load(target any) error {
	if err := l.Reload(); err != nil {
		return err
	}
	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	l.mu.Lock()
	l.loaded = true
	l.mu.Unlock()
	return nil
}

// Reload discards the loaded values and reads every layer again. On error
// the previous values stay in place.
func (l *Loader) Reload() error {
	k := koanf.New(".")
	for _, layer := range l.layers() {
		if err := k.Load(layer.provider, layer.parser); err != nil {
			return fmt.Errorf("load %s: %w", layer.name, err)
		}
	}

	l.mu.Lock()
	l.k = k
	l.mu.Unlock()
	return nil
}

type layer struct {
	name     string
	provider koanf.Provider
	parser   koanf.Parser
}

func (l *Loader) layers() []layer {
	var out []layer
	if l.filePath != "" {
		out = append(out, layer{"config file " + l.filePath, file.Provider(l.filePath), yaml.Parser()})
	}
	out = append(out, layer{"env", env.Provider(l.envPrefix, ".", l.envKey), nil})
	if len(l.overrides) > 0 {
		out = append(out, layer{"overrides", mapProvider(l.overrides), nil})
	}
	return out
}

// envKey maps REGMESH_SERVER__HTTP__ADDR to server.http.addr.
func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	return strings.ReplaceAll(s, envPathSeparator, ".")
}

// Unmarshal decodes the loaded values into target using koanf tags.
func (l *Loader) Unmarshal(target any) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k.Unmarshal("", target)
}

// GetString returns the string at a dotted key, empty when unset.
func (l *Loader) GetString(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k.String(key)
}

// IsLoaded reports whether Load has succeeded once.
func (l *Loader) IsLoaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}
