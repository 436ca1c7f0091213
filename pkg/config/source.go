package config

import (
	"errors"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces every environment variable this package reads,
// e.g. FLOWFORGE_MAX_PARALLEL_JOBS.
const envPrefix = "FLOWFORGE_"

// Source is one layer in the configuration stack Manager.Load composes,
// in the order given — later sources win over earlier ones.
type Source interface {
	Name() string
	Provider() koanf.Provider
	Parser() koanf.Parser // nil when Provider already yields a decoded map
}

type defaultSource struct{}

// NewDefaultProvider supplies Default() as the base layer every load
// starts from.
func NewDefaultProvider() Source { return defaultSource{} }

func (defaultSource) Name() string          { return "defaults" }
func (defaultSource) Parser() koanf.Parser  { return nil }
func (defaultSource) Provider() koanf.Provider {
	return structs.Provider(Default(), "koanf")
}

type envSource struct{}

// NewEnvProvider reads FLOWFORGE_-prefixed environment variables, e.g.
// FLOWFORGE_MODE, FLOWFORGE_TIMEZONE, FLOWFORGE_MAX_PARALLEL_JOBS.
func NewEnvProvider() Source { return envSource{} }

func (envSource) Name() string         { return "env" }
func (envSource) Parser() koanf.Parser { return nil }
func (envSource) Provider() koanf.Provider {
	return envprovider.Provider(".", envprovider.Opts{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			return normalizeEnvKey(k), v
		},
	})
}

func normalizeEnvKey(k string) string {
	return toDottedLower(trimPrefix(k, envPrefix))
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// toDottedLower lowercases s and turns a double underscore into the "."
// nesting delimiter, so FLOWFORGE_TRACE__ENABLED addresses trace.enabled
// while FLOWFORGE_MAX_PARALLEL_JOBS addresses the flat max_parallel_jobs.
func toDottedLower(s string) string {
	lowered := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		lowered = append(lowered, r)
	}
	return strings.ReplaceAll(string(lowered), "__", ".")
}

// yamlFileSource reads a flowforge.yaml-style config file.
type yamlFileSource struct{ path string }

// NewYAMLProvider reads the YAML document at path as a config layer.
// A missing file is not an error — it simply contributes nothing.
func NewYAMLProvider(path string) Source { return yamlFileSource{path: path} }

func (y yamlFileSource) Name() string          { return "file:" + y.path }
func (y yamlFileSource) Parser() koanf.Parser  { return yamlParser{} }
func (y yamlFileSource) Provider() koanf.Provider {
	return filebytesProvider{path: y.path}
}

type filebytesProvider struct{ path string }

func (f filebytesProvider) ReadBytes() ([]byte, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte{}, nil
	}
	return b, err
}

func (filebytesProvider) Read() (map[string]any, error) {
	return nil, errors.New("config: file provider requires a Parser")
}

type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (yamlParser) Marshal(m map[string]any) ([]byte, error) {
	return yaml.Marshal(m)
}

// cliSource overlays flag-derived values, highest-precedence layer.
type cliSource struct{ values map[string]any }

// NewCLIProvider overlays explicit command-line flag values on top of
// every other source.
func NewCLIProvider(values map[string]any) Source { return cliSource{values: values} }

func (cliSource) Name() string         { return "cli" }
func (cliSource) Parser() koanf.Parser { return nil }
func (c cliSource) Provider() koanf.Provider {
	return cliProvider{values: c.values}
}

type cliProvider struct{ values map[string]any }

func (c cliProvider) Read() (map[string]any, error) { return c.values, nil }
func (cliProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: cli provider has no byte representation")
}
