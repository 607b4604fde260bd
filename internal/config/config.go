package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gitrevmissing/internal/filter"
	"github.com/gitrevmissing/pkg/models"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: GITREVMISSING_GENERAL__MONTHS=6.
const EnvPrefix = "GITREVMISSING_"

// DefaultPaths are searched in order when no config file is given
var DefaultPaths = []string{"./gitrevmissing.toml", "$HOME/.gitrevmissing.toml"}

// Config represents the application configuration
type Config struct {
	// Token is used for any repository without its own credentials
	Token string `koanf:"token"`

	General      GeneralConfig      `koanf:"general"`
	Filter       FilterConfig       `koanf:"filter"`
	Repositories []RepositoryConfig `koanf:"repositories"`
	HTTP         HTTPConfig         `koanf:"http"`
}

type GeneralConfig struct {
	Months       int     `koanf:"months"`
	PatchRatio   float64 `koanf:"patch_ratio"`
	MessageRatio float64 `koanf:"message_ratio"`
	Workers      int     `koanf:"workers"`
	LogLevel     string  `koanf:"log_level"`
	LogFormat    string  `koanf:"log_format"`
	// LogDir, when set, receives one log file per run
	LogDir string `koanf:"log_dir"`
}

type FilterConfig struct {
	Prefixes []string `koanf:"prefixes"`
	Markers  []string `koanf:"markers"`
}

// RepositoryConfig holds the credentials of every repository under URL
type RepositoryConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
	// Type overrides host based provider detection: github or gitlab
	Type string `koanf:"type"`
}

type HTTPConfig struct {
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	MaxRetries        int           `koanf:"max_retries"`
	Timeout           time.Duration `koanf:"timeout"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"general.months":           12,
		"general.patch_ratio":      0.9,
		"general.message_ratio":    0.7,
		"general.workers":          1,
		"general.log_level":        "info",
		"general.log_format":       "text",
		"general.log_dir":          "",
		"filter.prefixes":          append([]string(nil), filter.DefaultPrefixes...),
		"filter.markers":           append([]string(nil), filter.DefaultMarkers...),
		"http.requests_per_second": 5.0,
		"http.burst":               5,
		"http.max_retries":         3,
		"http.timeout":             "30s",
	}
}

// envKey maps GITREVMISSING_GENERAL__PATCH_RATIO to general.patch_ratio
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// LoadConfig loads defaults, then the TOML file, then environment overrides.
// An explicit configPath must exist; default locations are optional.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: error loading config %s: %v", models.ErrConfiguration, configPath, err)
		}
	} else {
		for _, path := range DefaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("%w: error loading config %s: %v", models.ErrConfiguration, path, err)
			}
			break
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("%w: error unmarshalling config: %v", models.ErrConfiguration, err)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is configured
func Default() *Config {
	var k = koanf.New(".")
	_ = k.Load(confmap.Provider(defaults(), "."), nil)

	var config Config
	_ = k.Unmarshal("", &config)
	return &config
}

const sampleConfig = `# git-rev-missing configuration

# token = "used when no repository below matches"

[general]
months = 12
patch_ratio = 0.9
message_ratio = 0.7
workers = 1
log_level = "info"
log_format = "text"

[filter]
prefixes = ["Merge branch ", "Merge pull request ", "Next is ", "Prepare "]
markers = ["[maven-release-plugin] prepare for next development iteration"]

[[repositories]]
url = "https://github.com"
token = "your-github-token"
type = "github"

[[repositories]]
url = "https://gitlab.example.com"
token = "your-gitlab-token"
type = "gitlab"

[http]
requests_per_second = 5
burst = 5
max_retries = 3
timeout = "30s"
`

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	return os.WriteFile(configPath, []byte(sampleConfig), 0600)
}

// Validate validates the configuration
func Validate(config *Config) error {
	g := config.General
	if g.Months < 1 {
		return fmt.Errorf("%w: general.months must be at least 1", models.ErrConfiguration)
	}
	if g.PatchRatio < 0 || g.PatchRatio > 1 {
		return fmt.Errorf("%w: general.patch_ratio must be within [0,1]", models.ErrConfiguration)
	}
	if g.MessageRatio < 0 || g.MessageRatio > 1 {
		return fmt.Errorf("%w: general.message_ratio must be within [0,1]", models.ErrConfiguration)
	}
	if g.Workers < 1 {
		return fmt.Errorf("%w: general.workers must be at least 1", models.ErrConfiguration)
	}

	switch strings.ToLower(g.LogFormat) {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("%w: general.log_format must be json or text", models.ErrConfiguration)
	}

	for i, repo := range config.Repositories {
		if repo.URL == "" {
			return fmt.Errorf("%w: repositories[%d].url is required", models.ErrConfiguration, i)
		}
		if repo.Token == "" {
			return fmt.Errorf("%w: repositories[%d].token is required for %s", models.ErrConfiguration, i, repo.URL)
		}
		switch strings.ToLower(repo.Type) {
		case "", "github", "gitlab":
		default:
			return fmt.Errorf("%w: repositories[%d].type %q is not supported", models.ErrConfiguration, i, repo.Type)
		}
	}

	if config.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: http.requests_per_second cannot be negative", models.ErrConfiguration)
	}
	if config.HTTP.MaxRetries < 0 {
		return fmt.Errorf("%w: http.max_retries cannot be negative", models.ErrConfiguration)
	}

	return nil
}

// RepositoryFor returns the repository entry with the longest URL prefixing
// repoURL, or nil when none matches.
func (c *Config) RepositoryFor(repoURL string) *RepositoryConfig {
	var best *RepositoryConfig
	for i := range c.Repositories {
		prefix := strings.TrimRight(c.Repositories[i].URL, "/")
		if prefix == "" {
			continue
		}
		if repoURL != prefix && !strings.HasPrefix(repoURL, prefix+"/") {
			continue
		}
		if best == nil || len(prefix) > len(strings.TrimRight(best.URL, "/")) {
			best = &c.Repositories[i]
		}
	}
	return best
}
