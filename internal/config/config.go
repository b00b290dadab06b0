// Package config loads the supervisor configuration: a TOML main config plus
// an optional YAML pipelines file for supervising more than one pipeline in a
// single run.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration, loaded from config.toml.
type Config struct {
	APIToken     string `toml:"api_token"`
	OrgSlug      string `toml:"org_slug"`
	PipelineSlug string `toml:"pipeline_slug"`
	TargetBranch string `toml:"target_branch"`
	LarkWebhook  string `toml:"lark_webhook"`
	APIBaseURL   string `toml:"api_base_url"`
}

// Default returns the configuration defaults applied under any loaded file.
func Default() *Config {
	return &Config{
		TargetBranch: "prod",
		APIBaseURL:   "https://api.buildkite.com/v2",
	}
}

// DefaultPath returns the user-level config location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "autooncall", "config.toml")
}

// ResolvePath picks the config file: the explicit flag value, then
// $AUTOONCALL_CONFIG, then ./config.toml, then DefaultPath().
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv("AUTOONCALL_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml"
	}
	return DefaultPath()
}

// Load reads and validates the main config. A missing or malformed file is an
// error: the whole run aborts before any network call.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	expanded, err := expandEnvPlaceholders(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Env > TOML > default.
	if token := os.Getenv("BUILDKITE_API_TOKEN"); token != "" {
		cfg.APIToken = token
	}
	if webhook := os.Getenv("AUTOONCALL_LARK_WEBHOOK"); webhook != "" {
		cfg.LarkWebhook = webhook
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields and URL shapes.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.APIToken) == "" {
		missing = append(missing, "api_token")
	}
	if strings.TrimSpace(c.OrgSlug) == "" {
		missing = append(missing, "org_slug")
	}
	if strings.TrimSpace(c.PipelineSlug) == "" {
		missing = append(missing, "pipeline_slug")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if err := validateHTTPURL("api_base_url", c.APIBaseURL); err != nil {
		return err
	}
	if c.LarkWebhook != "" {
		if err := validateHTTPURL("lark_webhook", c.LarkWebhook); err != nil {
			return err
		}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s scheme %q (must be http or https)", field, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", field, raw)
	}
	return nil
}

// Target is one fully resolved pipeline to supervise.
type Target struct {
	Org         string
	Pipeline    string
	Branch      string
	LarkWebhook string
}

// Targets resolves the pipelines to supervise. With no pipelines file the main
// config yields exactly one target; otherwise each entry inherits unset fields
// from the main config.
func (c *Config) Targets(pipelines []Pipeline) []Target {
	if len(pipelines) == 0 {
		return []Target{{
			Org:         c.OrgSlug,
			Pipeline:    c.PipelineSlug,
			Branch:      c.TargetBranch,
			LarkWebhook: c.LarkWebhook,
		}}
	}

	targets := make([]Target, 0, len(pipelines))
	for _, p := range pipelines {
		t := Target{
			Org:         p.Org,
			Pipeline:    p.Pipeline,
			Branch:      p.Branch,
			LarkWebhook: p.LarkWebhook,
		}
		if t.Org == "" {
			t.Org = c.OrgSlug
		}
		if t.Branch == "" {
			t.Branch = c.TargetBranch
		}
		if t.LarkWebhook == "" {
			t.LarkWebhook = c.LarkWebhook
		}
		targets = append(targets, t)
	}
	return targets
}

var envPlaceholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvPlaceholders replaces ${VAR} references with environment values.
// Unset variables are collected and reported as one error.
func expandEnvPlaceholders(in []byte) ([]byte, error) {
	s := string(in)
	missing := make(map[string]struct{})

	out := envPlaceholderRe.ReplaceAllStringFunc(s, func(m string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(m, "${"), "}")
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		missing[key] = struct{}{}
		return m
	})

	if len(missing) == 0 {
		return []byte(out), nil
	}

	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return nil, fmt.Errorf("missing environment variables: %s", strings.Join(keys, ", "))
}
