package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// MaxIterations is the hard upper bound on CODE/QA cycles per run.
const MaxIterations = 5

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Plan       RoleConfig       `mapstructure:"plan"`
	Code       RoleConfig       `mapstructure:"code"`
	QA         RoleConfig       `mapstructure:"qa"`
	Fallback   RoleConfig       `mapstructure:"fallback"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Panel      PanelConfig      `mapstructure:"panel"`
}

// LLMConfig holds the global provider defaults every role starts from.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openrouter, openai-compatible, google-gemini
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RoleConfig overrides LLMConfig for one role. Zero values and nil pointers
// mean "inherit".
type RoleConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature *float64      `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PipelineConfig controls the Plan/Code/QA run.
type PipelineConfig struct {
	Request         string `mapstructure:"request"`
	OutputDir       string `mapstructure:"output_dir"`
	MaxIterations   int    `mapstructure:"max_iterations"`
	MinTokens       int    `mapstructure:"min_tokens"`
	StrictCodeRetry bool   `mapstructure:"strict_code_retry"`
	ClearOutputs    string `mapstructure:"clear_outputs"` // core, all or none
}

// OpenRouterConfig carries the attribution headers sent to OpenRouter.
type OpenRouterConfig struct {
	Referer string `mapstructure:"referer"`
	Title   string `mapstructure:"title"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes control panel settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
	Transport      string        `mapstructure:"transport"` // connect or ndjson
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
}

// PanelConfig holds control panel file locations.
type PanelConfig struct {
	RequestFile string `mapstructure:"request_file"`
}

// envAliases binds environment names used by earlier releases of the tool.
var envAliases = map[string][]string{
	"llm.api_key":     {"OPENROUTER_API_KEY"},
	"llm.base_url":    {"OPENROUTER_BASE_URL"},
	"llm.max_tokens":  {"OPENROUTER_MAX_TOKENS"},
	"llm.temperature": {"OPENROUTER_TEMPERATURE"},

	"fallback.api_key": {"GEMINI_API_KEY"},
	"fallback.model":   {"GEMINI_MODEL"},

	"pipeline.request": {"USER_PRODUCT_REQUEST"},

	"openrouter.referer": {"OPENROUTER_HTTP_REFERER"},
	"openrouter.title":   {"OPENROUTER_APP_TITLE"},
}

// rolePrefixes maps each role to its legacy env prefix.
var rolePrefixes = map[string]string{
	"plan": "PRODUCT_MANAGER",
	"code": "CODER",
	"qa":   "QA",
}

var roleFields = []string{"provider", "model", "api_key", "base_url", "max_tokens", "temperature", "timeout"}

// Load reads configuration from the provided path or looks for protoease.yaml
// in . and configs. A missing implicit file is not an error: env and defaults
// are enough to run. Environment variables override file values
// (prefix: PROTOEASE_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PROTOEASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindAliases(v); err != nil {
		return nil, err
	}

	if path == "" {
		v.SetConfigName("protoease")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindAliases registers every env name for a key. Explicit BindEnv replaces
// the automatic prefix lookup, so the PROTOEASE_ name is listed first.
func bindAliases(v *viper.Viper) error {
	bind := func(key string, legacy ...string) error {
		names := append([]string{"PROTOEASE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, legacy...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
		return nil
	}

	for key, names := range envAliases {
		if err := bind(key, names...); err != nil {
			return err
		}
	}
	for role, prefix := range rolePrefixes {
		for _, field := range roleFields {
			if err := bind(role+"."+field, prefix+"_"+strings.ToUpper(field)); err != nil {
				return err
			}
		}
	}
	for _, field := range roleFields {
		if err := bind("fallback." + field); err != nil {
			return err
		}
	}
	return nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", string(llm.KindOpenRouter))
	v.SetDefault("llm.model", "openrouter/auto:free")
	v.SetDefault("llm.max_tokens", 1200)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 120*time.Second)

	v.SetDefault("fallback.provider", string(llm.KindGemini))
	v.SetDefault("fallback.model", "gemini-2.5-flash")

	v.SetDefault("pipeline.request", "Build a small web application per my description.")
	v.SetDefault("pipeline.output_dir", "outputs")
	v.SetDefault("pipeline.max_iterations", MaxIterations)
	v.SetDefault("pipeline.min_tokens", llm.DefaultMinTokens)
	v.SetDefault("pipeline.strict_code_retry", true)
	v.SetDefault("pipeline.clear_outputs", "core")

	v.SetDefault("openrouter.referer", "http://localhost")
	v.SetDefault("openrouter.title", "ProtoEase")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.addr", ":8501")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
	v.SetDefault("server.run_timeout", time.Duration(0))

	v.SetDefault("panel.request_file", "user_product_request.txt")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if _, ok := llm.ParseKind(c.LLM.Provider); !ok {
		return fmt.Errorf("llm.provider %q is not one of openrouter, openai-compatible, google-gemini", c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	if err := checkParams("llm", c.LLM.MaxTokens, &c.LLM.Temperature, c.LLM.Timeout); err != nil {
		return err
	}

	for _, role := range []string{RolePlan, RoleCode, RoleQA, RoleFallback} {
		rc := c.role(role)
		if rc.Provider != "" {
			if _, ok := llm.ParseKind(rc.Provider); !ok {
				return fmt.Errorf("%s.provider %q is not one of openrouter, openai-compatible, google-gemini", role, rc.Provider)
			}
		}
		if err := checkParams(role, rc.MaxTokens, rc.Temperature, rc.Timeout); err != nil {
			return err
		}
	}

	if c.Pipeline.MaxIterations < 1 || c.Pipeline.MaxIterations > MaxIterations {
		return fmt.Errorf("pipeline.max_iterations must be within [1,%d]", MaxIterations)
	}
	if c.Pipeline.MinTokens < 1 {
		return errors.New("pipeline.min_tokens must be > 0")
	}
	if strings.TrimSpace(c.Pipeline.OutputDir) == "" {
		return errors.New("pipeline.output_dir must be set")
	}
	switch strings.ToLower(strings.TrimSpace(c.Pipeline.ClearOutputs)) {
	case "", "core", "all", "none":
	default:
		return fmt.Errorf("pipeline.clear_outputs must be one of core, all, none, got %q", c.Pipeline.ClearOutputs)
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}
	if c.Server.RunTimeout < 0 {
		return errors.New("server.run_timeout cannot be negative")
	}

	return nil
}

func checkParams(prefix string, maxTokens int, temperature *float64, timeout time.Duration) error {
	if maxTokens < 0 {
		return fmt.Errorf("%s.max_tokens cannot be negative", prefix)
	}
	if temperature != nil && (*temperature < 0 || *temperature > 2) {
		return fmt.Errorf("%s.temperature must be within [0,2]", prefix)
	}
	if timeout < 0 {
		return fmt.Errorf("%s.timeout cannot be negative", prefix)
	}
	return nil
}
