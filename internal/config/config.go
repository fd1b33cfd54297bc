// Package config loads centavo's runtime configuration from a YAML file
// with environment-variable overrides. The first run writes a default
// config so operators always have a file to edit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/normanking/centavo/internal/capability"
	"github.com/normanking/centavo/internal/gate"
	"github.com/normanking/centavo/internal/render"
	"github.com/normanking/centavo/internal/router"
)

// Config is the full runtime configuration.
type Config struct {
	Router       RouterConfig       `mapstructure:"router" yaml:"router"`
	Rollout      RolloutConfig      `mapstructure:"rollout" yaml:"rollout"`
	Circuit      CircuitConfig      `mapstructure:"circuit" yaml:"circuit"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities" yaml:"capabilities"`
	Affinity     AffinityConfig     `mapstructure:"affinity" yaml:"affinity"`
	Renderer     RendererConfig     `mapstructure:"renderer" yaml:"renderer"`
	Prefs        PrefsConfig        `mapstructure:"prefs" yaml:"prefs"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// RouterConfig tunes the conversational fast path.
type RouterConfig struct {
	DomainID       string        `mapstructure:"domain_id" yaml:"domain_id"`
	AssistantName  string        `mapstructure:"assistant_name" yaml:"assistant_name"`
	TurnBudget     time.Duration `mapstructure:"turn_budget" yaml:"turn_budget"`
	CallTimeout    time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	MinCallTimeout time.Duration `mapstructure:"min_call_timeout" yaml:"min_call_timeout"`
}

// RolloutConfig is the staged-exposure state. AlphaUsers and BetaUsers
// are comma-separated ID lists so they can be set from a single env var.
type RolloutConfig struct {
	KillSwitch bool   `mapstructure:"kill_switch" yaml:"kill_switch"`
	Stage      string `mapstructure:"stage" yaml:"stage"`
	Percent    int    `mapstructure:"percent" yaml:"percent"`
	Salt       string `mapstructure:"salt" yaml:"salt"`
	AlphaUsers string `mapstructure:"alpha_users" yaml:"alpha_users"`
	BetaUsers  string `mapstructure:"beta_users" yaml:"beta_users"`
}

// CircuitConfig tunes the per-endpoint breaker.
type CircuitConfig struct {
	FailureThreshold int   `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	CooldownMs       int64 `mapstructure:"cooldown_ms" yaml:"cooldown_ms"`
}

// CapabilitiesConfig is the admin allow/deny policy. Deny wins.
type CapabilitiesConfig struct {
	Allow []string `mapstructure:"allow" yaml:"allow"`
	Deny  []string `mapstructure:"deny" yaml:"deny"`
}

// AffinityConfig tunes conversation-scoped state retention.
type AffinityConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// RendererConfig selects the reply voice and commentary thresholds.
type RendererConfig struct {
	Tone            string  `mapstructure:"tone" yaml:"tone"`
	MinAbsMovePct   float64 `mapstructure:"min_abs_move_pct" yaml:"min_abs_move_pct"`
	MinTxCount      int     `mapstructure:"min_tx_count" yaml:"min_tx_count"`
	MinPricedAssets int     `mapstructure:"min_priced_assets" yaml:"min_priced_assets"`
	MaxStalenessSec int     `mapstructure:"max_staleness_sec" yaml:"max_staleness_sec"`
}

// PrefsConfig locates the per-user preference documents.
type PrefsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MetricsConfig locates the turn-metrics database.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	File   string `mapstructure:"file" yaml:"file"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cg := render.DefaultCommentaryGate()
	cc := gate.DefaultCircuitConfig()
	return &Config{
		Router: RouterConfig{
			DomainID:       "exchange",
			AssistantName:  "centavo",
			TurnBudget:     12 * time.Second,
			CallTimeout:    8 * time.Second,
			MinCallTimeout: 500 * time.Millisecond,
		},
		Rollout: RolloutConfig{
			Stage:   "off",
			Percent: 0,
			Salt:    "centavo-rollout",
		},
		Circuit: CircuitConfig{
			FailureThreshold: cc.FailureThreshold,
			CooldownMs:       cc.CooldownMs,
		},
		Affinity: AffinityConfig{TTL: 30 * time.Minute},
		Renderer: RendererConfig{
			Tone:            "neutral",
			MinAbsMovePct:   cg.MinAbsMovePct,
			MinTxCount:      cg.MinTxCount,
			MinPricedAssets: cg.MinPricedAssets,
			MaxStalenessSec: cg.MaxStalenessSec,
		},
		Prefs:   PrefsConfig{Dir: "~/.centavo/prefs"},
		Metrics: MetricsConfig{Enabled: true, DBPath: "~/.centavo/metrics.db"},
		Logging: LoggingConfig{Level: "info", Pretty: true},
	}
}

// Load reads configuration from ~/.centavo/config.yaml, creating the
// file with defaults if it does not exist.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(home, ".centavo", "config.yaml"))
}

// LoadFromPath reads configuration from an explicit path. Environment
// variables prefixed with CENTAVO_ override file values, nested keys
// joined with underscores (CENTAVO_ROLLOUT_STAGE, CENTAVO_ROUTER_TURN_BUDGET).
func LoadFromPath(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CENTAVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.Router.TurnBudget <= 0 {
		return fmt.Errorf("router.turn_budget must be positive, got %s", c.Router.TurnBudget)
	}
	if c.Router.CallTimeout <= 0 {
		return fmt.Errorf("router.call_timeout must be positive, got %s", c.Router.CallTimeout)
	}
	if c.Router.MinCallTimeout > c.Router.CallTimeout {
		return fmt.Errorf("router.min_call_timeout %s exceeds call_timeout %s",
			c.Router.MinCallTimeout, c.Router.CallTimeout)
	}
	if c.Rollout.Percent < 0 || c.Rollout.Percent > 100 {
		return fmt.Errorf("rollout.percent must be 0..100, got %d", c.Rollout.Percent)
	}
	if c.Circuit.FailureThreshold <= 0 {
		return fmt.Errorf("circuit.failure_threshold must be positive, got %d", c.Circuit.FailureThreshold)
	}
	if c.Circuit.CooldownMs <= 0 {
		return fmt.Errorf("circuit.cooldown_ms must be positive, got %d", c.Circuit.CooldownMs)
	}
	if c.Affinity.TTL <= 0 {
		return fmt.Errorf("affinity.ttl must be positive, got %s", c.Affinity.TTL)
	}
	return nil
}

// RolloutState converts the file representation into the gate's config.
func (c *Config) RolloutState() gate.RolloutConfig {
	return gate.RolloutConfig{
		KillSwitch: c.Rollout.KillSwitch,
		Stage:      gate.ParseStage(c.Rollout.Stage),
		Percent:    c.Rollout.Percent,
		Salt:       c.Rollout.Salt,
		AlphaUsers: gate.NormalizeUsers(c.Rollout.AlphaUsers),
		BetaUsers:  gate.NormalizeUsers(c.Rollout.BetaUsers),
	}
}

// CircuitState converts into the breaker's config.
func (c *Config) CircuitState() gate.CircuitConfig {
	return gate.CircuitConfig{
		FailureThreshold: c.Circuit.FailureThreshold,
		CooldownMs:       c.Circuit.CooldownMs,
	}
}

// EnabledSet converts the capability policy.
func (c *Config) EnabledSet() capability.EnabledSet {
	return capability.EnabledSet{Allow: c.Capabilities.Allow, Deny: c.Capabilities.Deny}
}

// RouterOptions converts into the router's config.
func (c *Config) RouterOptions() router.Config {
	return router.Config{
		DomainID:       c.Router.DomainID,
		AssistantName:  c.Router.AssistantName,
		TurnBudget:     c.Router.TurnBudget,
		CallTimeout:    c.Router.CallTimeout,
		MinCallTimeout: c.Router.MinCallTimeout,
		Tone:           render.ParseTone(c.Renderer.Tone),
	}
}

// CommentaryGate converts the renderer thresholds.
func (c *Config) CommentaryGate() render.CommentaryGate {
	return render.CommentaryGate{
		MinAbsMovePct:   c.Renderer.MinAbsMovePct,
		MinTxCount:      c.Renderer.MinTxCount,
		MinPricedAssets: c.Renderer.MinPricedAssets,
		MaxStalenessSec: c.Renderer.MaxStalenessSec,
	}
}

// PrefsDir returns the preference directory with ~ expanded.
func (c *Config) PrefsDir() string { return ExpandPath(c.Prefs.Dir) }

// MetricsPath returns the metrics database path with ~ expanded.
func (c *Config) MetricsPath() string { return ExpandPath(c.Metrics.DBPath) }

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// bindDefaults registers every default value with viper so AutomaticEnv
// sees the keys even when the file omits them.
func bindDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("router.domain_id", def.Router.DomainID)
	v.SetDefault("router.assistant_name", def.Router.AssistantName)
	v.SetDefault("router.turn_budget", def.Router.TurnBudget)
	v.SetDefault("router.call_timeout", def.Router.CallTimeout)
	v.SetDefault("router.min_call_timeout", def.Router.MinCallTimeout)
	v.SetDefault("rollout.kill_switch", def.Rollout.KillSwitch)
	v.SetDefault("rollout.stage", def.Rollout.Stage)
	v.SetDefault("rollout.percent", def.Rollout.Percent)
	v.SetDefault("rollout.salt", def.Rollout.Salt)
	v.SetDefault("rollout.alpha_users", def.Rollout.AlphaUsers)
	v.SetDefault("rollout.beta_users", def.Rollout.BetaUsers)
	v.SetDefault("circuit.failure_threshold", def.Circuit.FailureThreshold)
	v.SetDefault("circuit.cooldown_ms", def.Circuit.CooldownMs)
	v.SetDefault("capabilities.allow", def.Capabilities.Allow)
	v.SetDefault("capabilities.deny", def.Capabilities.Deny)
	v.SetDefault("affinity.ttl", def.Affinity.TTL)
	v.SetDefault("renderer.tone", def.Renderer.Tone)
	v.SetDefault("renderer.min_abs_move_pct", def.Renderer.MinAbsMovePct)
	v.SetDefault("renderer.min_tx_count", def.Renderer.MinTxCount)
	v.SetDefault("renderer.min_priced_assets", def.Renderer.MinPricedAssets)
	v.SetDefault("renderer.max_staleness_sec", def.Renderer.MaxStalenessSec)
	v.SetDefault("prefs.dir", def.Prefs.Dir)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.db_path", def.Metrics.DBPath)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.pretty", def.Logging.Pretty)
}

func writeConfigFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}
	header := "# centavo configuration\n# Environment variables prefixed CENTAVO_ override these values.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

// marshalConfig renders the config with durations as strings ("12s")
// rather than raw nanosecond integers.
func marshalConfig(cfg *Config) ([]byte, error) {
	type fileRouter struct {
		DomainID       string `yaml:"domain_id"`
		AssistantName  string `yaml:"assistant_name"`
		TurnBudget     string `yaml:"turn_budget"`
		CallTimeout    string `yaml:"call_timeout"`
		MinCallTimeout string `yaml:"min_call_timeout"`
	}
	type fileAffinity struct {
		TTL string `yaml:"ttl"`
	}
	type fileConfig struct {
		Router       fileRouter         `yaml:"router"`
		Rollout      RolloutConfig      `yaml:"rollout"`
		Circuit      CircuitConfig      `yaml:"circuit"`
		Capabilities CapabilitiesConfig `yaml:"capabilities"`
		Affinity     fileAffinity       `yaml:"affinity"`
		Renderer     RendererConfig     `yaml:"renderer"`
		Prefs        PrefsConfig        `yaml:"prefs"`
		Metrics      MetricsConfig      `yaml:"metrics"`
		Logging      LoggingConfig      `yaml:"logging"`
	}
	return yaml.Marshal(fileConfig{
		Router: fileRouter{
			DomainID:       cfg.Router.DomainID,
			AssistantName:  cfg.Router.AssistantName,
			TurnBudget:     cfg.Router.TurnBudget.String(),
			CallTimeout:    cfg.Router.CallTimeout.String(),
			MinCallTimeout: cfg.Router.MinCallTimeout.String(),
		},
		Rollout:      cfg.Rollout,
		Circuit:      cfg.Circuit,
		Capabilities: cfg.Capabilities,
		Affinity:     fileAffinity{TTL: cfg.Affinity.TTL.String()},
		Renderer:     cfg.Renderer,
		Prefs:        cfg.Prefs,
		Metrics:      cfg.Metrics,
		Logging:      cfg.Logging,
	})
}
