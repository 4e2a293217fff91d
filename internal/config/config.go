package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	embedded "github.com/tonglam/letletme-data-sub005/config"
)

type (
	Config struct {
		App      AppConfig      `mapstructure:"app" validate:"required"`
		Season   SeasonConfig   `mapstructure:"season" validate:"required"`
		Windows  WindowsConfig  `mapstructure:"windows"`
		Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
		Executor ExecutorConfig `mapstructure:"executor"`
		Cron     CronConfig     `mapstructure:"cron"`
		Provider ProviderConfig `mapstructure:"provider"`
		Server   ServerConfig   `mapstructure:"server"`
		StatsD   *StatsDConfig  `mapstructure:"statsd"`

		env Env
	}

	AppConfig struct {
		Name string `mapstructure:"name" validate:"required"`
	}

	// SeasonConfig defines the calendar-month range of the active competition
	// season. The range may wrap the year boundary, e.g. August through May.
	SeasonConfig struct {
		StartMonth time.Month `mapstructure:"start_month" validate:"required,min=1,max=12"`
		EndMonth   time.Month `mapstructure:"end_month" validate:"required,min=1,max=12"`
	}

	WindowsConfig struct {
		// MatchBuffer extends the match window beyond the estimated end of the
		// last fixture, covering stoppage time and provider lag.
		MatchBuffer time.Duration `mapstructure:"match_buffer"`
		// SelectionFallbackStart/End define the fixed daily clock range used
		// for the selection window when a round has no fixtures yet.
		SelectionFallbackStart string `mapstructure:"selection_fallback_start"`
		SelectionFallbackEnd   string `mapstructure:"selection_fallback_end"`
	}

	QueueConfig struct {
		Backend           QueueBackend  `mapstructure:"backend" validate:"required"`
		MaxAttempts       int           `mapstructure:"max_attempts" validate:"required,min=1"`
		BackoffBase       time.Duration `mapstructure:"backoff_base" validate:"required"`
		ClaimPollInterval time.Duration `mapstructure:"claim_poll_interval" validate:"required"`
		SQLite            SQLiteConfig  `mapstructure:"sqlite"`
	}

	SQLiteConfig struct {
		Path        string        `mapstructure:"path"`
		BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	}

	ExecutorConfig struct {
		Workers int `mapstructure:"workers" validate:"required,min=1"`
	}

	CronConfig struct {
		DisableFixturesSync bool          `mapstructure:"disable_fixtures_sync"`
		DisablePicksSync    bool          `mapstructure:"disable_picks_sync"`
		DisableLiveScores   bool          `mapstructure:"disable_live_scores"`
		DisableRoundResults bool          `mapstructure:"disable_round_results"`
		DisablePointsRace   bool          `mapstructure:"disable_points_race"`
		LiveScoresInterval  time.Duration `mapstructure:"live_scores_interval"`
	}

	ProviderConfig struct {
		BaseURL   string  `mapstructure:"base_url" validate:"required"`
		RateLimit float64 `mapstructure:"rate_limit"`
		RateBurst int     `mapstructure:"rate_burst"`
	}

	ServerConfig struct {
		BindAddress string `mapstructure:"bind_address" validate:"required"`
	}

	StatsDConfig struct {
		Address string `mapstructure:"address" validate:"required"`
		Prefix  string `mapstructure:"prefix" validate:"required"`
	}

	QueueBackend string

	Env string

	ConfigOption func(*configOptions)

	configOptions struct {
		env Env
	}
)

const (
	EnvBase        Env = "base"
	EnvLocal       Env = "local"
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"

	QueueBackendMemory QueueBackend = "memory"
	QueueBackendSQLite QueueBackend = "sqlite"

	envVarName  = "LETLETME_ENV"
	envVarTest  = "TEST_TYPE"
	envPrefix   = "LETLETME"
	configExt   = "yml"
	configTypeY = "yaml"
)

func New(opts ...ConfigOption) (*Config, error) {
	options := &configOptions{
		env: currentEnv(),
	}
	for _, opt := range opts {
		opt(options)
	}

	cfg := Config{
		env: options.env,
	}

	v := viper.New()
	v.SetConfigType(configTypeY)
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read base.yml first, then merge in the env-specific overlay.
	if err := readConfig(v, EnvBase, true); err != nil {
		return nil, xerrors.Errorf("failed to read base config: %w", err)
	}

	if options.env != EnvBase {
		if err := mergeInConfig(v, options.env); err != nil {
			return nil, xerrors.Errorf("failed to merge in %v config: %w", options.env, err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, xerrors.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, xerrors.Errorf("failed to validate config: %w", err)
	}

	if cfg.Queue.Backend != QueueBackendMemory && cfg.Queue.Backend != QueueBackendSQLite {
		return nil, xerrors.Errorf("unknown queue backend: %v", cfg.Queue.Backend)
	}

	return &cfg, nil
}

// WithEnvironment overrides the environment detected from LETLETME_ENV.
func WithEnvironment(env Env) ConfigOption {
	return func(o *configOptions) {
		o.env = env
	}
}

func (c *Config) Env() Env {
	return c.env
}

func (c *Config) IsTest() bool {
	return os.Getenv(envVarTest) != ""
}

func currentEnv() Env {
	switch Env(os.Getenv(envVarName)) {
	case EnvDevelopment:
		return EnvDevelopment
	case EnvProduction:
		return EnvProduction
	default:
		return EnvLocal
	}
}

func readConfig(v *viper.Viper, env Env, required bool) error {
	reader, err := openConfig(env)
	if err != nil {
		if !required {
			return nil
		}
		return xerrors.Errorf("failed to locate config file for %v: %w", env, err)
	}

	if err := v.ReadConfig(reader); err != nil {
		return xerrors.Errorf("failed to read config: %w", err)
	}
	return nil
}

func mergeInConfig(v *viper.Viper, env Env) error {
	reader, err := openConfig(env)
	if err != nil {
		// Env overlays are optional.
		return nil
	}

	if err := v.MergeConfig(reader); err != nil {
		return xerrors.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func openConfig(env Env) (fs.File, error) {
	return embedded.FS.Open(string(env) + "." + configExt)
}
