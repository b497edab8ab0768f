package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/carloswaibl/algotrader/internal/market"
)

type Config struct {
	API        APIConfig      `mapstructure:"api"`
	Download   DownloadConfig `mapstructure:"download"`
	Underlying string         `mapstructure:"underlying"`
	Output     OutputConfig   `mapstructure:"output"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	Mock       MockConfig     `mapstructure:"mock"`
	Backtest   BacktestConfig `mapstructure:"backtest"`
	Strategy   StrategyConfig `mapstructure:"strategy"`
	Server     ServerConfig   `mapstructure:"server"`
	Notify     NotifyConfig   `mapstructure:"notify"`
	Daemon     DaemonConfig   `mapstructure:"daemon"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Compression    bool          `mapstructure:"compression"`
	Preload        bool          `mapstructure:"preload"`
	ReplayMode     string        `mapstructure:"replay_mode"`
	Stream         bool          `mapstructure:"stream"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
}

type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"`
	Token    string `mapstructure:"token"`
}

type DaemonConfig struct {
	ScheduleTime   string `mapstructure:"schedule_time"`
	StateFile      string `mapstructure:"state_file"`
	RunImmediately bool   `mapstructure:"run_immediately"`
}

type APIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	RetryCount int    `mapstructure:"retry_count"`
	RetryDelay int    `mapstructure:"retry_delay_sec"`
}

type DownloadConfig struct {
	Workers       int      `mapstructure:"workers"`
	RatePerSecond float64  `mapstructure:"rate_per_second"`
	ResumeEnabled bool     `mapstructure:"resume_enabled"`
	Options       bool     `mapstructure:"options"`
	StrikeRange   float64  `mapstructure:"strike_range"`
	ContractTypes []string `mapstructure:"contract_types"`
	ArchiveRaw    bool     `mapstructure:"archive_raw"`
	RiskFreeRate  float64  `mapstructure:"risk_free_rate"`
}

type OutputConfig struct {
	Directory        string `mapstructure:"directory"`
	ResultsDirectory string `mapstructure:"results_directory"`
	PlotsDirectory   string `mapstructure:"plots_directory"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

type MockConfig struct {
	Date           string    `mapstructure:"date"`
	Seed           int64     `mapstructure:"seed"`
	StartPrice     float64   `mapstructure:"start_price"`
	Step           float64   `mapstructure:"step"`
	Minutes        int       `mapstructure:"minutes"`
	SampleEvery    int       `mapstructure:"sample_every"`
	StrikeStep     float64   `mapstructure:"strike_step"`
	StrikeOffsets  []float64 `mapstructure:"strike_offsets"`
	ContractTypes  []string  `mapstructure:"contract_types"`
	Volatility     float64   `mapstructure:"volatility"`
	RiskFreeRate   float64   `mapstructure:"risk_free_rate"`
	HalfSpread     float64   `mapstructure:"half_spread"`
	EquityStart    string    `mapstructure:"equity_start"`
	EquityEnd      string    `mapstructure:"equity_end"`
	StartingEquity float64   `mapstructure:"starting_equity"`
	EquityStep     float64   `mapstructure:"equity_step"`
}

type BacktestConfig struct {
	Date           string  `mapstructure:"date"`
	Cash           float64 `mapstructure:"cash"`
	Stake          int     `mapstructure:"stake"`
	Commission     float64 `mapstructure:"commission"`
	ChainMaxAgeMin int     `mapstructure:"chain_max_age_min"`
	Plot           bool    `mapstructure:"plot"`
}

type StrategyConfig struct {
	EntryTime       string  `mapstructure:"entry_time"`
	ExitTime        string  `mapstructure:"exit_time"`
	SpreadWidth     float64 `mapstructure:"spread_width"`
	DeltaTarget     float64 `mapstructure:"delta_target"`
	RSIPeriod       int     `mapstructure:"rsi_period"`
	RSIOverbought   float64 `mapstructure:"rsi_overbought"`
	RSIOversold     float64 `mapstructure:"rsi_oversold"`
	ProfitTargetPct float64 `mapstructure:"profit_target_pct"`
	StopLossPct     float64 `mapstructure:"stop_loss_pct"`
	FallbackCredit  float64 `mapstructure:"fallback_credit"`
}

// ChainMaxAge is the oldest chain row the strategy will price against.
func (b BacktestConfig) ChainMaxAge() time.Duration {
	return time.Duration(b.ChainMaxAgeMin) * time.Minute
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("underlying", "I:NDX")
	v.SetDefault("api.timeout_sec", 60)
	v.SetDefault("api.retry_count", 3)
	v.SetDefault("api.retry_delay_sec", 5)
	v.SetDefault("download.workers", 4)
	v.SetDefault("download.rate_per_second", 5)
	v.SetDefault("download.resume_enabled", true)
	v.SetDefault("download.options", false)
	v.SetDefault("download.strike_range", 0)
	v.SetDefault("download.contract_types", []string{"call", "put"})
	v.SetDefault("download.archive_raw", false)
	v.SetDefault("download.risk_free_rate", 0.05)
	v.SetDefault("output.directory", "data/parquet")
	v.SetDefault("output.results_directory", "data")
	v.SetDefault("output.plots_directory", "plots")
	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("mock.date", "2025-06-13")
	v.SetDefault("mock.seed", 1)
	v.SetDefault("mock.start_price", 5200)
	v.SetDefault("mock.step", 0.5)
	v.SetDefault("mock.minutes", 390)
	v.SetDefault("mock.sample_every", 5)
	v.SetDefault("mock.strike_step", 10)
	v.SetDefault("mock.strike_offsets", []float64{-60, -50, -40, -30, -20, -10, 0, 10, 20, 30, 40, 50, 60})
	v.SetDefault("mock.contract_types", []string{"call", "put"})
	v.SetDefault("mock.volatility", 0.15)
	v.SetDefault("mock.risk_free_rate", 0.05)
	v.SetDefault("mock.half_spread", 0.05)
	v.SetDefault("mock.equity_start", "2025-05-01")
	v.SetDefault("mock.equity_end", "2025-06-13")
	v.SetDefault("mock.starting_equity", 100000)
	v.SetDefault("mock.equity_step", 0.001)
	v.SetDefault("backtest.date", "2024-05-10")
	v.SetDefault("backtest.cash", 100000)
	v.SetDefault("backtest.stake", 10)
	v.SetDefault("backtest.commission", 0.65)
	v.SetDefault("backtest.chain_max_age_min", 30)
	v.SetDefault("backtest.plot", true)
	v.SetDefault("strategy.entry_time", "10:30")
	v.SetDefault("strategy.exit_time", "15:45")
	v.SetDefault("strategy.spread_width", 10)
	v.SetDefault("strategy.delta_target", 0.16)
	v.SetDefault("strategy.rsi_period", 14)
	v.SetDefault("strategy.rsi_overbought", 60)
	v.SetDefault("strategy.rsi_oversold", 40)
	v.SetDefault("strategy.profit_target_pct", 0.50)
	v.SetDefault("strategy.stop_loss_pct", 1.0)
	v.SetDefault("strategy.fallback_credit", 1.50)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.compression", true)
	v.SetDefault("server.preload", false)
	v.SetDefault("server.replay_mode", "exhaust")
	v.SetDefault("server.stream", true)
	v.SetDefault("server.stream_interval", "1s")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "chart_with_upwards_trend")
	v.SetDefault("daemon.schedule_time", "16:30")
	v.SetDefault("daemon.state_file", "data/.download_state.json")
	v.SetDefault("daemon.run_immediately", false)

	// Environment variable support
	v.SetEnvPrefix("ALGOTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Conventional names for the vendor key and ntfy settings
	_ = v.BindEnv("api.api_key", "POLYGON_API_KEY")
	_ = v.BindEnv("notify.enabled", "ALGOTRADER_NOTIFY_ENABLED", "NTFY_ENABLED")
	_ = v.BindEnv("notify.server", "ALGOTRADER_NOTIFY_SERVER", "NTFY_SERVER")
	_ = v.BindEnv("notify.topic", "ALGOTRADER_NOTIFY_TOPIC", "NTFY_TOPIC")
	_ = v.BindEnv("notify.token", "ALGOTRADER_NOTIFY_TOKEN", "NTFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Underlying == "" {
		return fmt.Errorf("underlying is required")
	}
	if c.Download.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if c.Download.RatePerSecond <= 0 {
		return fmt.Errorf("rate_per_second must be > 0")
	}
	if c.Backtest.Cash <= 0 {
		return fmt.Errorf("backtest cash must be > 0")
	}
	if c.Backtest.Stake < 1 {
		return fmt.Errorf("backtest stake must be >= 1")
	}
	if c.Backtest.Commission < 0 {
		return fmt.Errorf("backtest commission must be >= 0")
	}
	if c.Server.ReplayMode != "exhaust" && c.Server.ReplayMode != "rotation" {
		return fmt.Errorf("server replay_mode must be exhaust or rotation, got %q", c.Server.ReplayMode)
	}
	if c.Server.Stream && c.Server.StreamInterval <= 0 {
		return fmt.Errorf("server stream_interval must be > 0")
	}
	if _, err := market.ParseClock(c.Daemon.ScheduleTime); err != nil {
		return fmt.Errorf("daemon schedule_time: %w", err)
	}
	return c.Strategy.Validate()
}

func (s StrategyConfig) Validate() error {
	entry, err := market.ParseClock(s.EntryTime)
	if err != nil {
		return fmt.Errorf("strategy entry_time: %w", err)
	}
	exit, err := market.ParseClock(s.ExitTime)
	if err != nil {
		return fmt.Errorf("strategy exit_time: %w", err)
	}
	if exit <= entry {
		return fmt.Errorf("strategy exit_time %s must be after entry_time %s", exit, entry)
	}
	if s.DeltaTarget <= 0 || s.DeltaTarget >= 1 {
		return fmt.Errorf("strategy delta_target must be in (0, 1)")
	}
	if s.SpreadWidth <= 0 {
		return fmt.Errorf("strategy spread_width must be > 0")
	}
	if s.RSIPeriod < 2 {
		return fmt.Errorf("strategy rsi_period must be >= 2")
	}
	if s.RSIOversold >= s.RSIOverbought {
		return fmt.Errorf("strategy rsi_oversold must be below rsi_overbought")
	}
	if s.ProfitTargetPct <= 0 || s.ProfitTargetPct > 1 {
		return fmt.Errorf("strategy profit_target_pct must be in (0, 1]")
	}
	if s.StopLossPct <= 0 {
		return fmt.Errorf("strategy stop_loss_pct must be > 0")
	}
	return nil
}
