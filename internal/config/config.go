package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "DROWSYCTL"
	DefaultConfigName = "drowsyctl"
	DefaultEnvFile    = ".env"

	DefaultThreshold       = 0.21
	DefaultRunLength       = 3
	DefaultCooldown        = 30 * time.Second
	DefaultCadenceHz       = 10.0
	DefaultLogFile         = "data/ear_log.csv"
	DefaultDevice          = 0
	DefaultDetectorAddr    = "localhost:50051"
	DefaultDetectorTimeout = 2 * time.Second
	DefaultMQTTTopic       = "drowsyctl"
	DefaultMetricsDB       = "/var/lib/drowsyctl/metrics.db"
	DefaultBuzzerChip      = "gpiochip0"
	DefaultBuzzerPulse     = 500 * time.Millisecond
	DefaultStopTimeout     = time.Second
	DefaultReadBackoff     = 100 * time.Millisecond
	DefaultLogLevel        = "info"
)

// Config holds the resolved settings. Precedence, highest first: flags,
// environment, config file, defaults.
type Config struct {
	Threshold      float64       `mapstructure:"threshold"`
	RunLength      int           `mapstructure:"run_length"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	CadenceHz      float64       `mapstructure:"cadence_hz"`
	ResetOnDropout bool          `mapstructure:"reset_on_dropout"`

	LogFile string `mapstructure:"log_file"`

	Device          int           `mapstructure:"device"`
	ReplayDir       string        `mapstructure:"replay_dir"`
	ReadBackoff     time.Duration `mapstructure:"read_backoff"`
	StopTimeout     time.Duration `mapstructure:"stop_timeout"`
	DetectorAddr    string        `mapstructure:"detector_addr"`
	DetectorTimeout time.Duration `mapstructure:"detector_timeout"`

	MQTTBroker string `mapstructure:"mqtt_broker"`
	MQTTTopic  string `mapstructure:"mqtt_topic"`

	Metrics   bool   `mapstructure:"metrics"`
	MetricsDB string `mapstructure:"metrics_db"`

	HTTP string `mapstructure:"http"`

	BuzzerChip  string        `mapstructure:"buzzer_chip"`
	BuzzerPin   int           `mapstructure:"buzzer_pin"`
	BuzzerPulse time.Duration `mapstructure:"buzzer_pulse"`

	LogLevel string `mapstructure:"log_level"`
}

// Interval is the pause between frames derived from the cadence.
func (c *Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.CadenceHz)
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"threshold":        "threshold",
	"run-length":       "run_length",
	"cooldown":         "cooldown",
	"cadence":          "cadence_hz",
	"reset-on-dropout": "reset_on_dropout",
	"log-file":         "log_file",
	"device":           "device",
	"replay":           "replay_dir",
	"detector":         "detector_addr",
	"mqtt-broker":      "mqtt_broker",
	"mqtt-topic":       "mqtt_topic",
	"metrics":          "metrics",
	"metrics-db":       "metrics_db",
	"http":             "http",
	"buzzer-pin":       "buzzer_pin",
	"log-level":        "log_level",
}

// RegisterFlags adds the command line flags understood by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Float64("threshold", DefaultThreshold, "EAR at or below which eyes count as closed")
	flags.Int("run-length", DefaultRunLength, "Consecutive drowsy frames required for an alert")
	flags.Duration("cooldown", DefaultCooldown, "Minimum time between alerts")
	flags.Float64("cadence", DefaultCadenceHz, "Frames analyzed per second")
	flags.Bool("reset-on-dropout", false, "Reset the drowsy run when no face is detected")
	flags.String("log-file", DefaultLogFile, "Measurement log path")
	flags.Int("device", DefaultDevice, "Camera device index")
	flags.String("replay", "", "Replay JPEG frames from a directory instead of a camera")
	flags.String("detector", DefaultDetectorAddr, "Face mesh sidecar address")
	flags.String("mqtt-broker", "", "MQTT broker URL for alert publishing")
	flags.String("mqtt-topic", DefaultMQTTTopic, "MQTT topic prefix")
	flags.Bool("metrics", false, "Record samples and alerts to the metrics database")
	flags.String("metrics-db", DefaultMetricsDB, "Metrics database path")
	flags.String("http", "", "Status server listen address")
	flags.Int("buzzer-pin", -1, "GPIO line driving the alert buzzer, -1 disables it")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("threshold", DefaultThreshold)
	v.SetDefault("run_length", DefaultRunLength)
	v.SetDefault("cooldown", DefaultCooldown)
	v.SetDefault("cadence_hz", DefaultCadenceHz)
	v.SetDefault("reset_on_dropout", false)
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("device", DefaultDevice)
	v.SetDefault("replay_dir", "")
	v.SetDefault("read_backoff", DefaultReadBackoff)
	v.SetDefault("stop_timeout", DefaultStopTimeout)
	v.SetDefault("detector_addr", DefaultDetectorAddr)
	v.SetDefault("detector_timeout", DefaultDetectorTimeout)
	v.SetDefault("mqtt_broker", "")
	v.SetDefault("mqtt_topic", DefaultMQTTTopic)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", DefaultMetricsDB)
	v.SetDefault("http", "")
	v.SetDefault("buzzer_chip", DefaultBuzzerChip)
	v.SetDefault("buzzer_pin", -1)
	v.SetDefault("buzzer_pulse", DefaultBuzzerPulse)
	v.SetDefault("log_level", DefaultLogLevel)
}

// Load resolves the configuration. flags may be nil; when given it must
// have been populated by RegisterFlags and parsed.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix, envFile: DefaultEnvFile}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	if o.configPath == "" {
		o.configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")

	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath("/etc")
		v.AddConfigPath("$HOME/.config/drowsyctl")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Threshold <= 0 || c.Threshold >= 1 {
		return errFactory.WithData(errors.ErrInvalidThreshold, c.Threshold)
	}
	if c.RunLength < 2 {
		return errFactory.WithData(errors.ErrInvalidRunLength, c.RunLength)
	}
	if c.Cooldown < 0 {
		return errFactory.WithData(errors.ErrInvalidCooldown, c.Cooldown)
	}
	if c.CadenceHz <= 0 {
		return errFactory.WithData(errors.ErrInvalidCadence, c.CadenceHz)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFile == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "log_file must not be empty")
	}

	return nil
}
