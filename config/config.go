// captioner/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	FFBin       string        `mapstructure:"FF_BIN"`
	FFProbeBin  string        `mapstructure:"FFPROBE_BIN"`
	FFTimeout   time.Duration `mapstructure:"FF_TIMEOUT"`
	FFExtraArgs string        `mapstructure:"FF_EXTRA_ARGS"`
	FontName    string        `mapstructure:"FONT_NAME"`

	StorageRoot         string        `mapstructure:"STORAGE_ROOT"`
	OutputLocalLifetime time.Duration `mapstructure:"OUTPUT_LOCAL_LIFETIME"`
	SuccessRetention    time.Duration `mapstructure:"SUCCESS_RETENTION"`
	FailureRetention    time.Duration `mapstructure:"FAILURE_RETENTION"`
	CleanupRetries      int           `mapstructure:"CLEANUP_RETRIES"`
	CleanupRetryDelay   time.Duration `mapstructure:"CLEANUP_RETRY_DELAY"`

	MaxInputSize     int64   `mapstructure:"MAX_INPUT_SIZE"`
	MaxConcurrency   int     `mapstructure:"MAX_CONCURRENCY"`
	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`
	Port       string `mapstructure:"PORT"`
	BaseURL    string `mapstructure:"BASE"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogJSON    bool   `mapstructure:"LOG_JSON"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to time.Duration.
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// We only care about converting strings to int64s for byte sizes.
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("FF_TIMEOUT", "15m")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("FONT_NAME", "Arial")
	vp.SetDefault("STORAGE_ROOT", "")
	vp.SetDefault("OUTPUT_LOCAL_LIFETIME", "1h")
	vp.SetDefault("SUCCESS_RETENTION", "5m")
	vp.SetDefault("FAILURE_RETENTION", "1m")
	vp.SetDefault("CLEANUP_RETRIES", 3)
	vp.SetDefault("CLEANUP_RETRY_DELAY", "500ms")
	vp.SetDefault("MAX_INPUT_SIZE", "500MB")
	vp.SetDefault("MAX_CONCURRENCY", 4)
	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "1GB")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_JSON", false)

	// Load from config file
	vp.SetConfigName("captioner_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/captioner/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("CAPTIONER")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
