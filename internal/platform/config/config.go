// Package config loads service settings from the environment, an optional
// .env file and an optional YAML file that is watched for changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	AppEnv   string `mapstructure:"app_env" validate:"oneof=development production test"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	OSRMBaseURL string `mapstructure:"osrm_base_url" validate:"required,url"`
	OSRMProfile string `mapstructure:"osrm_profile" validate:"required"`
	UserAgent   string `mapstructure:"user_agent"`

	TagSource     string `mapstructure:"tag_source" validate:"oneof=local remote"`
	TagServiceURL string `mapstructure:"tag_service_url" validate:"required_if=TagSource remote,omitempty,url"`
	ElementSource string `mapstructure:"element_source" validate:"oneof=geostore overpass"`
	OverpassURL   string `mapstructure:"overpass_url" validate:"omitempty,url"`
	GeoStorePath  string `mapstructure:"geo_store_path" validate:"required_if=ElementSource geostore"`

	DatabaseURL      string        `mapstructure:"database_url"`
	RouteCacheMaxAge time.Duration `mapstructure:"route_cache_max_age" validate:"gte=0"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	SegmentCacheTTL  time.Duration `mapstructure:"segment_cache_ttl" validate:"gt=0"`

	PositionSource     string `mapstructure:"position_source" validate:"oneof=replay kafka"`
	KafkaBrokers       string `mapstructure:"kafka_brokers" validate:"required_if=PositionSource kafka"`
	KafkaPositionTopic string `mapstructure:"kafka_position_topic" validate:"required"`
	KafkaGroupID       string `mapstructure:"kafka_group_id" validate:"required"`

	ReplayInterval time.Duration `mapstructure:"replay_interval" validate:"gt=0"`
	ReplaySpacing  float64       `mapstructure:"replay_spacing" validate:"gte=0"`
	RerouteWindow  time.Duration `mapstructure:"reroute_window" validate:"gte=0"`
	SegmentWindow  time.Duration `mapstructure:"segment_window" validate:"gte=0"`
	FollowInterval time.Duration `mapstructure:"follow_interval" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

// Brokers splits the comma separated broker list.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

var defaults = map[string]any{
	"port":      8080,
	"app_env":   "development",
	"log_level": "",

	"osrm_base_url": "",
	"osrm_profile":  "bike",
	"user_agent":    "cycle-nav-service/1.0",

	"tag_source":      "local",
	"tag_service_url": "",
	"element_source":  "geostore",
	"overpass_url":    "https://overpass-api.de/api/interpreter",
	"geo_store_path":  "data/geo.db",

	"database_url":        "",
	"route_cache_max_age": "168h",
	"redis_addr":          "",
	"segment_cache_ttl":   "1h",

	"position_source":      "replay",
	"kafka_brokers":        "",
	"kafka_position_topic": "device.positions",
	"kafka_group_id":       "cycle-nav",

	"replay_interval": "1s",
	"replay_spacing":  0.0,
	"reroute_window":  "500ms",
	"segment_window":  "1s",
	"follow_interval": "1s",
	"request_timeout": "30s",
}

// Loader owns the current configuration. When a config file is in use, edits
// to it replace the configuration; invalid edits are logged and ignored.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate
	log      *zap.Logger

	mu       sync.RWMutex
	current  *Config
	onChange []func(Config)
}

// Load reads .env (if present), the environment and the file named by
// CONFIG_FILE (if set).
func Load(log *zap.Logger) (*Loader, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found (using environment variables)")
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l := &Loader{v: v, validate: validator.New(), log: log}

	path := os.Getenv("CONFIG_FILE")
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config: read %q: %w", path, err)
		}
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	l.current = cfg

	if path != "" {
		v.OnConfigChange(l.reload)
		v.WatchConfig()
	}

	return l, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if err := l.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return nil, fmt.Errorf("invalid settings: %s", strings.Join(fields, ", "))
		}
		return nil, fmt.Errorf("validate: %w", err)
	}

	return &cfg, nil
}

func (l *Loader) reload(e fsnotify.Event) {
	cfg, err := l.decode()
	if err != nil {
		l.log.Warn("config change rejected", zap.String("file", e.Name), zap.Error(err))
		return
	}

	l.mu.Lock()
	l.current = cfg
	hooks := slices.Clone(l.onChange)
	l.mu.Unlock()

	l.log.Info("config reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
	for _, fn := range hooks {
		fn(*cfg)
	}
}

// Current returns the latest valid configuration.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.current
}

// OnChange registers fn to run after every accepted reload.
func (l *Loader) OnChange(fn func(Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}
