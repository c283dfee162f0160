package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConf struct {
	Env             string `mapstructure:"env"`
	Port            int    `mapstructure:"port"`
	BodyLimitMB     int    `mapstructure:"body_limit_mb"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
	RateBurst       int    `mapstructure:"rate_burst"`
	ShutdownSeconds int    `mapstructure:"shutdown_seconds"`
}

type JWTConf struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type SecurityConf struct {
	PasswordHashCost int `mapstructure:"password_hash_cost"`
}

type StoreConf struct {
	Driver string `mapstructure:"driver"`
}

type MongoConf struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConf struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

type KafkaConf struct {
	Brokers     []string      `mapstructure:"brokers"`
	Topic       string        `mapstructure:"topic"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type S3Conf struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	Endpoint   string `mapstructure:"endpoint"`
	PublicRead bool   `mapstructure:"public_read"`
}

type StorageConf struct {
	Driver   string `mapstructure:"driver"`
	LocalDir string `mapstructure:"local_dir"`
	S3       S3Conf `mapstructure:"s3"`
}

type BusConf struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type WSConf struct {
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteDeadline   time.Duration `mapstructure:"write_deadline"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
}

type Config struct {
	App      AppConf      `mapstructure:"app"`
	JWT      JWTConf      `mapstructure:"jwt"`
	Security SecurityConf `mapstructure:"security"`
	Store    StoreConf    `mapstructure:"store"`
	Mongo    MongoConf    `mapstructure:"mongo"`
	Redis    RedisConf    `mapstructure:"redis"`
	Kafka    KafkaConf    `mapstructure:"kafka"`
	Storage  StorageConf  `mapstructure:"storage"`
	Bus      BusConf      `mapstructure:"bus"`
	WS       WSConf       `mapstructure:"ws"`

	// derived
	ShutdownTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.body_limit_mb", 25)
	v.SetDefault("app.rate_limit_per_min", 120)
	v.SetDefault("app.rate_burst", 30)
	v.SetDefault("app.shutdown_seconds", 15)
	v.SetDefault("jwt.ttl", 30*24*time.Hour)
	v.SetDefault("security.password_hash_cost", 10)
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chaty")
	v.SetDefault("mongo.timeout", 15*time.Second)
	v.SetDefault("redis.presence_ttl", 60*time.Second)
	v.SetDefault("kafka.topic", "chat.events")
	v.SetDefault("kafka.queue_size", 1024)
	v.SetDefault("kafka.max_failures", 5)
	v.SetDefault("kafka.open_timeout", 30*time.Second)
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("bus.buffer_size", 64)
	v.SetDefault("ws.ping_interval", 30*time.Second)
	v.SetDefault("ws.write_deadline", 10*time.Second)
	v.SetDefault("ws.max_message_bytes", 4096)
}

// Load reads the YAML file at path (optional when empty) and applies
// CHAT_* environment overrides, e.g. CHAT_JWT_SECRET for jwt.secret.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"jwt.secret", "redis.addr", "redis.password", "redis.db", "kafka.brokers",
		"storage.s3.region", "storage.s3.bucket", "storage.s3.endpoint", "storage.s3.public_read"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// comma separated list from the environment
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSeconds) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required (CHAT_JWT_SECRET)"))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	switch c.Store.Driver {
	case "mongo":
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo.uri and mongo.database are required"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required"))
		}
	case "s3":
		if c.Storage.S3.Bucket == "" || c.Storage.S3.Region == "" {
			errs = append(errs, errors.New("storage.s3.bucket and storage.s3.region are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Bus.BufferSize <= 0 {
		errs = append(errs, errors.New("bus.buffer_size must be positive"))
	}
	return errors.Join(errs...)
}
