package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. PEST_DB_PATH.
const envPrefix = "PEST"

// Driver names selectable from configuration.
const (
	DriverSimulated = "simulated"
	DriverMQTT      = "mqtt"
	DriverHTTP      = "http"
	DriverFS        = "fs"
	DriverMinio     = "minio"
)

type Config struct {
	Port      string                `mapstructure:"port"`
	Log       LogConfig             `mapstructure:"log"`
	DB        DBConfig              `mapstructure:"db"`
	Auth      AuthConfig            `mapstructure:"auth"`
	History   HistoryConfig         `mapstructure:"history"`
	Broadcast BroadcastConfig       `mapstructure:"broadcast"`
	Sensors   SensorsConfig         `mapstructure:"sensors"`
	Actuators ActuatorsConfig       `mapstructure:"actuators"`
	Rules     []models.ResponseRule `mapstructure:"rules"`
	Detection DetectionConfig       `mapstructure:"detection"`
	Hardware  HardwareConfig        `mapstructure:"hardware"`
	Images    ImagesConfig          `mapstructure:"images"`
	Archive   ArchiveConfig         `mapstructure:"archive"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type HistoryConfig struct {
	MaxEvents    int           `mapstructure:"max_events"`
	RecentWindow time.Duration `mapstructure:"recent_window"`
}

type BroadcastConfig struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

// SensorConfig describes one polled sensor.
type SensorConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
	Unit string `mapstructure:"unit"`
}

type SensorsConfig struct {
	PollInterval time.Duration  `mapstructure:"poll_interval"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	Items        []SensorConfig `mapstructure:"items"`
}

// RelayConfig sets debounce and auto-release for one relay.
type RelayConfig struct {
	ID          string        `mapstructure:"id"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	AutoRelease time.Duration `mapstructure:"auto_release"`
}

type ActuatorsConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	Relays         []RelayConfig `mapstructure:"relays"`
}

type DetectionConfig struct {
	Driver       string        `mapstructure:"driver"` // http | simulated
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryCount   int           `mapstructure:"retry_count"`
	FailureRate  float64       `mapstructure:"failure_rate"`
	AutoInterval time.Duration `mapstructure:"auto_interval"` // zero disables auto-detection
	AutoImageRef string        `mapstructure:"auto_image_ref"`
}

type MQTTConfig struct {
	Broker      string        `mapstructure:"broker"`
	ClientID    string        `mapstructure:"client_id"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
}

type HardwareConfig struct {
	Driver         string     `mapstructure:"driver"` // mqtt | simulated
	MQTT           MQTTConfig `mapstructure:"mqtt"`
	FailingSensors []string   `mapstructure:"failing_sensors"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type ImagesConfig struct {
	Driver string      `mapstructure:"driver"` // fs | minio
	Dir    string      `mapstructure:"dir"`
	Minio  MinioConfig `mapstructure:"minio"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ClickHouseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ArchiveConfig struct {
	QueueSize  int              `mapstructure:"queue_size"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
}

// Load reads config.yml from dir (if present), then .env and PEST_* variables.
func Load(dir string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "pest.db")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.signing_key", "change-me")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("history.max_events", 100)
	v.SetDefault("history.recent_window", 24*time.Hour)
	v.SetDefault("broadcast.subscriber_buffer", 64)

	v.SetDefault("sensors.poll_interval", 30*time.Second)
	v.SetDefault("sensors.timeout", 5*time.Second)
	v.SetDefault("sensors.items", []map[string]any{
		{"name": "temperature", "type": models.SensorTemperature, "unit": "°C"},
		{"name": "humidity", "type": models.SensorHumidity, "unit": "%"},
		{"name": "soil_moisture", "type": models.SensorSoilMoisture, "unit": "%"},
		{"name": "light", "type": models.SensorLight, "unit": "lux"},
	})

	v.SetDefault("actuators.command_timeout", 3*time.Second)
	v.SetDefault("actuators.sweep_interval", time.Second)
	v.SetDefault("actuators.relays", []map[string]any{
		{"id": "pump", "cooldown": "60s", "auto_release": "10s"},
		{"id": "trap", "cooldown": "30s", "auto_release": "60s"},
	})
	v.SetDefault("rules", []map[string]any{
		{"class": "aphid", "relay": "pump", "threshold": 0.8},
		{"class": "whitefly", "relay": "pump", "threshold": 0.8},
		{"class": "caterpillar", "relay": "trap", "threshold": 0.5},
		{"class": "beetle", "relay": "trap", "threshold": 0.5},
	})

	v.SetDefault("detection.driver", DriverSimulated)
	v.SetDefault("detection.endpoint", "http://localhost:8000/predict")
	v.SetDefault("detection.timeout", 15*time.Second)
	v.SetDefault("detection.retry_count", 0)
	v.SetDefault("detection.failure_rate", 0.0)
	v.SetDefault("detection.auto_interval", 0)
	v.SetDefault("detection.auto_image_ref", "")

	v.SetDefault("hardware.driver", DriverSimulated)
	v.SetDefault("hardware.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("hardware.mqtt.client_id", "pestdetect")
	v.SetDefault("hardware.mqtt.username", "")
	v.SetDefault("hardware.mqtt.password", "")
	v.SetDefault("hardware.mqtt.topic_prefix", "farm")
	v.SetDefault("hardware.mqtt.stale_after", 2*time.Minute)

	v.SetDefault("images.driver", DriverFS)
	v.SetDefault("images.dir", "uploads")
	v.SetDefault("images.minio.endpoint", "localhost:9000")
	v.SetDefault("images.minio.access_key", "")
	v.SetDefault("images.minio.secret_key", "")
	v.SetDefault("images.minio.bucket", "pest-images")
	v.SetDefault("images.minio.use_ssl", false)

	v.SetDefault("archive.queue_size", 256)
	v.SetDefault("archive.redis.enabled", false)
	v.SetDefault("archive.redis.addr", "localhost:6379")
	v.SetDefault("archive.redis.password", "")
	v.SetDefault("archive.redis.db", 0)
	v.SetDefault("archive.redis.stream", "pest:events")
	v.SetDefault("archive.redis.max_len", 10000)
	v.SetDefault("archive.kafka.enabled", false)
	v.SetDefault("archive.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("archive.kafka.topic", "pest-events")
	v.SetDefault("archive.clickhouse.enabled", false)
	v.SetDefault("archive.clickhouse.addr", "localhost:9000")
	v.SetDefault("archive.clickhouse.database", "default")
	v.SetDefault("archive.clickhouse.username", "default")
	v.SetDefault("archive.clickhouse.password", "")
}
