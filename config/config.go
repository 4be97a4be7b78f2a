package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var configFile string

// Config holds all application configuration
type Config struct {
	Environment    string        `mapstructure:"environment" validate:"oneof=development production test"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
	Server         ServerConfig  `mapstructure:"server"`
	Logging        LoggingConfig `mapstructure:"logging"`
	Discord        DiscordConfig `mapstructure:"discord"`
	Events         EventsConfig  `mapstructure:"events"`
	Redis          RedisConfig   `mapstructure:"redis"`
	Azure          AzureConfig   `mapstructure:"azure"`
	Elastic        ElasticConfig `mapstructure:"elastic"`
	Tracing        TracingConfig `mapstructure:"tracing"`
}

// ServerConfig holds the ops HTTP server configuration
type ServerConfig struct {
	Address string        `mapstructure:"address" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// DiscordConfig holds the chat platform connection
type DiscordConfig struct {
	Token         string `mapstructure:"token" validate:"required"`
	Prefix        string `mapstructure:"prefix" validate:"required"`
	ReactionEmoji string `mapstructure:"reaction_emoji" validate:"required"`
}

// EventsConfig holds event lifecycle policy
type EventsConfig struct {
	DeleteRoleOnResolve bool              `mapstructure:"delete_role_on_resolve"`
	StrictPlayerCounts  bool              `mapstructure:"strict_player_counts"`
	NameReplacements    map[string]string `mapstructure:"name_replacements"`
	Location            string            `mapstructure:"location" validate:"required"`
	RolePrefix          string            `mapstructure:"role_prefix"`
}

// RedisConfig holds the lifecycle journal configuration
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port" validate:"min=0,max=65535"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Enabled     bool          `mapstructure:"enabled"`
	Key         string        `mapstructure:"key"`
	TTL         time.Duration `mapstructure:"ttl"`
	HistorySize int           `mapstructure:"history_size" validate:"min=1"`
}

// AzureConfig holds Azure Service Bus configuration
type AzureConfig struct {
	QueueConnStr string `mapstructure:"queue_conn_str"`
	QueueName    string `mapstructure:"queue_name"`
}

// ElasticConfig holds the lifecycle search index configuration
type ElasticConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url" validate:"required_if=Enabled true"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Index    string `mapstructure:"index"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	LicenseKey     string `mapstructure:"license_key"`
	AppName        string `mapstructure:"app_name"`
	LogEnabled     bool   `mapstructure:"log_enabled"`
	DistribTracing bool   `mapstructure:"distributed_tracing_enabled"`
}

// SetConfigFile overrides the config file search
func SetConfigFile(file string) {
	configFile = file
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(path)
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configFile == "" {
			v.SetConfigName("app")
			v.SetConfigType("env")
			// Continue even if no config file is found - ENV vars and defaults apply
			_ = v.ReadInConfig()
		} else {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("GAMEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return config, nil
}

// Validate checks the configuration needed to run the bot
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.LoadLocation(c.Events.Location); err != nil {
		return fmt.Errorf("invalid events.location %q: %w", c.Events.Location, err)
	}
	return nil
}

// TimeLocation returns the time zone used to interpret event times
func (c EventsConfig) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.Local
	}
	return loc
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("environment", "development")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("server.address", "0.0.0.0:8080")
	v.SetDefault("server.timeout", "30s")

	// Logging settings
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Discord settings
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.prefix", "game ")
	v.SetDefault("discord.reaction_emoji", "🙋")

	// Event policy
	v.SetDefault("events.delete_role_on_resolve", false)
	v.SetDefault("events.strict_player_counts", false)
	v.SetDefault("events.name_replacements", map[string]string{})
	v.SetDefault("events.location", "Local")
	v.SetDefault("events.role_prefix", "Signups: ")

	// Redis settings
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.key", "gamebot:lifecycle")
	v.SetDefault("redis.ttl", "168h")
	v.SetDefault("redis.history_size", 50)

	// Azure settings
	v.SetDefault("azure.queue_conn_str", "")
	v.SetDefault("azure.queue_name", "gamebot-lifecycle")

	// Elasticsearch settings
	v.SetDefault("elastic.enabled", false)
	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")
	v.SetDefault("elastic.index", "gamebot-lifecycle")

	// Tracing settings
	v.SetDefault("tracing.license_key", "")
	v.SetDefault("tracing.app_name", "Gamebot")
	v.SetDefault("tracing.log_enabled", true)
	v.SetDefault("tracing.distributed_tracing_enabled", true)
}
