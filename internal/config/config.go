package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Canvas    CanvasConfig
	LTI       LTIConfig
	Session   SessionConfig
	Dates     DatesConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port      string `validate:"required,numeric"`
	Env       string
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
	BaseURL   string
}

type RedisConfig struct {
	Addr     string `validate:"required"`
	Password string
	DB       int `validate:"min=0"`
}

type QueueConfig struct {
	Name        string `validate:"required"`
	Concurrency int    `validate:"min=1"`
	JobTTLHours int    `validate:"min=1"`
}

type WorkerConfig struct {
	Embedded bool
}

type CanvasConfig struct {
	BaseURL        string   `validate:"required,url"`
	APIKey         string   `validate:"required"`
	Timeout        int      `validate:"min=1"` // seconds
	PerPage        int      `validate:"min=1,max=100"`
	AllowedDomains []string `validate:"required,min=1"`
}

type LTIConfig struct {
	ConsumerKey       string   `validate:"required"`
	ConsumerSecret    string   `validate:"required"`
	StaffRoles        []string `validate:"required,min=1"`
	CourseNavDisabled bool
	NonceTTLMinutes   int `validate:"min=1"`
}

type SessionConfig struct {
	Secret     string `validate:"required,min=8"`
	Expiration int    `validate:"min=1"` // hours
}

type DatesConfig struct {
	TimeZone    string `validate:"required"`
	LocalFormat string `validate:"required"`
}

type RateLimitConfig struct {
	UpdatesPerHour int `validate:"min=1"`
}

// Load reads and validates the configuration of the HTTP server.
func Load() (*Config, error) {
	cfg := load()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker reads the configuration of the worker-only process, which does
// not need the launch or session settings.
func LoadWorker() (*Config, error) {
	cfg := load()
	if err := ValidateWorker(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() *Config {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("CANVAS_API_KEY")
	readSecret("LTI_SECRET")
	readSecret("SESSION_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.log_format", "LOG_FORMAT")
	_ = viper.BindEnv("server.base_url", "BASE_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("queue.name", "QUEUE_NAME")
	_ = viper.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	_ = viper.BindEnv("queue.job_ttl_hours", "JOB_TTL_HOURS")
	_ = viper.BindEnv("worker.embedded", "WORKER_EMBEDDED")
	_ = viper.BindEnv("canvas.base_url", "CANVAS_URL")
	_ = viper.BindEnv("canvas.api_key", "CANVAS_API_KEY")
	_ = viper.BindEnv("canvas.timeout", "CANVAS_TIMEOUT")
	_ = viper.BindEnv("canvas.per_page", "CANVAS_PER_PAGE")
	_ = viper.BindEnv("canvas.allowed_domains", "ALLOWED_CANVAS_DOMAINS")
	_ = viper.BindEnv("lti.consumer_key", "LTI_KEY")
	_ = viper.BindEnv("lti.consumer_secret", "LTI_SECRET")
	_ = viper.BindEnv("lti.staff_roles", "LTI_STAFF_ROLES")
	_ = viper.BindEnv("lti.course_nav_disabled", "DISABLE_COURSE_NAV")
	_ = viper.BindEnv("lti.nonce_ttl_minutes", "LTI_NONCE_TTL_MINUTES")
	_ = viper.BindEnv("session.secret", "SESSION_SECRET")
	_ = viper.BindEnv("session.expiration", "SESSION_EXPIRATION")
	_ = viper.BindEnv("dates.time_zone", "TIME_ZONE")
	_ = viper.BindEnv("dates.local_format", "LOCAL_TIME_FORMAT")
	_ = viper.BindEnv("ratelimit.updates_per_hour", "RATELIMIT_UPDATES_PER_HOUR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.log_format", "json")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("queue.name", "ddc")
	viper.SetDefault("queue.concurrency", 5)
	viper.SetDefault("queue.job_ttl_hours", 24)
	viper.SetDefault("worker.embedded", true)
	viper.SetDefault("canvas.base_url", "https://changeme.example.com")
	viper.SetDefault("canvas.timeout", 30)
	viper.SetDefault("canvas.per_page", 100)
	viper.SetDefault("canvas.allowed_domains", []string{"canvas.instructure.com"})
	viper.SetDefault("lti.staff_roles", []string{
		"urn:lti:instrole:ims/lis/Administrator",
		"Instructor",
		"ContentDeveloper",
		"urn:lti:role:ims/lis/TeachingAssistant",
	})
	viper.SetDefault("lti.course_nav_disabled", false)
	viper.SetDefault("lti.nonce_ttl_minutes", 90)
	viper.SetDefault("session.expiration", 8)
	viper.SetDefault("dates.time_zone", "US/Eastern")
	viper.SetDefault("dates.local_format", "01/02/2006 03:04 PM")
	viper.SetDefault("ratelimit.updates_per_hour", 30)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			LogFormat: viper.GetString("server.log_format"),
			BaseURL:   strings.TrimRight(viper.GetString("server.base_url"), "/"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Queue: QueueConfig{
			Name:        viper.GetString("queue.name"),
			Concurrency: viper.GetInt("queue.concurrency"),
			JobTTLHours: viper.GetInt("queue.job_ttl_hours"),
		},
		Worker: WorkerConfig{
			Embedded: viper.GetBool("worker.embedded"),
		},
		Canvas: CanvasConfig{
			BaseURL:        strings.TrimRight(viper.GetString("canvas.base_url"), "/"),
			APIKey:         viper.GetString("canvas.api_key"),
			Timeout:        viper.GetInt("canvas.timeout"),
			PerPage:        viper.GetInt("canvas.per_page"),
			AllowedDomains: splitList(viper.GetStringSlice("canvas.allowed_domains")),
		},
		LTI: LTIConfig{
			ConsumerKey:       viper.GetString("lti.consumer_key"),
			ConsumerSecret:    viper.GetString("lti.consumer_secret"),
			StaffRoles:        splitList(viper.GetStringSlice("lti.staff_roles")),
			CourseNavDisabled: viper.GetBool("lti.course_nav_disabled"),
			NonceTTLMinutes:   viper.GetInt("lti.nonce_ttl_minutes"),
		},
		Session: SessionConfig{
			Secret:     viper.GetString("session.secret"),
			Expiration: viper.GetInt("session.expiration"),
		},
		Dates: DatesConfig{
			TimeZone:    viper.GetString("dates.time_zone"),
			LocalFormat: viper.GetString("dates.local_format"),
		},
		RateLimit: RateLimitConfig{
			UpdatesPerHour: viper.GetInt("ratelimit.updates_per_hour"),
		},
	}

	return cfg
}

// Validate checks the loaded configuration for missing or malformed values.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// workerExcluded are the sections only the HTTP server reads.
var workerExcluded = []string{"LTI", "Session", "RateLimit"}

// ValidateWorker is Validate without the sections in workerExcluded.
func ValidateWorker(cfg *Config) error {
	if err := validator.New().StructExcept(cfg, workerExcluded...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// splitList flattens comma-separated entries, which is how list values
// arrive from environment variables.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
