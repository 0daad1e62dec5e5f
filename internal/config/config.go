package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vertigo/eventtimeline/internal/scheduler"
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
		slog.Warn("Could not read secret file", "env", envKey+"_FILE", "error", err)
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	PlanPerMin  int
	JobsPerHour int
}

type JobsConfig struct {
	RetentionHours int
	MaxRetry       int
	Concurrency    int
}

// SchedulerConfig holds the engine defaults applied to every planning run
type SchedulerConfig struct {
	LeadSetupMinutes            int
	CallBufferMinutes           int
	MilestoneToleranceMinutes   int
	GapThresholdMinutes         int
	SafetyMetersPerBufferMinute int
	BaselineStaff               int
	PeakStart                   float64
	PeakEnd                     float64
	HazardCategories            []string
	DefaultSimultaneousMax      int
}

// Options converts the configured defaults into engine options.
func (c SchedulerConfig) Options() scheduler.Options {
	opts := scheduler.DefaultOptions()
	opts.LeadSetupMinutes = c.LeadSetupMinutes
	opts.CallBufferMinutes = c.CallBufferMinutes
	opts.MilestoneToleranceMinutes = c.MilestoneToleranceMinutes
	opts.GapThresholdMinutes = c.GapThresholdMinutes
	opts.SafetyMetersPerBufferMinute = c.SafetyMetersPerBufferMinute
	opts.BaselineStaff = c.BaselineStaff
	opts.DefaultSimultaneousMax = c.DefaultSimultaneousMax
	opts.Heuristic = scheduler.NewHeuristic(c.HazardCategories, c.PeakStart, c.PeakEnd)
	return opts
}

var envBindings = map[string]string{
	"server.port":                               "SERVER_PORT",
	"server.env":                                "SERVER_ENV",
	"server.log_level":                          "LOG_LEVEL",
	"redis.addr":                                "REDIS_ADDR",
	"redis.password":                            "REDIS_PASSWORD",
	"redis.db":                                  "REDIS_DB",
	"ratelimit.plan_per_min":                    "RATELIMIT_PLAN_PER_MIN",
	"ratelimit.jobs_per_hour":                   "RATELIMIT_JOBS_PER_HOUR",
	"jobs.retention_hours":                      "JOBS_RETENTION_HOURS",
	"jobs.max_retry":                            "JOBS_MAX_RETRY",
	"jobs.concurrency":                          "JOBS_CONCURRENCY",
	"scheduler.lead_setup_minutes":              "SCHEDULER_LEAD_SETUP_MINUTES",
	"scheduler.call_buffer_minutes":             "SCHEDULER_CALL_BUFFER_MINUTES",
	"scheduler.milestone_tolerance_minutes":     "SCHEDULER_MILESTONE_TOLERANCE_MINUTES",
	"scheduler.gap_threshold_minutes":           "SCHEDULER_GAP_THRESHOLD_MINUTES",
	"scheduler.safety_meters_per_buffer_minute": "SCHEDULER_SAFETY_METERS_PER_BUFFER_MINUTE",
	"scheduler.baseline_staff":                  "SCHEDULER_BASELINE_STAFF",
	"scheduler.peak_start":                      "SCHEDULER_PEAK_START",
	"scheduler.peak_end":                        "SCHEDULER_PEAK_END",
	"scheduler.hazard_categories":               "SCHEDULER_HAZARD_CATEGORIES",
	"scheduler.default_simultaneous_max":        "SCHEDULER_DEFAULT_SIMULTANEOUS_MAX",
}

// Load reads configuration from an optional .env file, an optional
// config.yaml in . or ./config, and the environment. Environment wins.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	defaults := scheduler.DefaultOptions()
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.plan_per_min", 60)
	v.SetDefault("ratelimit.jobs_per_hour", 30)
	v.SetDefault("jobs.retention_hours", 24)
	v.SetDefault("jobs.max_retry", 3)
	v.SetDefault("jobs.concurrency", 10)

	// Engine defaults
	v.SetDefault("scheduler.lead_setup_minutes", defaults.LeadSetupMinutes)
	v.SetDefault("scheduler.call_buffer_minutes", defaults.CallBufferMinutes)
	v.SetDefault("scheduler.milestone_tolerance_minutes", defaults.MilestoneToleranceMinutes)
	v.SetDefault("scheduler.gap_threshold_minutes", defaults.GapThresholdMinutes)
	v.SetDefault("scheduler.safety_meters_per_buffer_minute", defaults.SafetyMetersPerBufferMinute)
	v.SetDefault("scheduler.baseline_staff", defaults.BaselineStaff)
	v.SetDefault("scheduler.peak_start", defaults.Heuristic.PeakStart)
	v.SetDefault("scheduler.peak_end", defaults.Heuristic.PeakEnd)
	v.SetDefault("scheduler.hazard_categories", scheduler.DefaultHazardCategories)
	v.SetDefault("scheduler.default_simultaneous_max", defaults.DefaultSimultaneousMax)

	// Try to read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			PlanPerMin:  v.GetInt("ratelimit.plan_per_min"),
			JobsPerHour: v.GetInt("ratelimit.jobs_per_hour"),
		},
		Jobs: JobsConfig{
			RetentionHours: v.GetInt("jobs.retention_hours"),
			MaxRetry:       v.GetInt("jobs.max_retry"),
			Concurrency:    v.GetInt("jobs.concurrency"),
		},
		Scheduler: SchedulerConfig{
			LeadSetupMinutes:            v.GetInt("scheduler.lead_setup_minutes"),
			CallBufferMinutes:           v.GetInt("scheduler.call_buffer_minutes"),
			MilestoneToleranceMinutes:   v.GetInt("scheduler.milestone_tolerance_minutes"),
			GapThresholdMinutes:         v.GetInt("scheduler.gap_threshold_minutes"),
			SafetyMetersPerBufferMinute: v.GetInt("scheduler.safety_meters_per_buffer_minute"),
			BaselineStaff:               v.GetInt("scheduler.baseline_staff"),
			PeakStart:                   v.GetFloat64("scheduler.peak_start"),
			PeakEnd:                     v.GetFloat64("scheduler.peak_end"),
			HazardCategories:            splitList(v.GetStringSlice("scheduler.hazard_categories")),
			DefaultSimultaneousMax:      v.GetInt("scheduler.default_simultaneous_max"),
		},
	}

	if cfg.Scheduler.PeakStart < 0 || cfg.Scheduler.PeakStart >= cfg.Scheduler.PeakEnd || cfg.Scheduler.PeakEnd > 1 {
		return nil, errors.New("scheduler.peak_start and scheduler.peak_end must satisfy 0 <= start < end <= 1")
	}

	return cfg, nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
