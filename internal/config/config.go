package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database. DatabaseURL wins over the discrete fields when set.
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Redis config
	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Trigger endpoint
	JobTriggerToken    string // empty disables bearer auth
	RateLimitPerMinute int

	// Reminder job
	ReminderTimezone      string
	ReminderLocation      *time.Location
	ReminderConcurrency   int
	ReminderOverduePolicy string
	ReminderCron          string // empty disables the in-process schedule

	// AWS Services
	AWSRegion      string
	SESFromEmail   string
	SNSRegion      string // AWS region for SNS (SMS)
	SMSEnabled     bool
	EventsTopicARN string
	SQSQueueURL    string

	// Webhook config
	WebhookURL     string
	WebhookTimeout int // seconds
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		// Local postgres defaults
		DBHost:    "localhost",
		DBPort:    5432,
		DBUser:    "postgres",
		DBName:    "rentals",
		DBSSLMode: "disable",

		// Redis defaults
		RedisEnabled: true,
		RedisHost:    "localhost",
		RedisPort:    6379,

		RateLimitPerMinute: 60,

		ReminderTimezone:      "UTC",
		ReminderConcurrency:   4,
		ReminderOverduePolicy: "daily",

		AWSRegion:      "us-east-1",
		WebhookTimeout: 10,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if enabled := os.Getenv("REDIS_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_ENABLED: %w", err)
		}
		cfg.RedisEnabled = b
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	// Trigger endpoint
	cfg.JobTriggerToken = os.Getenv("JOB_TRIGGER_TOKEN")

	if limit := os.Getenv("RATE_LIMIT_PER_MINUTE"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMinute = l
	}

	// Reminder job
	if tz := os.Getenv("REMINDER_TIMEZONE"); tz != "" {
		cfg.ReminderTimezone = tz
	}
	loc, err := time.LoadLocation(cfg.ReminderTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TIMEZONE: %w", err)
	}
	cfg.ReminderLocation = loc

	if n := os.Getenv("REMINDER_CONCURRENCY"); n != "" {
		c, err := strconv.Atoi(n)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_CONCURRENCY: %w", err)
		}
		if c <= 0 {
			return nil, fmt.Errorf("invalid REMINDER_CONCURRENCY: must be positive, got %d", c)
		}
		cfg.ReminderConcurrency = c
	}

	if policy := os.Getenv("REMINDER_OVERDUE_POLICY"); policy != "" {
		cfg.ReminderOverduePolicy = strings.ToLower(policy)
	}

	cfg.ReminderCron = os.Getenv("REMINDER_CRON")

	// AWS
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	cfg.SESFromEmail = os.Getenv("SES_FROM_EMAIL")

	// SNS config for SMS
	if region := os.Getenv("SNS_REGION"); region != "" {
		cfg.SNSRegion = region
	} else {
		cfg.SNSRegion = cfg.AWSRegion
	}

	if enabled := os.Getenv("SMS_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			return nil, fmt.Errorf("invalid SMS_ENABLED: %w", err)
		}
		cfg.SMSEnabled = b
	}

	cfg.EventsTopicARN = os.Getenv("EVENTS_TOPIC_ARN")
	cfg.SQSQueueURL = os.Getenv("SQS_QUEUE_URL")

	// Webhook config
	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")

	if timeout := os.Getenv("WEBHOOK_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
		}
		cfg.WebhookTimeout = t
	}

	return cfg, nil
}
