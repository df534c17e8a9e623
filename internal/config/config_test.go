package config

import (
	"strings"
	"testing"
)

var envKeys = []string{
	"PORT", "LOG_LEVEL", "ENV", "DATABASE_URL",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
	"JOB_TRIGGER_TOKEN", "RATE_LIMIT_PER_MINUTE",
	"REMINDER_TIMEZONE", "REMINDER_CONCURRENCY", "REMINDER_OVERDUE_POLICY", "REMINDER_CRON",
	"AWS_REGION", "SES_FROM_EMAIL", "SNS_REGION", "SMS_ENABLED",
	"EVENTS_TOPIC_ARN", "SQS_QUEUE_URL", "WEBHOOK_URL", "WEBHOOK_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.ReminderConcurrency != 4 {
		t.Errorf("concurrency = %d", cfg.ReminderConcurrency)
	}
	if cfg.ReminderOverduePolicy != "daily" {
		t.Errorf("overdue policy = %s", cfg.ReminderOverduePolicy)
	}
	if cfg.ReminderLocation == nil || cfg.ReminderLocation.String() != "UTC" {
		t.Errorf("location = %v", cfg.ReminderLocation)
	}
	if !cfg.RedisEnabled {
		t.Error("redis should be enabled by default")
	}
	if cfg.SNSRegion != cfg.AWSRegion {
		t.Errorf("sns region should default to aws region, got %s", cfg.SNSRegion)
	}
	if cfg.JobTriggerToken != "" || cfg.ReminderCron != "" {
		t.Error("token and cron should be empty by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/rentals")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("JOB_TRIGGER_TOKEN", "s3cret")
	t.Setenv("REMINDER_TIMEZONE", "America/Mexico_City")
	t.Setenv("REMINDER_CONCURRENCY", "8")
	t.Setenv("REMINDER_OVERDUE_POLICY", "ONCE")
	t.Setenv("REMINDER_CRON", "0 9 * * *")
	t.Setenv("SMS_ENABLED", "true")
	t.Setenv("SNS_REGION", "us-west-2")
	t.Setenv("WEBHOOK_TIMEOUT", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://u:p@db:5432/rentals" {
		t.Errorf("database url = %s", cfg.DatabaseURL)
	}
	if cfg.RedisEnabled {
		t.Error("redis should be disabled")
	}
	if cfg.JobTriggerToken != "s3cret" {
		t.Errorf("token = %s", cfg.JobTriggerToken)
	}
	if cfg.ReminderLocation.String() != "America/Mexico_City" {
		t.Errorf("location = %s", cfg.ReminderLocation)
	}
	if cfg.ReminderConcurrency != 8 {
		t.Errorf("concurrency = %d", cfg.ReminderConcurrency)
	}
	if cfg.ReminderOverduePolicy != "once" {
		t.Errorf("overdue policy = %s", cfg.ReminderOverduePolicy)
	}
	if cfg.ReminderCron != "0 9 * * *" {
		t.Errorf("cron = %s", cfg.ReminderCron)
	}
	if !cfg.SMSEnabled || cfg.SNSRegion != "us-west-2" {
		t.Errorf("sms = %v region = %s", cfg.SMSEnabled, cfg.SNSRegion)
	}
	if cfg.WebhookTimeout != 3 {
		t.Errorf("webhook timeout = %d", cfg.WebhookTimeout)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "eighty"},
		{"DB_PORT", "x"},
		{"REDIS_PORT", "x"},
		{"REDIS_DB", "x"},
		{"REDIS_ENABLED", "maybe"},
		{"RATE_LIMIT_PER_MINUTE", "lots"},
		{"REMINDER_TIMEZONE", "Mars/Olympus_Mons"},
		{"REMINDER_CONCURRENCY", "0"},
		{"REMINDER_CONCURRENCY", "four"},
		{"SMS_ENABLED", "si"},
		{"WEBHOOK_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error should name %s: %v", tt.key, err)
			}
		})
	}
}
