package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string

	AnthropicAPIKey string
	AnthropicModel  string

	CalAPIKey        string
	CalUsername      string
	CalEventTypeSlug string

	Timezone          string
	HorizonDays       int
	BookingConfidence float64
	BookingRetries    int
	RetentionDays     int

	AssistantSignature string
	WebsiteInfo        string

	SlackBotToken string
	SlackChannel  string
	APIToken      string
}

func Load() Config {
	return Config{
		Port:        envInt("ASSISTANT_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ASSISTANT_MODEL", "claude-sonnet-4-20250514"),

		CalAPIKey:        envStr("CAL_COM_API_KEY", ""),
		CalUsername:      envStr("CAL_COM_USERNAME", "otl-4refod"),
		CalEventTypeSlug: envStr("CAL_COM_EVENT_TYPE_SLUG", "30min"),

		Timezone:          envStr("ASSISTANT_TIMEZONE", "Europe/Helsinki"),
		HorizonDays:       envInt("ASSISTANT_HORIZON_DAYS", 14),
		BookingConfidence: envFloat("ASSISTANT_BOOKING_CONFIDENCE", 0.7),
		BookingRetries:    envInt("ASSISTANT_BOOKING_RETRIES", 3),
		RetentionDays:     envInt("ASSISTANT_RETENTION_DAYS", 30),

		AssistantSignature: envStr("ASSISTANT_SIGNATURE", "Olli's Personal Assistant"),
		WebsiteInfo: envStr("ASSISTANT_WEBSITE_INFO",
			"OTL.fi provides AI audit and implementation for companies interested in freeing time in their organisation from menial work. For detailed discussions, a call is recommended."),

		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_BOOKINGS_CHANNEL", ""),
		APIToken:      envStr("ASSISTANT_API_TOKEN", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
