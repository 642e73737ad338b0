package secrets

import (
	"context"
	"fmt"
)

// LoadString loads a secret as a string with optional fallback
func LoadString(ctx context.Context, m Manager, key, fallback string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

// LoadStringRequired loads a required secret (fails if not found)
func LoadStringRequired(ctx context.Context, m Manager, key string) (string, error) {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return "", fmt.Errorf("required secret %s not found: %w", key, err)
	}
	if value == "" {
		return "", fmt.Errorf("required secret %s is empty", key)
	}
	return value, nil
}

// Credentials are the credentials the service reads from the secrets backend.
type Credentials struct {
	JWTSecret           string
	DatabaseURL         string
	RedisURL            string
	SendGridAPIKey      string
	WhatsAppAccessToken string
	SlackWebhookURL     string
	SentryDSN           string
}

// LoadCredentials loads the service credentials. Only JWT_SECRET is required;
// missing optional keys keep the matching field of fallback.
func LoadCredentials(ctx context.Context, m Manager, fallback Credentials) (*Credentials, error) {
	jwtSecret, err := LoadStringRequired(ctx, m, "JWT_SECRET")
	if err != nil {
		return nil, err
	}
	return &Credentials{
		JWTSecret:           jwtSecret,
		DatabaseURL:         LoadString(ctx, m, "DATABASE_URL", fallback.DatabaseURL),
		RedisURL:            LoadString(ctx, m, "REDIS_URL", fallback.RedisURL),
		SendGridAPIKey:      LoadString(ctx, m, "SENDGRID_API_KEY", fallback.SendGridAPIKey),
		WhatsAppAccessToken: LoadString(ctx, m, "WHATSAPP_ACCESS_TOKEN", fallback.WhatsAppAccessToken),
		SlackWebhookURL:     LoadString(ctx, m, "SLACK_WEBHOOK_URL", fallback.SlackWebhookURL),
		SentryDSN:           LoadString(ctx, m, "SENTRY_DSN", fallback.SentryDSN),
	}, nil
}
