package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/jordanlanch/leaddesk/pkg/logger"
)

// Manager defines the interface for secrets management
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretJSON retrieves a secret and unmarshals it as JSON
	GetSecretJSON(ctx context.Context, key string, dest interface{}) error

	// RefreshCache drops every cached value
	RefreshCache(ctx context.Context) error
}

// Config holds secrets manager configuration
type Config struct {
	Backend       string // "env" or "aws-secrets-manager"
	AWSRegion     string
	CacheDuration time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Backend:       "env",
		AWSRegion:     "eu-south-1",
		CacheDuration: 5 * time.Minute,
	}
}

// NewManager creates a secrets manager for cfg.Backend.
func NewManager(cfg Config, log logger.Logger) (Manager, error) {
	if log == nil {
		log = logger.Nop()
	}
	switch cfg.Backend {
	case "aws-secrets-manager", "aws":
		log.Info("using aws secrets manager", "region", cfg.AWSRegion)
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		return NewAWSSecretsManager(secretsmanager.New(sess), cfg, log), nil
	case "env", "environment", "":
		return NewEnvironmentManager(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported secrets backend: %s", cfg.Backend)
	}
}

// ttlCache is a per-key expiring cache.
type ttlCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl, now: time.Now, entries: make(map[string]cachedSecret)}
}

func (c *ttlCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (c *ttlCache) set(key, value string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedSecret{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *ttlCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedSecret)
}

// EnvironmentManager loads secrets from environment variables
type EnvironmentManager struct {
	cache *ttlCache
}

// NewEnvironmentManager creates an environment-backed manager.
func NewEnvironmentManager(cfg Config) *EnvironmentManager {
	return &EnvironmentManager{cache: newTTLCache(cfg.CacheDuration)}
}

// GetSecret retrieves a secret from environment variables
func (m *EnvironmentManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value, ok := m.cache.get(key); ok {
		return value, nil
	}
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	m.cache.set(key, value)
	return value, nil
}

// GetSecretJSON retrieves a secret and unmarshals it as JSON
func (m *EnvironmentManager) GetSecretJSON(ctx context.Context, key string, dest interface{}) error {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), dest)
}

// RefreshCache clears the cache (forces reload on next access)
func (m *EnvironmentManager) RefreshCache(ctx context.Context) error {
	m.cache.clear()
	return nil
}

// secretsAPI is the subset of the Secrets Manager client we call.
type secretsAPI interface {
	GetSecretValueWithContext(ctx aws.Context, in *secretsmanager.GetSecretValueInput, opts ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager loads secrets from AWS Secrets Manager
type AWSSecretsManager struct {
	client secretsAPI
	cache  *ttlCache
	log    logger.Logger
}

// NewAWSSecretsManager wraps a Secrets Manager client.
func NewAWSSecretsManager(client secretsAPI, cfg Config, log logger.Logger) *AWSSecretsManager {
	if log == nil {
		log = logger.Nop()
	}
	return &AWSSecretsManager{client: client, cache: newTTLCache(cfg.CacheDuration), log: log}
}

// GetSecret retrieves a secret from AWS Secrets Manager
func (m *AWSSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value, ok := m.cache.get(key); ok {
		return value, nil
	}

	result, err := m.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", key, err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", key)
	}

	m.cache.set(key, *result.SecretString)
	m.log.Debug("secret loaded", "key", key)
	return *result.SecretString, nil
}

// GetSecretJSON retrieves a secret and unmarshals it as JSON
func (m *AWSSecretsManager) GetSecretJSON(ctx context.Context, key string, dest interface{}) error {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), dest)
}

// RefreshCache forces a reload of all cached secrets
func (m *AWSSecretsManager) RefreshCache(ctx context.Context) error {
	m.cache.clear()
	return nil
}
