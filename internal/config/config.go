package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// minSecretBytes es el largo mínimo del secreto JWT una vez decodificado.
const minSecretBytes = 32

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort             string   `env:"HTTP_PORT" envDefault:"8080"`
	InternalHTTPAddr     string   `env:"INTERNAL_HTTP_ADDR" envDefault:"127.0.0.1:8082"`
	InternalAllowedCIDRs []string `env:"INTERNAL_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.0/8,::1/128"`
	DatabaseURL          string   `env:"DATABASE_URL,required"`
	DBMaxConns           int32    `env:"DB_MAX_CONNS" envDefault:"10"`

	JWTSecret           string `env:"JWT_SECRET,required"`
	JWTExpirationMs     int64  `env:"JWT_EXPIRATION_MS" envDefault:"86400000"`
	JWTClockSkewSeconds int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"0"`

	ResetCodeTTLMinutes       int  `env:"RESET_CODE_TTL_MINUTES" envDefault:"5"`
	ResetRevealUnknownEmail   bool `env:"RESET_REVEAL_UNKNOWN_EMAIL" envDefault:"false"`
	// ResetRequestLimit en 0 desactiva el límite.
	ResetRequestLimit         int  `env:"RESET_REQUEST_LIMIT" envDefault:"3"`
	ResetRequestWindowMinutes int  `env:"RESET_REQUEST_WINDOW_MINUTES" envDefault:"10"`

	UserStatusCacheTTLMinutes int `env:"USER_STATUS_CACHE_TTL_MINUTES" envDefault:"60"`

	HRSinkEnabled   bool   `env:"HR_SINK_ENABLED" envDefault:"true"`
	HRSinkBaseURL   string `env:"HR_SINK_BASE_URL" envDefault:"http://localhost:8081"`
	HRSinkTimeoutMs int    `env:"HR_SINK_TIMEOUT_MS" envDefault:"3000"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	ResendFrom   string `env:"RESEND_FROM"`
}

// LoadConfig carga la configuración desde variables de entorno y la valida.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza combinaciones que no permiten arrancar el servicio.
func (c *Config) Validate() error {
	var errs []error
	if _, err := DecodeSecret(c.JWTSecret); err != nil {
		errs = append(errs, err)
	}
	if c.JWTExpirationMs <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MS must be positive"))
	}
	if c.JWTClockSkewSeconds < 0 || c.JWTClockSkewSeconds > 60 {
		errs = append(errs, errors.New("JWT_CLOCK_SKEW_SECONDS must be between 0 and 60"))
	}
	if c.ResetCodeTTLMinutes <= 0 {
		errs = append(errs, errors.New("RESET_CODE_TTL_MINUTES must be positive"))
	}
	if c.ResetRequestLimit < 0 {
		errs = append(errs, errors.New("RESET_REQUEST_LIMIT must not be negative"))
	}
	if c.ResetRequestLimit > 0 && c.ResetRequestWindowMinutes <= 0 {
		errs = append(errs, errors.New("RESET_REQUEST_WINDOW_MINUTES must be positive"))
	}
	if c.UserStatusCacheTTLMinutes <= 0 {
		errs = append(errs, errors.New("USER_STATUS_CACHE_TTL_MINUTES must be positive"))
	}
	if c.HRSinkTimeoutMs <= 0 {
		errs = append(errs, errors.New("HR_SINK_TIMEOUT_MS must be positive"))
	}
	if _, err := c.AllowedPrefixes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationMs) * time.Millisecond
}

func (c *Config) JWTClockSkew() time.Duration {
	return time.Duration(c.JWTClockSkewSeconds) * time.Second
}

func (c *Config) ResetCodeTTL() time.Duration {
	return time.Duration(c.ResetCodeTTLMinutes) * time.Minute
}

func (c *Config) ResetRequestWindow() time.Duration {
	return time.Duration(c.ResetRequestWindowMinutes) * time.Minute
}

func (c *Config) UserStatusCacheTTL() time.Duration {
	return time.Duration(c.UserStatusCacheTTLMinutes) * time.Minute
}

func (c *Config) HRSinkTimeout() time.Duration {
	return time.Duration(c.HRSinkTimeoutMs) * time.Millisecond
}

// AllowedPrefixes parsea INTERNAL_ALLOWED_CIDRS.
func (c *Config) AllowedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.InternalAllowedCIDRs))
	for _, raw := range c.InternalAllowedCIDRs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("INTERNAL_ALLOWED_CIDRS: %w", err)
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}

// DecodeSecret decodifica el secreto JWT (Base64 estándar o URL) y exige un
// mínimo de 32 bytes.
func DecodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	var (
		key []byte
		err error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		key, err = enc.DecodeString(secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET is not valid base64: %w", err)
	}
	if len(key) < minSecretBytes {
		return nil, fmt.Errorf("JWT_SECRET must decode to at least %d bytes, got %d", minSecretBytes, len(key))
	}
	return key, nil
}
