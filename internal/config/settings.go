package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Settings holds every tunable of the API. It is built once by Load and must
// not be mutated afterwards; components receive it as a read-only pointer.
type Settings struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`

	APIHost string `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort int    `envconfig:"API_PORT" default:"8000"`

	JWTSecret                 string `envconfig:"JWT_SECRET"`
	JWTAlgorithm              string `envconfig:"JWT_ALGORITHM" default:"HS256"`
	JWTExpirationMinutes      int    `envconfig:"JWT_EXPIRATION_MINUTES" default:"15"`
	JWTRefreshExpirationHours int    `envconfig:"JWT_REFRESH_EXPIRATION_HOURS" default:"168"`
	// Kept so older .env files still parse; not used for token lifetimes.
	JWTExpirationHours int `envconfig:"JWT_EXPIRATION_HOURS" default:"168"`
	BcryptRounds       int `envconfig:"BCRYPT_ROUNDS" default:"12"`

	AccessTokenCookieName  string `envconfig:"ACCESS_TOKEN_COOKIE_NAME" default:"access_token"`
	RefreshTokenCookieName string `envconfig:"REFRESH_TOKEN_COOKIE_NAME" default:"refresh_token"`
	CSRFTokenHeaderName    string `envconfig:"CSRF_TOKEN_HEADER_NAME" default:"x-csrf-token"`
	CSRFSecret             string `envconfig:"CSRF_SECRET"`
	CSRFEnabled            bool   `envconfig:"CSRF_ENABLED" default:"true"`
	CSRFCookieName         string `envconfig:"CSRF_COOKIE_NAME" default:"csrf_token"`

	CookieSecure   bool   `envconfig:"COOKIE_SECURE" default:"true"`
	CookieDomain   string `envconfig:"COOKIE_DOMAIN"`
	CookieSameSite string `envconfig:"COOKIE_SAME_SITE" default:"lax"`

	RateLimitRequests int    `envconfig:"RATE_LIMIT_REQUESTS" default:"100"`
	RateLimitWindow   int    `envconfig:"RATE_LIMIT_WINDOW" default:"3600"`
	RedisURL          string `envconfig:"REDIS_URL"`

	RequestTimeoutSeconds int    `envconfig:"REQUEST_TIMEOUT_SECONDS" default:"30"`
	CORSAllowedOrigins    string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	Debug    bool   `envconfig:"DEBUG" default:"false"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Error reports a missing or invalid setting. Startup must abort on it.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

var supportedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// bcrypt accepts costs in [4, 31].
const (
	minBcryptRounds = 4
	maxBcryptRounds = 31
)

// Load reads the optional env file, then the process environment, and
// validates the result.
func Load(envFilePath string) (*Settings, error) {
	if envFilePath != "" {
		if _, err := os.Stat(envFilePath); err == nil {
			if err := godotenv.Load(envFilePath); err != nil {
				log.Printf("Warning: could not load %s: %v", envFilePath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: error checking %s: %v", envFilePath, err)
		}
	}

	normalizeEnv()

	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// normalizeEnv copies settings given under a lower or mixed case name, such as
// database_url, to the upper case name envconfig looks up. A name already set
// in upper case wins.
func normalizeEnv() {
	known := make(map[string]bool)
	t := reflect.TypeOf(Settings{})
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("envconfig"); key != "" {
			known[key] = true
		}
	}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		upper := strings.ToUpper(key)
		if upper == key || !known[upper] {
			continue
		}
		if _, set := os.LookupEnv(upper); set {
			continue
		}
		os.Setenv(upper, value)
	}
}

// Validate checks required fields and value ranges. All problems are
// reported together.
func (s *Settings) Validate() error {
	var errs []error
	fail := func(field, reason string) {
		errs = append(errs, &Error{Field: field, Reason: reason})
	}

	if strings.TrimSpace(s.DatabaseURL) == "" {
		fail("database_url", "required")
	}
	if s.JWTSecret == "" {
		fail("jwt_secret", "required")
	}
	if !supportedAlgorithms[strings.ToUpper(s.JWTAlgorithm)] {
		fail("jwt_algorithm", fmt.Sprintf("unsupported algorithm %q", s.JWTAlgorithm))
	}
	if s.JWTExpirationMinutes <= 0 {
		fail("jwt_expiration_minutes", "must be positive")
	}
	if s.JWTRefreshExpirationHours <= 0 {
		fail("jwt_refresh_expiration_hours", "must be positive")
	}
	if s.BcryptRounds < minBcryptRounds || s.BcryptRounds > maxBcryptRounds {
		fail("bcrypt_rounds", fmt.Sprintf("must be between %d and %d", minBcryptRounds, maxBcryptRounds))
	}
	if s.CSRFEnabled && s.CSRFSecret == "" {
		fail("csrf_secret", "required while csrf_enabled is true")
	}
	if s.RateLimitRequests <= 0 {
		fail("rate_limit_requests", "must be positive")
	}
	if s.RateLimitWindow <= 0 {
		fail("rate_limit_window", "must be positive")
	}
	if s.RequestTimeoutSeconds <= 0 {
		fail("request_timeout_seconds", "must be positive")
	}
	if _, ok := parseSameSite(s.CookieSameSite); !ok {
		fail("cookie_same_site", fmt.Sprintf("unknown value %q", s.CookieSameSite))
	}

	return errors.Join(errs...)
}

func (s *Settings) AccessTokenTTL() time.Duration {
	return time.Duration(s.JWTExpirationMinutes) * time.Minute
}

func (s *Settings) RefreshTokenTTL() time.Duration {
	return time.Duration(s.JWTRefreshExpirationHours) * time.Hour
}

func (s *Settings) RateLimitWindowDuration() time.Duration {
	return time.Duration(s.RateLimitWindow) * time.Second
}

func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// Addr is the listen address built from api_host and api_port.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.APIHost, strconv.Itoa(s.APIPort))
}

// AllowedOrigins splits CORSAllowedOrigins on commas.
func (s *Settings) AllowedOrigins() []string {
	if s.CORSAllowedOrigins == "" {
		return nil
	}
	origins := strings.Split(strings.ReplaceAll(s.CORSAllowedOrigins, " ", ""), ",")
	out := origins[:0]
	for _, o := range origins {
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (s *Settings) SameSite() http.SameSite {
	mode, _ := parseSameSite(s.CookieSameSite)
	return mode
}

func parseSameSite(v string) (http.SameSite, bool) {
	switch strings.ToLower(v) {
	case "lax", "":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteDefaultMode, false
}
