package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	Session  SessionConfig  `env:",prefix=SESSION_"`
	Garmin   GarminConfig   `env:",prefix=GARMIN_"`
	Whoop    WhoopConfig    `env:",prefix=WHOOP_"`
	Oura     OuraConfig     `env:",prefix=OURA_"`
	Webhook  WebhookConfig  `env:",prefix=WEBHOOK_"`
	Security SecurityConfig
	CORS     CORSConfig     `env:",prefix=CORS_"`
	App      AppConfig      `env:",prefix=APP_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host          string `env:"HOST,default=localhost"`
	Port          string `env:"PORT,default=5432"`
	User          string `env:"USER,default=biometrics"`
	Password      string `env:"PASSWORD,default=biometrics_password"`
	DBName        string `env:"DB,default=biometrics_db"`
	SSLMode       string `env:"SSLMODE,default=disable"`
	MigrationsURL string `env:"MIGRATIONS_URL,default=file://migrations"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// SessionConfig configures the bearer-session verification contract. Sessions
// are minted by the identity service; this service only verifies them.
type SessionConfig struct {
	Secret            string   `env:"SECRET,required"`
	AccessTokenExpiry Duration `env:"ACCESS_TOKEN_EXPIRY,default=15m"`
}

// GarminConfig holds OAuth 1.0a consumer credentials and endpoints.
type GarminConfig struct {
	ConsumerKey     string `env:"CONSUMER_KEY"`
	ConsumerSecret  string `env:"CONSUMER_SECRET"`
	CallbackURL     string `env:"CALLBACK_URL"`
	RequestTokenURL string `env:"REQUEST_TOKEN_URL,default=https://connectapi.garmin.com/oauth-service/oauth/request_token"`
	AccessTokenURL  string `env:"ACCESS_TOKEN_URL,default=https://connectapi.garmin.com/oauth-service/oauth/access_token"`
	AuthorizeURL    string `env:"AUTHORIZE_URL,default=https://connect.garmin.com/oauthConfirm"`
}

type WhoopConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
	AuthURL      string `env:"AUTH_URL,default=https://api.prod.whoop.com/oauth/oauth2/auth"`
	TokenURL     string `env:"TOKEN_URL,default=https://api.prod.whoop.com/oauth/oauth2/token"`
	APIBaseURL   string `env:"API_BASE_URL,default=https://api.prod.whoop.com/developer"`
}

type OuraConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
	AuthURL      string `env:"AUTH_URL,default=https://cloud.ouraring.com/oauth/authorize"`
	TokenURL     string `env:"TOKEN_URL,default=https://api.ouraring.com/oauth/token"`
	APIBaseURL   string `env:"API_BASE_URL,default=https://api.ouraring.com"`
}

// WebhookConfig controls inbound push-batch handling. Signature verification
// is optional: with an empty secret a batch is accepted on the strength of
// the access tokens it carries.
type WebhookConfig struct {
	SigningSecret string `env:"SIGNING_SECRET"`
}

type SecurityConfig struct {
	StateSecret       string   `env:"STATE_SECRET"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// AppConfig holds the public application location used for post-callback
// redirects.
type AppConfig struct {
	BaseURL string `env:"BASE_URL,default=http://localhost:3000"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.Session.Secret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters long")
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
