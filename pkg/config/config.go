package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Payment PaymentConfig `mapstructure:"payment"`
	URLs    URLConfig     `mapstructure:"urls"`
	Storage StorageConfig `mapstructure:"storage"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Order   OrderConfig   `mapstructure:"order"`
	Swagger SwaggerConfig `mapstructure:"swagger"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

// GRPCConfig configures the ops listener. Port 0 disables it.
type GRPCConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	MenuTTL  time.Duration `mapstructure:"menu_ttl"`
	UserTTL  time.Duration `mapstructure:"user_ttl"`
}

// LedgerConfig selects the SQL store for payment attempts. Driver is "mysql" or "postgres";
// an empty DSN disables the ledger.
type LedgerConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
	CookieName string        `mapstructure:"cookie_name"`
}

type PaymentConfig struct {
	SecretKey   string        `mapstructure:"secret_key"`
	Currency    string        `mapstructure:"currency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SuccessPath string        `mapstructure:"success_path"`
	CancelPath  string        `mapstructure:"cancel_path"`
}

type URLConfig struct {
	Frontend string `mapstructure:"frontend"`
	Backend  string `mapstructure:"backend"`
}

type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	UploadDir     string `mapstructure:"upload_dir"`
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	Prefix        string `mapstructure:"prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxUploadMB   int64  `mapstructure:"max_upload_mb"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type OrderConfig struct {
	TaxRate  float64 `mapstructure:"tax_rate"`
	Shipping float64 `mapstructure:"shipping"`
}

type SwaggerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// legacyEnv maps the environment names used by existing deployments onto config keys.
var legacyEnv = map[string]string{
	"server.port":        "PORT",
	"mongodb.uri":        "MONGODB_URI",
	"auth.jwt_secret":    "JWT_SECRET",
	"payment.secret_key": "STRIPE_SECRET_KEY",
	"urls.frontend":      "FRONTEND_URL",
	"urls.backend":       "BACKEND_URL",
	"redis.addr":         "REDIS_ADDR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "foodhall-api")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("etcd.dial_timeout", 5)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("etcd.lease_ttl", 30)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.menu_ttl", "5m")
	v.SetDefault("redis.user_ttl", "30m")
	v.SetDefault("ledger.driver", "mysql")
	v.SetDefault("ledger.max_idle_conns", 5)
	v.SetDefault("ledger.max_open_conns", 20)
	v.SetDefault("mongodb.database", "foodhall")
	v.SetDefault("mongodb.collection", "audit_logs")
	v.SetDefault("mongodb.timeout", "10s")
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.cookie_name", "token")
	v.SetDefault("payment.currency", "inr")
	v.SetDefault("payment.timeout", "10s")
	v.SetDefault("payment.success_path", "/myorder/verify?success=true&session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("payment.cancel_path", "/checkout?payment_status=cancel")
	v.SetDefault("urls.frontend", "http://localhost:5173")
	v.SetDefault("urls.backend", "http://localhost:4000")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.prefix", "items/")
	v.SetDefault("storage.max_upload_mb", 5)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:5174"})
	v.SetDefault("order.tax_rate", 0.15)
	v.SetDefault("order.shipping", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads the YAML file at configPath (optional when empty) and applies environment
// overrides. A .env file in the working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.MongoDB.URI == "" {
		return errors.New("mongodb.uri is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Order.TaxRate < 0 || c.Order.Shipping < 0 {
		return errors.New("order.tax_rate and order.shipping must be non-negative")
	}
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SuccessURL is the gateway redirect after payment; it keeps the gateway's session placeholder.
func (c *Config) SuccessURL() string {
	return strings.TrimRight(c.URLs.Frontend, "/") + c.Payment.SuccessPath
}

func (c *Config) CancelURL() string {
	return strings.TrimRight(c.URLs.Frontend, "/") + c.Payment.CancelPath
}
