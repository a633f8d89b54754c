// Package config loads the runtime configuration from the environment.
package config

import (
	"context"
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	EnvDevelopment = "development"

	// DevSigningKey is only ever used when APP_ENV=development and JWT_SECRET is unset.
	DevSigningKey = "defaultSecretKey"
)

// ErrMissingSecret is returned by SigningKey outside development mode.
var ErrMissingSecret = errors.New("config: JWT_SECRET is required outside development")

type Config struct {
	Env  string `env:"APP_ENV,default=production"`
	Addr string `env:"ADDR,default=:3000"`

	StoreDriver  string `env:"STORE_DRIVER,default=mongo"`
	MongoURI     string `env:"MONGODB_URI,default=mongodb://localhost:27017"`
	DatabaseName string `env:"DATABASE_NAME,default=postboard"`

	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=50m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=24h"`
	BcryptCost      int           `env:"BCRYPT_COST,default=10"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`

	Storage StorageConfig
}

type StorageConfig struct {
	Driver string `env:"STORAGE_DRIVER,default=none"`

	R2Bucket       string `env:"R2_BUCKET"`
	R2AccessKeyID  string `env:"R2_ACCESS_KEY_ID"`
	R2SecretKey    string `env:"R2_SECRET_ACCESS_KEY"`
	R2Endpoint     string `env:"R2_ENDPOINT"`
	R2PublicDomain string `env:"R2_PUBLIC_DOMAIN"`

	GCSBucket       string `env:"GCS_BUCKET"`
	CredentialsFile string `env:"CREDENTIALS_FILE_LOCATION"`

	MaxUploadSizeMB   int      `env:"MAX_UPLOAD_SIZE_MB,default=5"`
	AllowedExtensions []string `env:"ALLOWED_FILE_EXTENSIONS,default=.jpg,.jpeg,.png,.webp"`
	AllowedMimeTypes  []string `env:"ALLOWED_FILE_MIME_TYPES,default=image/jpeg,image/png,image/webp"`
}

// Load reads .env when present and then the process environment.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// SigningKey returns the HMAC key for tokens. The bool reports whether the
// development fallback was used.
func (c Config) SigningKey() ([]byte, bool, error) {
	if c.JWTSecret != "" {
		return []byte(c.JWTSecret), false, nil
	}
	if c.IsDevelopment() {
		return []byte(DevSigningKey), true, nil
	}
	return nil, false, ErrMissingSecret
}
