package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/videotube/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 10 * 24 * time.Hour
	defaultS3Region        = "us-east-1"
	defaultLoginRateLimit  = 10
	defaultLoginRateWindow = time.Minute
	defaultSweepInterval   = time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secrets to sign access and refresh tokens, must differ
	AccessSecret  string
	RefreshSecret string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Object store to keep uploaded media in
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3PublicURL       string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Redis to share login rate limit between instances
	// In-memory limiter is used if empty
	RedisAddr string

	// Login attempts allowed per client in the window
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// How often objects that failed to be deleted are retried
	OrphanSweepInterval time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		Environment:     defaultEnvironment,
		AccessTTL:       defaultAccessTokenTTL,
		RefreshTTL:      defaultRefreshTokenTTL,
		S3Region:        defaultS3Region,
		LoginRateLimit:  defaultLoginRateLimit,
		LoginRateWindow: defaultLoginRateWindow,

		OrphanSweepInterval: defaultSweepInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":           setString(&c.ListenAddr),
		"DATABASE_URI":          setString(&c.DatabaseDSN),
		"ACCESS_TOKEN_SECRET":   setString(&c.AccessSecret),
		"ACCESS_TOKEN_TTL":      setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_SECRET":  setString(&c.RefreshSecret),
		"REFRESH_TOKEN_TTL":     setDuration(&c.RefreshTTL),
		"S3_BUCKET":             setString(&c.S3Bucket),
		"S3_REGION":             setString(&c.S3Region),
		"S3_ENDPOINT":           setString(&c.S3Endpoint),
		"S3_PUBLIC_URL":         setString(&c.S3PublicURL),
		"S3_ACCESS_KEY_ID":      setString(&c.S3AccessKeyID),
		"S3_SECRET_ACCESS_KEY":  setString(&c.S3SecretAccessKey),
		"REDIS_ADDR":            setString(&c.RedisAddr),
		"LOGIN_RATE_LIMIT":      setInt(&c.LoginRateLimit),
		"LOGIN_RATE_WINDOW":     setDuration(&c.LoginRateWindow),
		"ORPHAN_SWEEP_INTERVAL": setDuration(&c.OrphanSweepInterval),
		"LOG_LEVEL":             setString(&c.LogLevel),
		"ENVIRONMENT":           setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("videotube", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Access token secret")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Refresh token secret")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "Bucket for uploaded media")
	fs.StringVar(&c.S3Region, "s3-region", c.S3Region, "Bucket region")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", c.S3Endpoint, "S3 compatible endpoint")
	fs.StringVar(&c.S3PublicURL, "s3-public-url", c.S3PublicURL, "Base url media is served from")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for rate limiting")
	fs.IntVar(&c.LoginRateLimit, "login-rate-limit", c.LoginRateLimit, "Login attempts allowed per window")
	fs.DurationVar(&c.LoginRateWindow, "login-rate-window", c.LoginRateWindow, "Login rate limit window")
	fs.DurationVar(&c.OrphanSweepInterval, "sweep-interval", c.OrphanSweepInterval, "Interval of orphan objects deletion retries")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")

	return fs.Parse(args)
}

// Check options that have no sensible default
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		errs = append(errs, errors.New("access and refresh token secrets are required"))
	}
	if c.S3Bucket == "" {
		errs = append(errs, errors.New("s3 bucket is required"))
	}
	if c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0 {
		errs = append(errs, errors.New("login rate limit and window must be positive"))
	}
	return errors.Join(errs...)
}
