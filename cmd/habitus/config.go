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

	"github.com/nkiryanov/habitus/internal/logger"
	"github.com/nkiryanov/habitus/internal/service/auth/hasher"
)

const (
	defaultListenAddr         = "localhost:8000"
	defaultLoggingLevel       = logger.LevelInfo
	defaultEnvironment        = logger.EnvProduction
	defaultAccessTTL          = time.Hour
	defaultRefreshTTL         = 7 * 24 * time.Hour
	defaultPasswordHasher     = hasher.NameArgon2id
	defaultLoginMaxFailures   = 5
	defaultLoginFailureWindow = 15 * time.Minute
	defaultPublicURL          = "http://localhost:8000"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the habitus service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Redis keeps failed login counters
	// Login throttling is off if address is empty
	RedisAddr     string
	RedisPassword string

	// Token lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Password hashing algorithm for new hashes (argon2id, bcrypt)
	PasswordHasher string

	// Failed logins allowed from one ip within the window
	LoginMaxFailures   int
	LoginFailureWindow time.Duration

	// Send refresh cookie over plain http too, for local development only
	InsecureCookie bool

	// Service runs behind a reverse proxy that sets X-Forwarded-For
	// Client headers are ignored otherwise, so they can't fake the ip
	TrustProxy bool

	// Base of links in account emails
	PublicURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		Environment:        defaultEnvironment,
		AccessTTL:          defaultAccessTTL,
		RefreshTTL:         defaultRefreshTTL,
		PasswordHasher:     defaultPasswordHasher,
		LoginMaxFailures:   defaultLoginMaxFailures,
		LoginFailureWindow: defaultLoginFailureWindow,
		PublicURL:          defaultPublicURL,
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
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}
	setCookieSecure := func(value string) error {
		if value == "" {
			return nil
		}
		secure, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.InsecureCookie = !secure
		return nil
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"SECRET_KEY":           setString(&c.SecretKey),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
		"REDIS_ADDRESS":        setString(&c.RedisAddr),
		"REDIS_PASSWORD":       setString(&c.RedisPassword),
		"ACCESS_TOKEN_TTL":     setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":    setDuration(&c.RefreshTTL),
		"PASSWORD_HASHER":      setString(&c.PasswordHasher),
		"LOGIN_MAX_FAILURES":   setInt(&c.LoginMaxFailures),
		"LOGIN_FAILURE_WINDOW": setDuration(&c.LoginFailureWindow),
		"COOKIE_SECURE":        setCookieSecure,
		"TRUST_PROXY":          setBool(&c.TrustProxy),
		"PUBLIC_URL":           setString(&c.PublicURL),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("habitus", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for login throttling")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVar(&c.PasswordHasher, "password-hasher", c.PasswordHasher, "Password hasher (argon2id, bcrypt)")
	fs.IntVar(&c.LoginMaxFailures, "login-max-failures", c.LoginMaxFailures, "Failed logins allowed per ip within the window")
	fs.DurationVar(&c.LoginFailureWindow, "login-failure-window", c.LoginFailureWindow, "Failed logins counting window")
	fs.BoolVar(&c.InsecureCookie, "insecure-cookie", c.InsecureCookie, "Allow refresh cookie over plain http")
	fs.BoolVar(&c.TrustProxy, "trust-proxy", c.TrustProxy, "Take client ip from X-Forwarded-For and X-Real-IP headers")
	fs.StringVar(&c.PublicURL, "public-url", c.PublicURL, "Base url of links in account emails")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database uri is required"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.LoginMaxFailures < 1 || c.LoginFailureWindow <= 0 {
		errs = append(errs, errors.New("login throttling limits must be positive"))
	}

	return errors.Join(errs...)
}
