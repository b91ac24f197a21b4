// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyMongoURI    = "MONGO_URI"
	KeyMongoDB     = "MONGO_DB"
	KeyAppEnv      = "APP_ENV"
	KeyLogLevel    = "LOG_LEVEL"
	KeyHTTPPort    = "HTTP_PORT"
	KeyIDCoercion  = "ODM_ID_COERCION"
	KeySyncIndexes = "ODM_SYNC_INDEXES"
	KeyAdminEmail  = "ADMIN_EMAIL"
	KeyAdminPass   = "ADMIN_PASSWORD"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Allowed id coercion modes.
	CoercionCompat     = "compat"
	CoercionEverywhere = "everywhere"

	// Defaults for optional settings.
	DefaultAppEnv     = EnvProduction
	DefaultLogLevel   = "info"
	DefaultHTTPPort   = 8080
	DefaultIDCoercion = CoercionCompat

	// Recommended database names by environment.
	DefaultMongoDBProd = "docmapper"
	DefaultMongoDBDev  = "docmapper_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the service must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
		Notes:       "Must use the mongodb:// or mongodb+srv:// scheme.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/metrics port.",
	},
	{
		Key:         KeyIDCoercion,
		Example:     CoercionCompat + " / " + CoercionEverywhere,
		Default:     DefaultIDCoercion,
		Description: "Which model operations convert string ids to ObjectIDs.",
		Notes:       CoercionCompat + " leaves find, updateMany and countDocuments filters untouched.",
	},
	{
		Key:         KeySyncIndexes,
		Example:     "true / false",
		Default:     "false",
		Description: "Create declared schema indexes on serve startup.",
	},
	{
		Key:         KeyAdminEmail,
		Example:     "admin@example.com",
		Description: "Email of the head administrator seeded on startup.",
		Notes:       "Seeding is skipped when empty.",
	},
	{
		Key:         KeyAdminPass,
		Example:     "change-me",
		Description: "Initial password for a newly seeded head administrator.",
		Notes:       "Only used when the account is created. A random password is set when empty.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	MongoURI    string
	MongoDB     string
	AppEnv      string
	LogLevel    string
	HTTPPort    int
	IDCoercion  string
	SyncIndexes bool
	AdminEmail  string
	AdminPass   string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:     firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		MongoURI:   strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:    strings.TrimSpace(os.Getenv(KeyMongoDB)),
		LogLevel:   firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:   DefaultHTTPPort,
		IDCoercion: firstNonEmpty(normalizeEnv(os.Getenv(KeyIDCoercion)), DefaultIDCoercion),
		AdminEmail: strings.ToLower(strings.TrimSpace(os.Getenv(KeyAdminEmail))),
		AdminPass:  os.Getenv(KeyAdminPass),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if !strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	if cfg.IDCoercion != CoercionCompat && cfg.IDCoercion != CoercionEverywhere {
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyIDCoercion, CoercionCompat, CoercionEverywhere)
	}

	syncRaw := strings.TrimSpace(os.Getenv(KeySyncIndexes))
	if syncRaw != "" {
		sync, parseErr := strconv.ParseBool(syncRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeySyncIndexes, parseErr)
		}
		cfg.SyncIndexes = sync
	}

	if cfg.AdminEmail != "" && !strings.Contains(cfg.AdminEmail, "@") {
		return Config{}, fmt.Errorf("invalid %s: %q is not an email address", KeyAdminEmail, cfg.AdminEmail)
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders cfg for display without credentials.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"mongo_uri: " + redactURI(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
		"odm_id_coercion: " + cfg.IDCoercion,
		"odm_sync_indexes: " + strconv.FormatBool(cfg.SyncIndexes),
		"admin_email: " + firstNonEmpty(cfg.AdminEmail, "(unset)"),
		"admin_password: " + redactSecret(cfg.AdminPass),
	}
	return strings.Join(lines, "\n")
}

func redactSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	return "(set)"
}

func redactURI(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "invalid-uri-redacted"
	}
	parsed.User = nil
	return parsed.String()
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
