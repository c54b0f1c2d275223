package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMongoDB = "mongodb"
	DriverMemory  = "memory"
)

// Aggregate maintenance modes.
const (
	AggregatesReadModifyWrite = "read-modify-write"
	AggregatesIncrement       = "increment"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Aggregates AggregatesConfig
	List       ListConfig
	Auth       AuthConfig
	WhatsApp   WhatsAppConfig
	Sheets     SheetsConfig
	Reporting  ReportingConfig
	Images     ImagesConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
}

// StoreConfig selects and configures the document database.
type StoreConfig struct {
	Driver      string
	URI         string
	DBName      string
	MediaBucket string
}

// AggregatesConfig controls how farmer due/paid totals are maintained.
type AggregatesConfig struct {
	Mode string
}

// ListConfig tunes the farmer list controller.
type ListConfig struct {
	PageSize       int
	SearchDebounce time.Duration
}

// AuthConfig holds one-time code and session settings.
type AuthConfig struct {
	CodeTTL      time.Duration
	SessionTTL   time.Duration
	AdminPhone   string
	AdminName    string
	DevEchoCodes bool
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
}

// Enabled reports whether outbound WhatsApp delivery is configured.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	LedgerRange     string
}

// Enabled reports whether the dues ledger export is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	DigestSchedule string
	ExportSchedule string
	Timezone       string
	DigestTo       string
}

// ImagesConfig bounds image uploads and their compressed form.
type ImagesConfig struct {
	MaxUploadBytes int
	MaxPixels      int
	MaxDimension   int
	TargetBytes    int
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	pageSize, err := getenvInt("FARMER_PAGE_SIZE", 20)
	if err != nil {
		return nil, err
	}
	debounce, err := getenvDuration("SEARCH_DEBOUNCE", 300*time.Millisecond)
	if err != nil {
		return nil, err
	}
	codeTTL, err := getenvDuration("OTP_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := getenvDuration("SESSION_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	maxUpload, err := getenvInt("IMAGE_MAX_UPLOAD_BYTES", 2<<20)
	if err != nil {
		return nil, err
	}
	maxPixels, err := getenvInt("IMAGE_MAX_PIXELS", 40_000_000)
	if err != nil {
		return nil, err
	}
	maxDimension, err := getenvInt("IMAGE_MAX_DIMENSION", 1280)
	if err != nil {
		return nil, err
	}
	targetBytes, err := getenvInt("IMAGE_TARGET_BYTES", 300<<10)
	if err != nil {
		return nil, err
	}

	port := getenvWithDefault("APP_PORT", "8080")
	cfg := &Config{
		Server: ServerConfig{
			Port:          port,
			Env:           getenvWithDefault("APP_ENV", "production"),
			LogLevel:      getenvWithDefault("LOG_LEVEL", "info"),
			PublicBaseURL: getenvWithDefault("PUBLIC_BASE_URL", "http://localhost:"+port),
		},
		Store: StoreConfig{
			Driver:      getenvWithDefault("STORE_DRIVER", DriverMongoDB),
			URI:         getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName:      getenvWithDefault("MONGODB_DB_NAME", "fieldtrack"),
			MediaBucket: getenvWithDefault("MONGODB_MEDIA_BUCKET", "media"),
		},
		Aggregates: AggregatesConfig{
			Mode: getenvWithDefault("AGGREGATES_MODE", AggregatesReadModifyWrite),
		},
		List: ListConfig{
			PageSize:       pageSize,
			SearchDebounce: debounce,
		},
		Auth: AuthConfig{
			CodeTTL:      codeTTL,
			SessionTTL:   sessionTTL,
			AdminPhone:   os.Getenv("ADMIN_PHONE"),
			AdminName:    getenvWithDefault("ADMIN_NAME", "Administrator"),
			DevEchoCodes: os.Getenv("OTP_DEV_ECHO") == "true",
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_LEDGER_ID"),
			LedgerRange:     getenvWithDefault("GOOGLE_SHEET_LEDGER_RANGE", "Dues!A1"),
		},
		Reporting: ReportingConfig{
			DigestSchedule: getenvWithDefault("DIGEST_CRON_SCHEDULE", "0 7 * * *"),
			ExportSchedule: getenvWithDefault("EXPORT_CRON_SCHEDULE", "0 20 * * 5"),
			Timezone:       getenvWithDefault("TIMEZONE", "Asia/Kolkata"),
			DigestTo:       os.Getenv("DIGEST_WHATSAPP_TO"),
		},
		Images: ImagesConfig{
			MaxUploadBytes: maxUpload,
			MaxPixels:      maxPixels,
			MaxDimension:   maxDimension,
			TargetBytes:    targetBytes,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongoDB:
		if c.Store.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.Store.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Aggregates.Mode {
	case AggregatesReadModifyWrite, AggregatesIncrement:
	default:
		return fmt.Errorf("unsupported AGGREGATES_MODE %q", c.Aggregates.Mode)
	}

	if c.List.PageSize <= 0 {
		return errors.New("FARMER_PAGE_SIZE must be positive")
	}

	if c.List.SearchDebounce < 0 {
		return errors.New("SEARCH_DEBOUNCE must not be negative")
	}

	if c.Auth.CodeTTL <= 0 || c.Auth.SessionTTL <= 0 {
		return errors.New("OTP_TTL and SESSION_TTL must be positive")
	}

	if c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided with WHATSAPP_TOKEN")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_LEDGER_ID must be set together")
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	if c.Images.MaxUploadBytes <= 0 || c.Images.MaxPixels <= 0 || c.Images.MaxDimension <= 0 || c.Images.TargetBytes <= 0 {
		return errors.New("image limits must be positive")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
