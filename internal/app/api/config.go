package api

import (
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/Apurer/vendor-orders/internal/app/stores"
	"github.com/Apurer/vendor-orders/internal/platform/config"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port              string
	Store             stores.Kind
	PostgresDSN       string
	PebbleDir         string
	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool
	JWTSecret         []byte
	// EphemeralSecret is set when JWT_SECRET was not configured and a random
	// secret was generated; sessions do not survive a restart.
	EphemeralSecret      bool
	SessionTTL           time.Duration
	SessionPurgeInterval time.Duration
	CORSAllowedOrigins   []string
	FirebaseProjectID    string
	FirebaseAPIKey       string
	FirebaseCredentials  string
	CatalogFile          string
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	kind, err := stores.ParseKind(os.Getenv("ORDERS_STORE"), dsn)
	if err != nil {
		return Config{}, fmt.Errorf("ORDERS_STORE: %w", err)
	}
	if kind == stores.KindPostgres && dsn == "" {
		return Config{}, fmt.Errorf("ORDERS_STORE=postgres requires POSTGRES_DSN")
	}
	cfg := Config{
		Port:                config.String("PORT", "8080"),
		Store:               kind,
		PostgresDSN:         dsn,
		PebbleDir:           config.String("PEBBLE_DIR", stores.DefaultPebbleDir),
		TemporalAddress:     config.String("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace:   config.String("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:    config.Bool("TEMPORAL_DISABLED"),
		CORSAllowedOrigins:  splitList(config.String("CORS_ALLOWED_ORIGINS", "*")),
		FirebaseProjectID:   config.String("FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:      config.String("FIREBASE_API_KEY", ""),
		FirebaseCredentials: config.String("FIREBASE_CREDENTIALS_JSON", ""),
		CatalogFile:         config.String("CATALOG_FILE", ""),
	}
	hours, err := config.PositiveInt("SESSION_TTL_HOURS", 24)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = time.Duration(hours) * time.Hour
	minutes, err := config.PositiveInt("SESSION_PURGE_INTERVAL_MINUTES", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionPurgeInterval = time.Duration(minutes) * time.Minute

	if secret := config.String("JWT_SECRET", ""); secret != "" {
		cfg.JWTSecret = []byte(secret)
	} else {
		cfg.JWTSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.JWTSecret); err != nil {
			return Config{}, fmt.Errorf("generate session secret: %w", err)
		}
		cfg.EphemeralSecret = true
	}
	return cfg, nil
}

// UseFirebase reports whether a hosted identity provider is configured.
func (c Config) UseFirebase() bool {
	return c.FirebaseProjectID != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
