// Package config loads process settings from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
)

// LoadDotEnv loads the given files, or ".env" when none are named, without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// String returns the trimmed value of key, or fallback when unset or blank.
func String(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Bool reports whether key holds a truthy value (1, true, yes).
func Bool(key string) bool {
	return IsTruthy(os.Getenv(key))
}

func IsTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}

// PositiveInt parses key as a positive integer, returning fallback when unset.
func PositiveInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

// Catalog returns the catalog at path, or the built-in one when path is empty.
func Catalog(path string) (*domain.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return domain.DefaultCatalog(), nil
	}
	return domain.LoadCatalog(path)
}
