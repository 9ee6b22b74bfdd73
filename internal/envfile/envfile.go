// Package envfile loads environment variables from .env files.
// Variables already set in the environment take precedence.
package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Load reads a .env file and sets any variables not already in the environment.
// Returns nil if the file doesn't exist. Returns an error for read or parse failures.
func Load(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading env file %s: %w", path, err)
	}

	for key, value := range values {
		// An empty variable counts as unset.
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
	return nil
}

// LoadDefaults loads .env.local and .env from the working directory, then
// the env file in configDir. Earlier files win. Errors are ignored.
func LoadDefaults(configDir string) {
	_ = Load(".env.local")
	_ = Load(".env")
	if configDir != "" {
		_ = Load(filepath.Join(configDir, "env"))
	}
}
