package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv loads KEY=VALUE pairs from a dotenv file into the process environment.
// A missing file is not an error, and variables already present in the
// environment are never overwritten.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat dotenv file: %w", err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load dotenv file %s: %w", path, err)
	}
	return nil
}
