package reachctl

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads KEY=VALUE lines from path into the process environment,
// overwriting existing values. Comments, blank lines, an optional "export "
// prefix and quoted values follow dotenv rules.
//
// A missing or unparsable file is not fatal: a warning is logged and an
// empty map is returned.
func LoadEnvFile(path string, logger *slog.Logger) map[string]string {
	if logger == nil {
		logger = slog.Default()
	}

	loaded, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("settings file not found, using defaults", "path", path, "error", fmt.Errorf("%w: %w", ErrConfigLoad, err))
		} else {
			logger.Warn("settings file not loaded, using defaults", "path", path, "error", fmt.Errorf("%w: %w", ErrConfigLoad, err))
		}
		return map[string]string{}
	}

	for key, value := range loaded {
		if err := os.Setenv(key, value); err != nil {
			logger.Warn("could not set variable", "path", path, "key", key, "error", err)
			delete(loaded, key)
		}
	}

	logger.Debug("settings file loaded", "path", path, "keys", len(loaded))
	return loaded
}
