package cli

import (
	"errors"
	"io/fs"

	"github.com/roach88/speller/internal/config"
)

// loadConfig reads path, or returns the defaults when path is empty.
// The returned exit code distinguishes a missing file from an invalid one.
func loadConfig(path string) (config.Config, int, string, error) {
	if path == "" {
		return config.Default(), ExitSuccess, "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, ExitCommandError, ErrCodeNotFound, err
		}
		return config.Config{}, ExitFailure, ErrCodeConfig, err
	}
	return cfg, ExitSuccess, "", nil
}
