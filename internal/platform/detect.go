// Package platform resolves host-specific filesystem locations.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ResolveAudioDir picks the working directory for transient audio files.
// Precedence: explicit override, VIDSCRIBE_AUDIO_DIR, then a per-OS data
// directory.
func ResolveAudioDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	if env := os.Getenv("VIDSCRIBE_AUDIO_DIR"); env != "" {
		return filepath.Clean(env), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	return DefaultAudioDirFor(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME"), os.TempDir())
}

// DefaultAudioDirFor is the OS-specific default; other systems fall back to a
// subdirectory of the temp dir since the files are transient anyway.
func DefaultAudioDirFor(goos, homeDir, xdgDataHome, tempDir string) (string, error) {
	switch goos {
	case "linux":
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "vidscribe", "audio"), nil
		}
		if homeDir == "" {
			return "", errors.New("home directory is empty")
		}
		return filepath.Join(homeDir, ".local", "share", "vidscribe", "audio"), nil
	case "darwin":
		if homeDir == "" {
			return "", errors.New("home directory is empty")
		}
		return filepath.Join(homeDir, "Library", "Application Support", "vidscribe", "audio"), nil
	default:
		if tempDir == "" {
			return "", errors.New("temp directory is empty")
		}
		return filepath.Join(tempDir, "vidscribe", "audio"), nil
	}
}
