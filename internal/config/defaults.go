package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "oxygencrate"

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/oxygencrate/
//   - Linux:   ~/.local/share/oxygencrate/
//   - Windows: %APPDATA%\oxygencrate\
//
// Falls back to ~/.oxygencrate if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin", "ios":
		return filepath.Join(homeDir(), "Library", "Application Support", appDir)
	case "linux", "android":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, appDir)
		}
		return filepath.Join(homeDir(), ".local", "share", appDir)
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDir)
		}
		return filepath.Join(homeDir(), "AppData", "Roaming", appDir)
	default:
		return filepath.Join(homeDir(), "."+appDir)
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/oxygencrate/
//   - Linux:   ~/.config/oxygencrate/
//   - Windows: %APPDATA%\oxygencrate\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "linux":
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, appDir)
		}
		return filepath.Join(homeDir(), ".config", appDir)
	default:
		return PlatformDataDir()
	}
}

// DefaultImportRoot returns the storage root imports are copied under.
// On Android this is the shared external storage; elsewhere the home
// directory.
func DefaultImportRoot() string {
	if v := os.Getenv("EXTERNAL_STORAGE"); v != "" {
		return v
	}
	if runtime.GOOS == "android" {
		return "/sdcard"
	}
	return homeDir()
}

func homeDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return home
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	searchDirs := []string{
		".",
		PlatformConfigDir(),
		PlatformDataDir(),
	}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
