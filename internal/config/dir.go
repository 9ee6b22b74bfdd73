// Package config locates shiftsheet's configuration directory and reads its
// environment settings.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "shiftsheet"

// Dir is where the token file and the user-level .env live. The first
// non-empty candidate wins: SHIFTSHEET_CONFIG_HOME as-is, then an
// application subdirectory of XDG_CONFIG_HOME, of APPDATA (Windows only) and
// finally of ~/.config. An unknown home directory yields "".
func Dir() string {
	if dir := os.Getenv("SHIFTSHEET_CONFIG_HOME"); dir != "" {
		return dir
	}
	if base := userConfigBase(); base != "" {
		return filepath.Join(base, appName)
	}
	return ""
}

func userConfigBase() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}
