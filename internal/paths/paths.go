// Package paths locates per-user anda directories following the XDG base
// directory specification.
package paths

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory naming.
	appName = "anda"

	// Directory below each data directory holding shared script modules.
	scriptsDir = "scripts"
)

// Directory for user-installed script modules.
//
//	Linux:   $XDG_DATA_HOME/anda/scripts or ~/.local/share/anda/scripts
//	macOS:   ~/Library/Application Support/anda/scripts
func UserScripts() string {
	return filepath.Join(xdg.DataHome, appName, scriptsDir)
}

// Every directory searched for script modules, user directory first.
func ScriptDirs() []string {
	dirs := []string{UserScripts()}
	for _, d := range xdg.DataDirs {
		dirs = append(dirs, filepath.Join(d, appName, scriptsDir))
	}
	return dirs
}

// Finds a script module by its slash-separated name in the data
// directories.
func FindScript(name string) (string, error) {
	return xdg.SearchDataFile(filepath.Join(appName, scriptsDir, filepath.FromSlash(name)))
}
