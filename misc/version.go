// Package misc keeps build information.
package misc

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags "-X pmx/misc.version=... -X pmx/misc.gitHash=...".
var (
	version = "dev"
	gitHash = ""
)

// GetAppName returns executable name without extension.
func GetAppName() string {
	name := filepath.Base(os.Args[0])
	if strings.HasSuffix(name, ".test") || strings.HasPrefix(name, "__debug_bin") {
		return "pmx"
	}
	if name = strings.TrimSuffix(name, filepath.Ext(name)); len(name) == 0 {
		return "pmx"
	}
	return name
}

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns commit the program was built from, when known.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				if len(s.Value) > 8 {
					return s.Value[:8]
				}
				return s.Value
			}
		}
	}
	return "unknown"
}
