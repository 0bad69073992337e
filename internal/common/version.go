package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Set with -ldflags "-X github.com/bobmcallan/tradeonly/internal/common.Version=..."
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

const versionFileName = ".version"

// VersionInfo is the build metadata reported by `tradeonly version`, the
// serve banner and /api/version. A .version file uses the same keys.
type VersionInfo struct {
	Version string `json:"version" toml:"version"`
	Build   string `json:"build" toml:"build"`
	Commit  string `json:"commit" toml:"commit"`
}

var versionMu sync.RWMutex

// CurrentVersion returns the effective build metadata
func CurrentVersion() VersionInfo {
	versionMu.RLock()
	defer versionMu.RUnlock()
	return VersionInfo{Version: Version, Build: Build, Commit: GitCommit}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("tradeonly %s (build %s, commit %s)", v.Version, v.Build, v.Commit)
}

// UserAgent is sent on every outbound API request.
func UserAgent() string {
	return "tradeonly/" + CurrentVersion().Version
}

// LoadVersionFromFile fills build metadata that ldflags left at its
// defaults, first from a .version file next to the binary, then from the
// VCS stamp in the Go build info.
func LoadVersionFromFile() {
	if exe, err := os.Executable(); err == nil {
		_ = loadVersionFile(filepath.Join(filepath.Dir(exe), versionFileName))
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		mergeVersion(fromBuildInfo(bi))
	}
}

func loadVersionFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var v VersionInfo
	if err := toml.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	mergeVersion(v)
	return nil
}

func fromBuildInfo(bi *debug.BuildInfo) VersionInfo {
	var v VersionInfo
	if mv := bi.Main.Version; mv != "" && mv != "(devel)" {
		v.Version = mv
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			v.Commit = s.Value
			if len(v.Commit) > 12 {
				v.Commit = v.Commit[:12]
			}
		case "vcs.time":
			v.Build = s.Value
		}
	}
	return v
}

// mergeVersion only replaces values still at their defaults
func mergeVersion(v VersionInfo) {
	versionMu.Lock()
	defer versionMu.Unlock()
	if Version == "dev" && v.Version != "" {
		Version = v.Version
	}
	if Build == "unknown" && v.Build != "" {
		Build = v.Build
	}
	if GitCommit == "unknown" && v.Commit != "" {
		GitCommit = v.Commit
	}
}
