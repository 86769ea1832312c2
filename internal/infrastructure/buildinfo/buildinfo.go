// Package buildinfo exposes the build and git properties of the running binary.
package buildinfo

import (
	"runtime"
	"runtime/debug"

	"github.com/apascualco/microscope/internal/domain"
)

// Info is what the linker and the Go toolchain stamped into the binary.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
	Name      string
}

func (i Info) Build() domain.InfoProperties {
	props := map[string]string{
		"version":    i.Version,
		"time":       i.BuildDate,
		"go.version": runtime.Version(),
	}
	if i.Name != "" {
		props["name"] = i.Name
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		props["module"] = bi.Main.Path
	}
	return domain.NewInfoProperties(props)
}

// Git merges the vcs settings recorded by the toolchain with the ldflags commit.
// The ldflags value wins when both are present.
func (i Info) Git() domain.InfoProperties {
	props := make(map[string]string)
	if bi, ok := debug.ReadBuildInfo(); ok {
		mergeVCS(props, bi.Settings)
	}
	if i.Commit != "" && i.Commit != "none" {
		props["commit.id"] = i.Commit
	}
	return domain.NewInfoProperties(props)
}

func mergeVCS(props map[string]string, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs":
			props["vcs"] = s.Value
		case "vcs.revision":
			props["commit.id"] = s.Value
		case "vcs.time":
			props["commit.time"] = s.Value
		case "vcs.modified":
			props["dirty"] = s.Value
		}
	}
}
