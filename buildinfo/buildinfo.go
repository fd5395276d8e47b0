// Package buildinfo reports which commit and Go toolchain produced the
// running binary, so every analysis log records the code that made it.
package buildinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

type BuildInfo struct {
	Module     string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (b BuildInfo) String() string {
	suffix := ""
	if b.Modified {
		suffix = " The working tree was modified after that commit."
	}

	return fmt.Sprintf("This %s binary was built with %s at commit %s (%s).%s",
		b.Module, b.GoVersion, b.Commit, b.CommitTime, suffix)
}

func Get() BuildInfo {
	out := BuildInfo{}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.Module = info.Path
	out.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func PrintToStderr() {
	fmt.Fprintln(os.Stderr, Get())
}
