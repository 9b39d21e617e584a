// Package resolver decides where a conversion's output goes and whether the
// source file needs processing at all.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Action is what the caller should do with a source file.
type Action int

const (
	// Process means the target does not exist yet; go ahead.
	Process Action = iota
	// Skip means the target already exists and the run is a directory batch,
	// which never prompts.
	Skip
	// ProcessWithConfirmation means the target exists and the caller must get
	// an explicit yes before re-processing.
	ProcessWithConfirmation
)

func (a Action) String() string {
	switch a {
	case Process:
		return "process"
	case Skip:
		return "skip"
	case ProcessWithConfirmation:
		return "confirm"
	default:
		return "unknown"
	}
}

// Decision is the outcome of resolving one source file.
type Decision struct {
	TargetPath string
	Action     Action
	Reason     string
}

// Resolve inspects the file system and decides how to handle sourcePath for
// the given target extension. Only a file with the exact target extension
// counts as "already processed"; a same-named file with a different extension
// never causes a skip. The check is a point-in-time read of the file system,
// nothing is cached.
func Resolve(sourcePath, targetExt string, directoryMode bool) Decision {
	candidate := ReplaceExt(sourcePath, targetExt)

	if _, err := os.Stat(candidate); err != nil {
		return Decision{TargetPath: candidate, Action: Process}
	}

	if directoryMode {
		return Decision{
			TargetPath: candidate,
			Action:     Skip,
			Reason:     fmt.Sprintf("%s already exists", filepath.Base(candidate)),
		}
	}

	return Decision{
		TargetPath: candidate,
		Action:     ProcessWithConfirmation,
		Reason:     fmt.Sprintf("%s already exists", filepath.Base(candidate)),
	}
}

// UniquePath returns the first non-existing path of the form name_1.ext,
// name_2.ext, ... next to sourcePath. Used after the caller confirmed a
// re-process so the prior output is never overwritten.
func UniquePath(sourcePath, targetExt string) string {
	dir := filepath.Dir(sourcePath)
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, targetExt))
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// ReplaceExt swaps the extension of path for ext (which includes the dot).
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
