package version

import (
	"os/exec"
	"strings"
)

// Set at build time via -ldflags.
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the full version string. Release builds carry the plain
// version; builds from an untagged git checkout get a describe-style suffix,
// and builds outside a repo fall back to the ldflags commit when one was set.
func Resolve() string {
	return resolveVersion(Version, Commit, runGit)
}

func resolveVersion(base, commit string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	if _, err := git("rev-parse", "--git-dir"); err != nil {
		if commit != "" && commit != "unknown" {
			return base + "+" + shortCommit(commit)
		}
		return base
	}

	suffix := describeSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func describeSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}

	prefix := "v" + base + "-"
	return strings.TrimPrefix(desc, prefix)
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
