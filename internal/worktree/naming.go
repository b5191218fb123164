// pattern: Functional Core

package worktree

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ManagedPrefix starts every managed worktree directory and generated branch.
const ManagedPrefix = "hub-wt-"

// LegacyPrefix starts worktrees created before metadata records existed,
// named agent-<n>-<branch>-<suffix>.
const LegacyPrefix = "agent-"

var (
	legacyNameRe   = regexp.MustCompile(`^agent-(\d+)-(.+)$`)
	randSuffixRe   = regexp.MustCompile(`-([0-9A-Za-z]{8})$`)
	unsafeBranchRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// SanitizeBranch makes a branch name safe for use inside a directory and
// branch name: slashes become hyphens and other unsafe runs collapse to one.
func SanitizeBranch(branch string) string {
	s := strings.ReplaceAll(strings.TrimSpace(branch), "/", "-")
	s = unsafeBranchRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	if s == "" {
		s = "branch"
	}
	return s
}

// NewName returns a managed worktree name for branch. The same string is
// used for the directory and the generated branch.
func NewName(branch, suffix string) string {
	return ManagedPrefix + SanitizeBranch(branch) + "-" + suffix
}

// RandomSuffix returns 8 random hex characters.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// IsManagedName reports whether name follows the managed naming convention.
func IsManagedName(name string) bool {
	return strings.HasPrefix(name, ManagedPrefix) && len(name) > len(ManagedPrefix)
}

// IsLegacyName reports whether name follows the legacy agent-<n>- convention.
func IsLegacyName(name string) bool {
	return legacyNameRe.MatchString(name)
}

// IsInternalBranch reports whether a branch was generated by this tool and
// should not be offered as a base for new worktrees.
func IsInternalBranch(branch string) bool {
	return strings.HasPrefix(branch, ManagedPrefix) || strings.HasPrefix(branch, LegacyPrefix)
}

// FilterCreatableBranches drops generated branches from list.
func FilterCreatableBranches(list []string) []string {
	out := make([]string, 0, len(list))
	for _, b := range list {
		if !IsInternalBranch(b) {
			out = append(out, b)
		}
	}
	return out
}

// InferBranch guesses the original branch from a worktree directory name by
// stripping the naming prefix and the trailing random suffix. Branches that
// contained slashes come back with hyphens, so the result is a best-effort
// hint and must not be treated as authoritative.
func InferBranch(name string) (string, bool) {
	var rest string
	switch {
	case IsManagedName(name):
		rest = strings.TrimPrefix(name, ManagedPrefix)
	case IsLegacyName(name):
		rest = legacyNameRe.FindStringSubmatch(name)[2]
	default:
		return "", false
	}
	if loc := randSuffixRe.FindStringIndex(rest); loc != nil && loc[0] > 0 {
		rest = rest[:loc[0]]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
