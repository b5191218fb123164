package worktree

import (
	"regexp"
	"slices"
	"testing"
)

func TestSanitizeBranch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"main", "main"},
		{"feature/login", "feature-login"},
		{"user/jo/fix bug", "user-jo-fix-bug"},
		{"  /weird/  ", "weird"},
		{"a..b", "a.b"},
		{"", "branch"},
	}
	for _, tt := range tests {
		if got := SanitizeBranch(tt.in); got != tt.want {
			t.Errorf("SanitizeBranch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewName(t *testing.T) {
	if got := NewName("feature/x", "abcd1234"); got != "hub-wt-feature-x-abcd1234" {
		t.Errorf("NewName = %q", got)
	}
}

func TestRandomSuffix(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{8}$`)
	a, b := RandomSuffix(), RandomSuffix()
	if !re.MatchString(a) || !re.MatchString(b) {
		t.Errorf("RandomSuffix() = %q, %q; want 8 hex chars", a, b)
	}
	if a == b {
		t.Error("RandomSuffix should vary")
	}
}

func TestInferBranch(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"agent-3-feature-x-abcd1234", "feature-x", true},
		{"agent-12-main-1A2B3C4D", "main", true},
		{"hub-wt-feature-login-deadbeef", "feature-login", true},
		{"hub-wt-main", "main", true},
		{"agent-x-main-abcd1234", "", false},
		{"my-checkout", "", false},
		{"hub-wt-", "", false},
	}
	for _, tt := range tests {
		got, ok := InferBranch(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("InferBranch(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFilterCreatableBranches(t *testing.T) {
	in := []string{"main", "hub-wt-main-aaaa1111", "agent-1-dev-bbbb2222", "dev", "feature/agent-x"}
	got := FilterCreatableBranches(in)
	want := []string{"main", "dev", "feature/agent-x"}
	if !slices.Equal(got, want) {
		t.Errorf("FilterCreatableBranches = %v, want %v", got, want)
	}
}
