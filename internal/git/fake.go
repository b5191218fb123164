package git

import (
	"context"
	"strings"
	"sync"
)

// FakeResponse is the canned result for a matched git invocation.
type FakeResponse struct {
	Stdout string
	Err    error
}

// FakeCall records one invocation seen by FakeRunner.
type FakeCall struct {
	Dir  string
	Args []string
}

type fakeRule struct {
	prefix   []string
	response FakeResponse
	times    int // 0 means unlimited
}

// FakeRunner returns pre-recorded responses for git invocations. Rules are
// matched in registration order by argument prefix. Unmatched commands
// succeed with empty output, or are delegated to Fallback when set.
type FakeRunner struct {
	Fallback Runner

	mu    sync.Mutex
	rules []*fakeRule
	calls []FakeCall
}

// NewFakeRunner returns a FakeRunner with no rules.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On registers a response for commands starting with prefix.
func (f *FakeRunner) On(prefix []string, resp FakeResponse) {
	f.OnTimes(prefix, 0, resp)
}

// OnTimes registers a response that is used at most n times.
func (f *FakeRunner) OnTimes(prefix []string, n int, resp FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &fakeRule{prefix: prefix, response: resp, times: n})
}

// Fail builds a *CommandFailedError with the given stderr text.
func Fail(stderr string, args ...string) error {
	return &CommandFailedError{Args: args, Stderr: stderr, ExitCode: 1}
}

// Calls returns all recorded invocations.
func (f *FakeRunner) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]FakeCall, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// Called reports whether any invocation started with prefix.
func (f *FakeRunner) Called(prefix ...string) bool {
	for _, c := range f.Calls() {
		if hasPrefix(c.Args, prefix) {
			return true
		}
	}
	return false
}

func (f *FakeRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Dir: dir, Args: args})
	var matched *FakeResponse
	for _, r := range f.rules {
		if r.times < 0 || !hasPrefix(args, r.prefix) {
			continue
		}
		resp := r.response
		matched = &resp
		if r.times > 0 {
			r.times--
			if r.times == 0 {
				r.times = -1
			}
		}
		break
	}
	f.mu.Unlock()

	if matched != nil {
		return []byte(matched.Stdout), matched.Err
	}
	if f.Fallback != nil {
		return f.Fallback.Run(ctx, dir, args...)
	}
	return nil, nil
}

func hasPrefix(args, prefix []string) bool {
	if len(args) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if args[i] != p {
			return false
		}
	}
	return true
}

// String renders a call as a shell-like command line for test messages.
func (c FakeCall) String() string {
	return "git " + strings.Join(c.Args, " ")
}
