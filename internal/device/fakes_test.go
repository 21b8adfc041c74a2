// internal/device/fakes_test.go
package device

import (
	"errors"
	"sync"
)

// scriptedShell replays canned replies in order; the last reply repeats.
type scriptedShell struct {
	mu      sync.Mutex
	replies []shellReply
	calls   [][]string
}

type shellReply struct {
	out string
	err error
}

func (s *scriptedShell) Shell(args ...string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, args)
	if len(s.replies) == 0 {
		return "", nil
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r.out, r.err
}

func (s *scriptedShell) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeRoot is a root environment handle with scriptable shell and file
// transfer behavior.
type fakeRoot struct {
	scriptedShell
	pushErr  error
	pullHook func(remotePath, localDir string) error
	pushes   [][2]string
	closed   bool
}

func (r *fakeRoot) Wrapped() EnvironmentHandle { return nil }
func (r *fakeRoot) Exposes(Capability) bool    { return false }

func (r *fakeRoot) Push(localPath, remotePath string) error {
	r.pushes = append(r.pushes, [2]string{localPath, remotePath})
	return r.pushErr
}

func (r *fakeRoot) Pull(remotePath, localDir string) error {
	if r.pullHook != nil {
		return r.pullHook(remotePath, localDir)
	}
	return errors.New("pull not scripted")
}

func (r *fakeRoot) Close() error {
	r.closed = true
	return nil
}

// fakeProvider is an accessibility capability wrapper serving pre-staged
// snapshot batches, one batch per AccumulateSnapshots call.
type fakeProvider struct {
	inner          EnvironmentHandle
	batches        []map[string][]*Forest
	drainCalls     int
	netEnableCalls int
	netEnableErr   error
}

func (p *fakeProvider) Wrapped() EnvironmentHandle { return p.inner }

func (p *fakeProvider) Exposes(c Capability) bool {
	return c == CapabilityAccessibility
}

func (p *fakeProvider) AccumulateSnapshots() map[string][]*Forest {
	p.drainCalls++
	if len(p.batches) == 0 {
		return map[string][]*Forest{}
	}
	batch := p.batches[0]
	p.batches = p.batches[1:]
	return batch
}

func (p *fakeProvider) AttemptEnableNetworking() error {
	p.netEnableCalls++
	return p.netEnableErr
}

// plainWrapper adds no capabilities; used to deepen handle chains in tests.
type plainWrapper struct {
	inner       EnvironmentHandle
	inspections int
}

func (w *plainWrapper) Wrapped() EnvironmentHandle { return w.inner }

func (w *plainWrapper) Exposes(Capability) bool {
	w.inspections++
	return false
}

func batchOf(forests ...*Forest) map[string][]*Forest {
	return map[string][]*Forest{snapshotCategory: forests}
}

func singleWindowForest(text string) *Forest {
	return &Forest{Windows: []*Window{{
		ID:     1,
		Active: true,
		Root:   &Node{Text: text, IsVisibleToUser: true},
	}}}
}
