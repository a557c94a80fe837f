package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeProvider struct {
	mu         sync.Mutex
	startCalls int
	pollCalls  int
	auth       ports.DeviceAuthorization
	startErr   error
	pollQueue  []ports.DevicePollResult
	pollErr    error
	user       domain.UserInfo
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		auth: ports.DeviceAuthorization{
			DeviceCode:      "device-code-1",
			UserCode:        "ABCD-1234",
			VerificationURI: "https://github.com/login/device",
			Interval:        time.Millisecond,
			ExpiresIn:       15 * time.Minute,
		},
		user: domain.UserInfo{Login: "octocat", Name: "The Octocat", ID: 583231},
	}
}

func (p *fakeProvider) StartDeviceAuthorization(ctx context.Context) (ports.DeviceAuthorization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startCalls++
	if p.startErr != nil {
		return ports.DeviceAuthorization{}, p.startErr
	}
	return p.auth, nil
}

func (p *fakeProvider) PollDeviceToken(ctx context.Context, deviceCode string) (ports.DevicePollResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollCalls++
	if p.pollErr != nil {
		return ports.DevicePollResult{}, p.pollErr
	}
	if len(p.pollQueue) == 0 {
		return ports.DevicePollResult{Status: ports.PollPending}, nil
	}
	next := p.pollQueue[0]
	if len(p.pollQueue) > 1 {
		p.pollQueue = p.pollQueue[1:]
	}
	return next, nil
}

func (p *fakeProvider) FetchUser(ctx context.Context, token string) (domain.UserInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user, nil
}

func (p *fakeProvider) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startCalls, p.pollCalls
}

func (p *fakeProvider) queuePoll(results ...ports.DevicePollResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollQueue = results
}

// fakeCollaborators records every collaborator call in order and tracks
// whether two batches ever touch a working copy at the same time.
type fakeCollaborators struct {
	mu        sync.Mutex
	cloned    []string
	released  []string
	calls     []string
	inFlight  int
	overlap   bool
	callDelay time.Duration
	gitFail   map[string]error
	gitPanic  map[string]bool
}

func (f *fakeCollaborators) CloneRepository(ctx context.Context, repo domain.RepositoryInfo, credential domain.Credential, user domain.UserInfo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := "/tmp/fake-clone/" + repo.FullName
	f.cloned = append(f.cloned, path)
	return path, nil
}

func (f *fakeCollaborators) ReleaseWorkingCopy(workingCopy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, workingCopy)
	return nil
}

func (f *fakeCollaborators) FileOps(workingCopy string) ports.FileOps {
	return &fakeFileOps{parent: f}
}

func (f *fakeCollaborators) GitOps(workingCopy string, credential domain.Credential, repo domain.RepositoryInfo) ports.GitOps {
	return &fakeGitOps{parent: f, fail: f.gitFail, panics: f.gitPanic}
}

func (f *fakeCollaborators) record(call string) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
	f.calls = append(f.calls, call)
	delay := f.callDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeCollaborators) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type fakeFileOps struct{ parent *fakeCollaborators }

func (f *fakeFileOps) Create(ctx context.Context, path string, content []byte) (ports.OpResult, error) {
	f.parent.record("create " + path)
	return ports.OpResult{Message: "file created: " + path}, nil
}

func (f *fakeFileOps) Read(ctx context.Context, path string) (ports.OpResult, error) {
	f.parent.record("read " + path)
	return ports.OpResult{Message: "file read: " + path, Data: map[string]any{"content": "aGk="}}, nil
}

func (f *fakeFileOps) Modify(ctx context.Context, path string, content []byte, mode domain.ModifyMode) (ports.OpResult, error) {
	f.parent.record(fmt.Sprintf("modify %s mode=%s content=%s", path, mode, content))
	return ports.OpResult{Message: "file modified: " + path}, nil
}

func (f *fakeFileOps) Delete(ctx context.Context, path string) (ports.OpResult, error) {
	f.parent.record("delete " + path)
	return ports.OpResult{Message: "file deleted: " + path}, nil
}

func (f *fakeFileOps) Search(ctx context.Context, term string, mode domain.SearchMode) (ports.OpResult, error) {
	f.parent.record(fmt.Sprintf("search mode=%s term=%s", mode, term))
	return ports.OpResult{Message: "search done"}, nil
}

type fakeGitOps struct {
	parent *fakeCollaborators
	fail   map[string]error
	panics map[string]bool
}

func (g *fakeGitOps) op(name string) (ports.OpResult, error) {
	if g.panics[name] {
		panic(name + " blew up")
	}
	g.parent.record(name)
	if err := g.fail[name]; err != nil {
		return ports.OpResult{}, err
	}
	return ports.OpResult{Message: name + " ok"}, nil
}

func (g *fakeGitOps) Pull(ctx context.Context) (ports.OpResult, error) { return g.op("pull") }
func (g *fakeGitOps) Push(ctx context.Context) (ports.OpResult, error) { return g.op("push") }
func (g *fakeGitOps) Commit(ctx context.Context, message string) (ports.OpResult, error) {
	g.parent.record("commit " + message)
	return ports.OpResult{Message: "committed", Data: map[string]any{"commit_hash": "abc1234"}}, nil
}

func (g *fakeGitOps) CreateBranch(ctx context.Context, name string) (ports.OpResult, error) {
	return g.op("create-branch " + name)
}

func (g *fakeGitOps) SwitchBranch(ctx context.Context, name string) (ports.OpResult, error) {
	return g.op("switch-branch " + name)
}
