package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/bnema/gh-commands-gateway/internal/domain"
	"github.com/bnema/gh-commands-gateway/internal/ports"
)

// Registry is the concurrency-safe session directory keyed by tenant.
// It is the only structure touched by multiple concurrent callers; each
// session's own exclusion protects everything it owns.
type Registry struct {
	flow        *DeviceFlow
	collab      ports.Collaborators
	clock       ports.Clock
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[domain.TenantKey]*sessionEntry
	byID     map[string]domain.TenantKey
}

type sessionEntry struct {
	// mu guards the session's fields, including during a device-flow
	// network call. Never held while waiting on batch.
	mu      sync.Mutex
	session *domain.Session

	// batch serializes working-copy use: batches, first-use binding and
	// eviction queue behind one another per tenant key.
	batch chan struct{}

	cancelPoll context.CancelFunc
}

func newSessionEntry(session *domain.Session) *sessionEntry {
	return &sessionEntry{session: session, batch: make(chan struct{}, 1)}
}

func (e *sessionEntry) acquireBatch(ctx context.Context) error {
	select {
	case e.batch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight batch: %w", domain.ErrConcurrentBatchRejected)
	}
}

func (e *sessionEntry) releaseBatch() { <-e.batch }

type RegistryConfig struct {
	// IdleTimeout evicts authenticated sessions with no batch activity
	// for this long. Zero disables idle eviction.
	IdleTimeout time.Duration
}

func NewRegistry(flow *DeviceFlow, collab ports.Collaborators, clock ports.Clock, cfg RegistryConfig) *Registry {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Registry{
		flow:        flow,
		collab:      collab,
		clock:       clock,
		idleTimeout: cfg.IdleTimeout,
		sessions:    map[domain.TenantKey]*sessionEntry{},
		byID:        map[string]domain.TenantKey{},
	}
}

// GetOrCreate returns the tenant's session, starting a device flow for a
// new one. Repeated calls while PENDING return the same codes and
// session identity. A terminal (denied or expired) session is restarted
// in place with fresh codes.
func (r *Registry) GetOrCreate(ctx context.Context, key domain.TenantKey) (SessionView, error) {
	r.mu.Lock()
	entry, ok := r.sessions[key]
	if !ok {
		entry = newSessionEntry(&domain.Session{
			ID:           uuid.NewString(),
			Tenant:       key,
			LastActivity: r.clock.Now(),
		})
		r.sessions[key] = entry
		r.byID[entry.session.ID] = key
	}
	r.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := entry.session
	if session.Stage == domain.StagePending || session.Stage == domain.StageAuthenticated {
		session.LastActivity = r.clock.Now()
		return viewOf(session), nil
	}

	// Fresh session, or restart after a terminal stage.
	if err := r.flow.Start(ctx, session); err != nil {
		return SessionView{}, err
	}
	session.LastActivity = r.clock.Now()
	r.startPolling(ctx, entry)

	pslog.Ctx(ctx).Info("device flow started",
		"session", session.ID, "tenant", key.String(), "expires_at", session.ExpiresAt)
	return viewOf(session), nil
}

// startPolling drives the authorization poll loop in the background so
// callers can track progress through Status instead of holding a
// connection open. Detached from the request context; stopped by
// eviction or a terminal stage. Caller holds entry.mu.
func (r *Registry) startPolling(ctx context.Context, entry *sessionEntry) {
	if entry.cancelPoll != nil {
		entry.cancelPoll()
	}
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	entry.cancelPoll = cancel
	go r.pollUntilSettled(pollCtx, entry)
}

func (r *Registry) pollUntilSettled(ctx context.Context, entry *sessionEntry) {
	entry.mu.Lock()
	log := pslog.Ctx(ctx).With("session", entry.session.ID).With("tenant", entry.session.Tenant.String())
	entry.mu.Unlock()

	for {
		entry.mu.Lock()
		interval := entry.session.PollInterval
		stage := entry.session.Stage
		entry.mu.Unlock()

		if stage != domain.StagePending {
			return
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		entry.mu.Lock()
		err := r.flow.PollOnce(ctx, entry.session)
		stage = entry.session.Stage
		user := entry.session.User
		entry.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("device poll attempt failed", "err", err)
			continue
		}

		switch stage {
		case domain.StageAuthenticated:
			log.Info("session authenticated", "user", user.Login)
			return
		case domain.StageDenied, domain.StageExpired:
			log.Info("device flow ended", "stage", stage)
			return
		}
	}
}

// Status reports the session's stage and public fields.
func (r *Registry) Status(ctx context.Context, key domain.TenantKey) (SessionView, error) {
	entry, err := r.lookup(key)
	if err != nil {
		return SessionView{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return viewOf(entry.session), nil
}

// StatusByID resolves a session by its public identifier.
func (r *Registry) StatusByID(ctx context.Context, sessionID string) (SessionView, error) {
	r.mu.Lock()
	key, ok := r.byID[sessionID]
	r.mu.Unlock()
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	return r.Status(ctx, key)
}

// Credential returns the session's bearer credential for standalone
// persistence. Only an authenticated session has one to give out.
func (r *Registry) Credential(ctx context.Context, key domain.TenantKey) (domain.Credential, error) {
	entry, err := r.lookup(key)
	if err != nil {
		return domain.Credential{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.Stage != domain.StageAuthenticated {
		return domain.Credential{}, fmt.Errorf("session stage %q: %w", entry.session.Stage, domain.ErrNotAuthenticated)
	}
	return entry.session.Credential, nil
}

// BindRepository attaches an existing working copy to an authenticated
// session. Batches bind lazily through AcquireBatch instead; this is the
// explicit path for clients that manage their own checkout.
func (r *Registry) BindRepository(ctx context.Context, key domain.TenantKey, repo domain.RepositoryInfo, workingCopyPath string) error {
	entry, err := r.lookup(key)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.Stage != domain.StageAuthenticated {
		return fmt.Errorf("bind repository in stage %q: %w", entry.session.Stage, domain.ErrNotAuthenticated)
	}
	entry.session.Repository = repo
	entry.session.WorkingCopyPath = workingCopyPath
	entry.session.LastActivity = r.clock.Now()
	return nil
}

// Restore seeds an authenticated session from persisted standalone
// state, bypassing the device flow.
func (r *Registry) Restore(ctx context.Context, state domain.SessionState, token string) error {
	if token == "" {
		return fmt.Errorf("restore session: %w", domain.ErrNotAuthenticated)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[state.Tenant]; exists {
		return nil
	}

	session := &domain.Session{
		ID:           uuid.NewString(),
		Tenant:       state.Tenant,
		Stage:        domain.StageAuthenticated,
		Credential:   domain.Credential{Token: token, ObtainedAt: state.ObtainedAt},
		User:         state.User,
		Repository:   state.Repository,
		LastActivity: r.clock.Now(),
	}
	entry := newSessionEntry(session)
	r.sessions[state.Tenant] = entry
	r.byID[session.ID] = state.Tenant
	return nil
}

// AcquireBatch takes the tenant's batch exclusion and hands out the
// session's bound collaborators. A second acquire on the same key queues
// behind the first; it fails with ConcurrentBatchRejected only if the
// caller's context ends while waiting. On first use of an authenticated
// session the repository is cloned and bound here, under the batch
// exclusion rather than any registry-wide lock.
func (r *Registry) AcquireBatch(ctx context.Context, key domain.TenantKey) (*BatchLease, error) {
	entry, err := r.lookup(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotInitialized, err)
	}

	if err := entry.acquireBatch(ctx); err != nil {
		return nil, err
	}

	entry.mu.Lock()
	session := entry.session
	if session.Stage != domain.StageAuthenticated {
		stage := session.Stage
		entry.mu.Unlock()
		entry.releaseBatch()
		return nil, fmt.Errorf("session stage %q: %w", stage, domain.ErrNotInitialized)
	}
	credential := session.Credential
	user := session.User
	repo := session.Repository
	workingCopy := session.WorkingCopyPath
	entry.mu.Unlock()

	if workingCopy == "" {
		if repo.FullName == "" {
			repo = domain.RepositoryInfo{
				Owner:    key.RepoOwner,
				Name:     key.RepoName,
				FullName: key.RepoFullName(),
			}
		}
		workingCopy, err = r.collab.CloneRepository(ctx, repo, credential, user)
		if err != nil {
			entry.releaseBatch()
			return nil, fmt.Errorf("clone %s: %w", repo.FullName, err)
		}
		entry.mu.Lock()
		session.Repository = repo
		session.WorkingCopyPath = workingCopy
		entry.mu.Unlock()
		pslog.Ctx(ctx).Info("working copy bound",
			"session", session.ID, "repo", repo.FullName, "path", workingCopy)
	}

	return &BatchLease{
		registry:    r,
		entry:       entry,
		Repository:  repo,
		WorkingCopy: workingCopy,
		FileOps:     r.collab.FileOps(workingCopy),
		GitOps:      r.collab.GitOps(workingCopy, credential, repo),
	}, nil
}

// Evict removes the session and releases its working copy. Idempotent;
// waits for any in-flight batch to finish first. The entry stays
// registered until the batch lock is held, so a caller whose context
// ends while queued can retry and the checkout is still released.
func (r *Registry) Evict(ctx context.Context, key domain.TenantKey) error {
	r.mu.Lock()
	entry, ok := r.sessions[key]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	// Stop polling before queueing behind the batch; a pending session
	// must not keep hitting the provider while eviction waits.
	entry.mu.Lock()
	if entry.cancelPoll != nil {
		entry.cancelPoll()
		entry.cancelPoll = nil
	}
	entry.mu.Unlock()

	if err := entry.acquireBatch(ctx); err != nil {
		return err
	}
	defer entry.releaseBatch()

	r.mu.Lock()
	if r.sessions[key] == entry {
		delete(r.sessions, key)
		delete(r.byID, entry.session.ID)
	}
	r.mu.Unlock()

	entry.mu.Lock()
	workingCopy := entry.session.WorkingCopyPath
	entry.session.WorkingCopyPath = ""
	sessionID := entry.session.ID
	entry.mu.Unlock()

	if workingCopy != "" {
		if err := r.collab.ReleaseWorkingCopy(workingCopy); err != nil {
			return fmt.Errorf("release working copy: %w", err)
		}
	}
	pslog.Ctx(ctx).Info("session evicted", "session", sessionID, "tenant", key.String())
	return nil
}

// Sweep evicts sessions past their authorization deadline with no
// credential, and authenticated sessions idle beyond the configured
// threshold.
func (r *Registry) Sweep(ctx context.Context, now time.Time) {
	r.mu.Lock()
	entries := make(map[domain.TenantKey]*sessionEntry, len(r.sessions))
	for key, entry := range r.sessions {
		entries[key] = entry
	}
	r.mu.Unlock()

	for key, entry := range entries {
		entry.mu.Lock()
		session := entry.session
		unauthExpired := session.Credential.Empty() && !session.ExpiresAt.IsZero() && now.After(session.ExpiresAt)
		idle := !session.Credential.Empty() && r.idleTimeout > 0 && now.Sub(session.LastActivity) > r.idleTimeout
		entry.mu.Unlock()

		if unauthExpired || idle {
			if err := r.Evict(ctx, key); err != nil {
				pslog.Ctx(ctx).Warn("sweep eviction failed", "tenant", key.String(), "err", err)
			}
		}
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close evicts every session, releasing all working copies.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	keys := make([]domain.TenantKey, 0, len(r.sessions))
	for key := range r.sessions {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	for _, key := range keys {
		if err := r.Evict(ctx, key); err != nil {
			pslog.Ctx(ctx).Warn("eviction on close failed", "tenant", key.String(), "err", err)
		}
	}
}

func (r *Registry) lookup(key domain.TenantKey) (*sessionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return entry, nil
}

// BatchLease is one batch's exclusive hold on a session's working copy
// and collaborators. Release exactly once.
type BatchLease struct {
	registry    *Registry
	entry       *sessionEntry
	releaseOnce sync.Once

	Repository  domain.RepositoryInfo
	WorkingCopy string
	FileOps     ports.FileOps
	GitOps      ports.GitOps
}

func (l *BatchLease) Release() {
	l.releaseOnce.Do(func() {
		l.entry.mu.Lock()
		l.entry.session.LastActivity = l.registry.clock.Now()
		l.entry.mu.Unlock()
		l.entry.releaseBatch()
	})
}
