package triage

import (
	"context"
	"errors"
	"sync"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/google/uuid"
)

var errUpstream = errors.New("upstream failed")

// fakeLLM replays scripted replies; after the script runs out it repeats the
// last entry.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	block   chan struct{} // when set, calls wait for it to close
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++

	var reply string
	var err error
	if len(f.replies) > 0 {
		reply = f.replies[min(i, len(f.replies)-1)]
	}
	if len(f.errs) > 0 {
		err = f.errs[min(i, len(f.errs)-1)]
	}
	return reply, err
}

func (f *fakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// panicLLM panics on every call.
type panicLLM struct{}

func (panicLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	panic("boom")
}

// mapCache is an unbounded ResultCache for tests.
type mapCache struct {
	mu   sync.Mutex
	data map[string]*domain.ClassificationResult
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]*domain.ClassificationResult)}
}

func (c *mapCache) Get(ctx context.Context, key string) (*domain.ClassificationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[key]
	return r, ok
}

func (c *mapCache) Set(ctx context.Context, key string, r *domain.ClassificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = r
	c.sets++
}

// memEmails is an in-memory EmailRepository.
type memEmails struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*domain.EmailRecord
	latest    *time.Time
	saveErr   error
	claimErr  error
	saved     map[int64]*domain.ClassificationResult
	claimed   []int64
	processed []*domain.EmailRecord
}

func newMemEmails() *memEmails {
	return &memEmails{
		rows:  make(map[int64]*domain.EmailRecord),
		saved: make(map[int64]*domain.ClassificationResult),
	}
}

func (m *memEmails) add(rec *domain.EmailRecord) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.rows[rec.ID] = rec
	return rec.ID
}

func (m *memEmails) UpsertNew(ctx context.Context, rec *domain.EmailRecord) (bool, int64, error) {
	m.mu.Lock()
	for _, r := range m.rows {
		if r.UserID == rec.UserID && r.ProviderID == rec.ProviderID {
			m.mu.Unlock()
			return false, r.ID, nil
		}
	}
	m.mu.Unlock()
	return true, m.add(rec), nil
}

func (m *memEmails) GetByID(ctx context.Context, id int64) (*domain.EmailRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (m *memEmails) ListUnprocessed(ctx context.Context, limit int) ([]*domain.EmailRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*domain.EmailRecord
	for id := int64(1); id <= m.nextID && len(list) < limit; id++ {
		if r, ok := m.rows[id]; ok && !r.Processed {
			list = append(list, r)
		}
	}
	return list, nil
}

func (m *memEmails) SaveResult(ctx context.Context, id int64, res *domain.ClassificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[id] = res
	return nil
}

func (m *memEmails) Claim(ctx context.Context, ids []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	var claimed []int64
	for _, id := range ids {
		if r, ok := m.rows[id]; ok && !r.Processed {
			r.Processed = true
			claimed = append(claimed, id)
		}
	}
	m.claimed = append(m.claimed, claimed...)
	return claimed, nil
}

func (m *memEmails) LatestReceivedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	return m.latest, nil
}

func (m *memEmails) ListProcessedByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.EmailRecord, error) {
	return m.processed, nil
}

// memAccounts is an in-memory AccountRepository.
type memAccounts struct {
	accounts []*domain.Account
}

func (m *memAccounts) ListWithRefreshToken(ctx context.Context) ([]*domain.Account, error) {
	var list []*domain.Account
	for _, a := range m.accounts {
		if a.RefreshToken != "" {
			list = append(list, a)
		}
	}
	return list, nil
}

func (m *memAccounts) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	for _, a := range m.accounts {
		if a.UserID == userID {
			return a, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memAccounts) Save(ctx context.Context, acct *domain.Account) error {
	for i, a := range m.accounts {
		if a.UserID == acct.UserID {
			m.accounts[i] = acct
			return nil
		}
	}
	m.accounts = append(m.accounts, acct)
	return nil
}

// recordingCalendar captures created events.
type recordingCalendar struct {
	mu     sync.Mutex
	events []*domain.CalendarEvent
	tokens []string
}

func (c *recordingCalendar) CreateEvent(ctx context.Context, refreshToken string, ev *domain.CalendarEvent) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	c.tokens = append(c.tokens, refreshToken)
	return "https://calendar.example/event", nil
}

// stubMail serves a fixed mailbox.
type stubMail struct {
	messages map[string]*out.ProviderMessage
	order    []string
	failIDs  map[string]bool
	since    time.Time
	max      int
}

func (s *stubMail) ListMessageIDs(ctx context.Context, refreshToken string, since time.Time, max int) ([]string, error) {
	s.since = since
	s.max = max
	return s.order, nil
}

func (s *stubMail) GetMessage(ctx context.Context, refreshToken, id string) (*out.ProviderMessage, error) {
	if s.failIDs[id] {
		return nil, errUpstream
	}
	return s.messages[id], nil
}

// recordingPublisher captures published jobs.
type recordingPublisher struct {
	ids []int64
}

func (p *recordingPublisher) PublishEmailProcess(ctx context.Context, emailID int64, userID uuid.UUID) error {
	p.ids = append(p.ids, emailID)
	return nil
}
