package triage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/pkg/logger"
	"triage_server/pkg/ratelimit"
)

const okReply = `{"summary":"Status update from the team.","priority":"medium","action":null,"dueDate":null}`

func newTestGovernor(llm *fakeLLM, cache *mapCache, interval time.Duration) *Governor {
	c := newTestClassifier(llm)
	limiter := ratelimit.NewIntervalLimiter(&ratelimit.IntervalConfig{Interval: interval, Concurrency: 1})
	if cache == nil {
		return NewGovernor(c, limiter, nil, nil, logger.Nop())
	}
	return NewGovernor(c, limiter, cache, nil, logger.Nop())
}

func humanMessage(i int) *domain.InboundMessage {
	return &domain.InboundMessage{
		ID:      fmt.Sprintf("msg-%d", i),
		Subject: fmt.Sprintf("Project update %d", i),
		Body:    "Here is where things stand this week.",
		Sender:  "lead@company.com",
	}
}

func TestProcessBatchPreservesOrder(t *testing.T) {
	g := newTestGovernor(&fakeLLM{replies: []string{okReply}}, newMapCache(), time.Millisecond)

	msgs := []*domain.InboundMessage{
		humanMessage(1),
		{ID: "otp", Subject: "Your OTP is 1234", Body: "Valid for 5 minutes", Sender: "noreply@bank.com"},
		humanMessage(2),
	}

	var progress []int
	results := g.ProcessBatch(context.Background(), msgs, func(done, total int) {
		if total != len(msgs) {
			t.Errorf("unexpected total %d", total)
		}
		progress = append(progress, done)
	})

	if len(results) != len(msgs) {
		t.Fatalf("expected %d results, got %d", len(msgs), len(results))
	}
	for i, res := range results {
		if res.Subject != msgs[i].Subject {
			t.Errorf("result %d subject = %q, want %q", i, res.Subject, msgs[i].Subject)
		}
	}
	if results[1].Priority != domain.PriorityLow {
		t.Errorf("expected otp to be low, got %s", results[1].Priority)
	}
	if fmt.Sprint(progress) != "[1 2 3]" {
		t.Errorf("unexpected progress sequence %v", progress)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	g := newTestGovernor(&fakeLLM{replies: []string{okReply}}, nil, time.Millisecond)
	called := false
	results := g.ProcessBatch(context.Background(), nil, func(done, total int) { called = true })
	if len(results) != 0 || called {
		t.Errorf("expected no results and no progress, got %d %v", len(results), called)
	}
}

func TestGovernorCachesResults(t *testing.T) {
	llm := &fakeLLM{replies: []string{okReply}}
	cache := newMapCache()
	g := newTestGovernor(llm, cache, time.Millisecond)
	msg := humanMessage(1)

	first := g.Classify(context.Background(), msg)
	second := g.Classify(context.Background(), msg)

	if llm.Calls() != 1 {
		t.Errorf("expected 1 completion call, got %d", llm.Calls())
	}
	if first != second {
		t.Error("expected the cached result to be returned")
	}

	// same id, different subject is a different key
	other := *msg
	other.Subject = "Project update (revised)"
	g.Classify(context.Background(), &other)
	if llm.Calls() != 2 {
		t.Errorf("expected a second completion call for a new subject, got %d", llm.Calls())
	}
}

func TestGovernorKeysOnBody(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`{"summary":"Invoice is attached.","priority":"medium","action":null,"dueDate":null}`,
		`{"summary":"Contract needs a signature.","priority":"high","action":"Sign the contract","dueDate":null}`,
	}}
	g := newTestGovernor(llm, newMapCache(), time.Millisecond)

	a := &domain.InboundMessage{Subject: "Hello", Sender: "ops@vendor.com", Body: "Invoice attached for March."}
	b := &domain.InboundMessage{Subject: "Hello", Sender: "ops@vendor.com", Body: "Please sign the attached contract."}

	ra := g.Classify(context.Background(), a)
	rb := g.Classify(context.Background(), b)

	if llm.Calls() != 2 {
		t.Fatalf("expected 2 completion calls, got %d", llm.Calls())
	}
	if ra.Summary == rb.Summary {
		t.Errorf("second message reused the first result: %q", rb.Summary)
	}
}

func TestGovernorDoesNotCacheFallback(t *testing.T) {
	llm := &fakeLLM{errs: []error{errUpstream}}
	cache := newMapCache()
	g := newTestGovernor(llm, cache, time.Millisecond)
	msg := humanMessage(1)

	g.Classify(context.Background(), msg)
	g.Classify(context.Background(), msg)

	if cache.sets != 0 {
		t.Errorf("fallback results must not be cached, got %d sets", cache.sets)
	}
	if llm.Calls() != 2 {
		t.Errorf("expected retry on next call, got %d calls", llm.Calls())
	}
}

func TestGovernorSharesInFlightWork(t *testing.T) {
	llm := &fakeLLM{replies: []string{okReply}, block: make(chan struct{})}
	g := newTestGovernor(llm, newMapCache(), time.Millisecond)
	msg := humanMessage(1)

	var wg sync.WaitGroup
	results := make([]*domain.ClassificationResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.Classify(context.Background(), msg)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(llm.block)
	wg.Wait()

	if llm.Calls() != 1 {
		t.Errorf("expected one completion call, got %d", llm.Calls())
	}
	for i, r := range results {
		if r == nil || r.Source != domain.SourceAI {
			t.Errorf("result %d unexpected: %+v", i, r)
		}
	}
}

func TestGovernorSpacesCompletionCalls(t *testing.T) {
	g := newTestGovernor(&fakeLLM{replies: []string{okReply}}, newMapCache(), 40*time.Millisecond)

	start := time.Now()
	g.ProcessBatch(context.Background(), []*domain.InboundMessage{humanMessage(1), humanMessage(2), humanMessage(3)}, nil)

	if elapsed := time.Since(start); elapsed < 75*time.Millisecond {
		t.Errorf("expected calls spaced by the interval, batch took %v", elapsed)
	}
}

func TestGovernorCancelledAdmissionFallsBack(t *testing.T) {
	llm := &fakeLLM{replies: []string{okReply}}
	g := newTestGovernor(llm, newMapCache(), time.Hour)

	g.Classify(context.Background(), humanMessage(1)) // consumes the only token

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := g.Classify(ctx, humanMessage(2))

	if res.Source != domain.SourceFallback {
		t.Errorf("expected fallback, got %s", res.Source)
	}
	if llm.Calls() != 1 {
		t.Errorf("cancelled admission must not call the endpoint, got %d calls", llm.Calls())
	}
}

// panicCache panics when asked for one key.
type panicCache struct {
	*mapCache
	key string
}

func (c *panicCache) Get(ctx context.Context, key string) (*domain.ClassificationResult, bool) {
	if key == c.key {
		panic("corrupt entry")
	}
	return c.mapCache.Get(ctx, key)
}

func TestProcessBatchIsolatesPanics(t *testing.T) {
	bad := humanMessage(2)
	cache := &panicCache{mapCache: newMapCache(), key: bad.CacheKey()}
	c := newTestClassifier(&fakeLLM{replies: []string{okReply}})
	limiter := ratelimit.NewIntervalLimiter(&ratelimit.IntervalConfig{Interval: time.Millisecond, Concurrency: 1})
	g := NewGovernor(c, limiter, cache, nil, logger.Nop())

	results := g.ProcessBatch(context.Background(), []*domain.InboundMessage{humanMessage(1), bad, humanMessage(3)}, nil)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].Source != domain.SourceFallback {
		t.Errorf("panicking item should fall back, got %s", results[1].Source)
	}
	if results[0].Source != domain.SourceAI || results[2].Source != domain.SourceAI {
		t.Errorf("other items should be unaffected: %s %s", results[0].Source, results[2].Source)
	}
}

func TestGovernorIsMeetingEmail(t *testing.T) {
	g := newTestGovernor(&fakeLLM{}, nil, time.Millisecond)
	if !g.IsMeetingEmail("Zoom call at 4", "") {
		t.Error("expected meeting")
	}
}
