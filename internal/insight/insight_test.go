package insight

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adam5647/BaselineAnalysis/internal/llm"
	"github.com/Adam5647/BaselineAnalysis/internal/llm/prompts"
	"github.com/Adam5647/BaselineAnalysis/internal/model"
)

type fakeGenerator struct {
	calls   atomic.Int32
	text    string
	err     error
	prompts chan string
	block   chan struct{}
	ctxErrs chan error
}

func (g *fakeGenerator) Model() string { return "test-model" }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	if g.prompts != nil {
		g.prompts <- prompt
	}
	if g.block != nil {
		<-g.block
	}
	if g.ctxErrs != nil {
		g.ctxErrs <- ctx.Err()
	}
	return g.text, g.err
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]string)
	}
	c.data[key] = value
	return nil
}

type memHistory struct {
	mu       sync.Mutex
	insights []model.Insight
}

func (h *memHistory) InsertInsight(in model.Insight) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.insights = append(h.insights, in)
	return int64(len(h.insights)), nil
}

func records() []model.ResponseRecord {
	return []model.ResponseRecord{
		{District: "Pune", Name: "Asha", Question: "K1", Response: "A", Remark: "correct"},
		{District: "Pune", Name: "Asha", Question: "O1", Response: "Often", Remark: ""},
		{District: "Pune", Name: "Ravi", Question: "K1", Response: "B", Remark: "incorrect"},
		{District: "Pune", Name: "Ravi", Question: "O1", Response: "Often", Remark: ""},
		{District: "Nagpur", Name: "Meena", Question: "K1", Response: "A", Remark: "correct"},
	}
}

func newService(t *testing.T, gen llm.Generator, cache Cache, history History) *Service {
	t.Helper()
	tmpl, err := prompts.Default()
	if err != nil {
		t.Fatalf("prompts.Default: %v", err)
	}
	return New(gen, tmpl, &prompts.Builder{}, cache, history)
}

func TestParticipantPreview(t *testing.T) {
	s := newService(t, &fakeGenerator{}, nil, nil)

	p, err := s.ParticipantPreview(records(), "Pune - Asha")
	if err != nil {
		t.Fatalf("ParticipantPreview: %v", err)
	}
	if p.Block != "Q: K1\nA: A\nQ: O1\nA: Often" {
		t.Errorf("unexpected block %q", p.Block)
	}
	if !strings.Contains(p.Prompt, p.Block) || !strings.Contains(p.Prompt, "Pune - Asha") {
		t.Errorf("prompt should embed block and participant:\n%s", p.Prompt)
	}

	_, err = s.ParticipantPreview(records(), "Pune - Nobody")
	if !errors.Is(err, model.ErrParticipantNotFound) {
		t.Errorf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestDistrictPreview(t *testing.T) {
	s := newService(t, &fakeGenerator{}, nil, nil)

	p, err := s.DistrictPreview(records(), "Pune")
	if err != nil {
		t.Fatalf("DistrictPreview: %v", err)
	}
	for _, want := range []string{
		"District Name: Pune",
		"Number of Knowledge-Based Responses: 2",
		"Correct Answers: 1 (50.00%)",
		"Q: O1\n- Often (2, 100.00%)",
	} {
		if !strings.Contains(p.Block, want) {
			t.Errorf("block missing %q:\n%s", want, p.Block)
		}
	}

	_, err = s.DistrictPreview(records(), "Mumbai")
	if !errors.Is(err, model.ErrDistrictNotFound) {
		t.Errorf("expected ErrDistrictNotFound, got %v", err)
	}
}

func TestGenerateCachesAndRecords(t *testing.T) {
	gen := &fakeGenerator{text: "- engaged"}
	cache := &memCache{}
	history := &memHistory{}
	s := newService(t, gen, cache, history)
	ctx := context.Background()

	first, err := s.Participant(ctx, records(), "Pune - Asha")
	if err != nil {
		t.Fatalf("Participant: %v", err)
	}
	if first.Response != "- engaged" || first.Cached || first.ID != 1 {
		t.Errorf("unexpected first insight %+v", first)
	}
	if first.Model != "test-model" || first.PromptHash != PromptHash("test-model", first.Prompt) {
		t.Errorf("unexpected model/hash on %+v", first)
	}

	second, err := s.Participant(ctx, records(), "Pune - Asha")
	if err != nil {
		t.Fatalf("Participant: %v", err)
	}
	if !second.Cached || second.Response != "- engaged" {
		t.Errorf("expected cached insight, got %+v", second)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}
	if len(history.insights) != 1 {
		t.Errorf("history has %d entries, want 1", len(history.insights))
	}
}

func TestGenerateFailureNotCached(t *testing.T) {
	svcErr := &llm.ServiceError{StatusCode: 500, Body: "boom"}
	gen := &fakeGenerator{err: svcErr}
	cache := &memCache{}
	history := &memHistory{}
	s := newService(t, gen, cache, history)

	_, err := s.District(context.Background(), records(), "Pune")
	if !errors.Is(err, svcErr) {
		t.Fatalf("expected generator error unchanged, got %v", err)
	}
	if len(cache.data) != 0 || len(history.insights) != 0 {
		t.Error("failures must not be cached or recorded")
	}

	gen.err = nil
	gen.text = "ok"
	in, err := s.District(context.Background(), records(), "Pune")
	if err != nil {
		t.Fatalf("District retry: %v", err)
	}
	if in.Cached || gen.calls.Load() != 2 {
		t.Errorf("expected a fresh call after failure, got cached=%v calls=%d", in.Cached, gen.calls.Load())
	}
}

func TestGenerateCacheErrorFallsThrough(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	s := newService(t, gen, &memCache{err: errors.New("redis down")}, nil)

	in, err := s.Participant(context.Background(), records(), "Nagpur - Meena")
	if err != nil {
		t.Fatalf("Participant: %v", err)
	}
	if in.Response != "ok" || in.ID != 0 {
		t.Errorf("unexpected insight %+v", in)
	}
}

func TestGenerateSharesConcurrentCalls(t *testing.T) {
	gen := &fakeGenerator{text: "shared", prompts: make(chan string, 1), block: make(chan struct{})}
	s := newService(t, gen, nil, nil)

	var wg sync.WaitGroup
	results := make([]*model.Insight, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = s.Participant(context.Background(), records(), "Pune - Ravi")
	}()
	<-gen.prompts

	// A second caller for the same prompt while the first is in flight.
	done := make(chan struct{})
	go func() {
		defer close(done)
		results[1], errs[1] = s.Participant(context.Background(), records(), "Pune - Ravi")
	}()

	close(gen.block)
	wg.Wait()
	<-done

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if results[i].Response != "shared" {
			t.Errorf("call %d response = %q", i, results[i].Response)
		}
	}
	if results[0] == results[1] {
		t.Error("callers should receive independent copies")
	}
}

func TestGenerateOutlivesCanceledCaller(t *testing.T) {
	gen := &fakeGenerator{
		text:    "late",
		prompts: make(chan string, 1),
		block:   make(chan struct{}),
		ctxErrs: make(chan error, 1),
	}
	cache := &memCache{}
	history := &memHistory{}
	s := newService(t, gen, cache, history)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := s.Participant(ctx, records(), "Pune - Ravi")
		errc <- err
	}()
	<-gen.prompts

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("canceled caller err = %v, want context.Canceled", err)
	}

	close(gen.block)
	if err := <-gen.ctxErrs; err != nil {
		t.Errorf("generator saw canceled context: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		history.mu.Lock()
		n := len(history.insights)
		history.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abandoned generation was never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The finished request is served from the cache to the next caller.
	in, err := s.Participant(context.Background(), records(), "Pune - Ravi")
	if err != nil {
		t.Fatalf("Participant: %v", err)
	}
	if in.Response != "late" {
		t.Errorf("response = %q", in.Response)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("generator called %d times, want 1", n)
	}
}

func TestPromptHash(t *testing.T) {
	a := PromptHash("m1", "prompt")
	if a != PromptHash("m1", "prompt") {
		t.Error("hash is not deterministic")
	}
	if a == PromptHash("m2", "prompt") {
		t.Error("model must be part of the key")
	}
	if PromptHash("m", "1prompt") == PromptHash("m1", "prompt") {
		t.Error("model and prompt boundaries must not collide")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %d chars", len(a))
	}
}
