package ranking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Entervio/entervio/internal/ai"
	"github.com/Entervio/entervio/internal/francetravail"
	"go.uber.org/zap"
)

type embedCall struct {
	taskType string
	texts    []string
}

type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   []embedCall
}

func (s *stubEmbedder) Embed(_ context.Context, taskType string, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, embedCall{taskType: taskType, texts: texts})
	if s.err != nil {
		return nil, s.err
	}

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, ok := s.vectors[text]
		if !ok {
			vec = []float32{0, 0}
		}
		out = append(out, vec)
	}
	return out, nil
}

func (s *stubEmbedder) documentCalls() []embedCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var calls []embedCall
	for _, call := range s.calls {
		if call.taskType == ai.TaskTypeDocument {
			calls = append(calls, call)
		}
	}
	return calls
}

func jobText(title, desc string) string {
	return fmt.Sprintf("Title: %s\nDescription: %s", title, desc)
}

func TestRankHybridScores(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"profile":                          {1, 0},
		"python developer":                 {0, 1},
		jobText("Query Match", "desc a"):   {0, 1},
		jobText("Profile Match", "desc b"): {1, 0},
	}}
	ranker := New(embedder, zap.NewNop())

	offers := &francetravail.Offers{Items: []*francetravail.Offer{
		{ID: "1", Intitule: "Profile Match", Description: "desc b"},
		{ID: "2", Intitule: "Query Match", Description: "desc a"},
	}}

	got := ranker.Rank(context.Background(), "profile", offers, "python developer")

	if got.Len() != 2 {
		t.Fatalf("expected 2 offers, got %d", got.Len())
	}

	// 0.7*100 + 0.3*0 = 70 beats 0.7*0 + 0.3*100 = 30.
	if got.Items[0].ID != "2" {
		t.Fatalf("expected query-aligned offer first, got %s", got.Items[0].ID)
	}
	if got.Items[0].RelevanceScore != 70 {
		t.Fatalf("expected score 70, got %d", got.Items[0].RelevanceScore)
	}
	if got.Items[0].RelevanceReasoning != "strong match • aligned with your search" {
		t.Fatalf("unexpected reasoning: %q", got.Items[0].RelevanceReasoning)
	}
	if got.Items[1].RelevanceScore != 30 {
		t.Fatalf("expected score 30, got %d", got.Items[1].RelevanceScore)
	}
	if got.Items[1].RelevanceReasoning != "limited relevance" {
		t.Fatalf("unexpected reasoning: %q", got.Items[1].RelevanceReasoning)
	}
}

func TestRankProfileOnlyScores(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"profile":                     {1, 0},
		jobText("Exact", "desc"):      {1, 0},
		jobText("Diagonal", "desc"):   {0.6, 0.8},
		jobText("Orthogonal", "desc"): {0, 1},
	}}
	ranker := New(embedder, zap.NewNop())

	offers := &francetravail.Offers{Items: []*francetravail.Offer{
		{ID: "ortho", Intitule: "Orthogonal", Description: "desc"},
		{ID: "exact", Intitule: "Exact", Description: "desc"},
		{ID: "diag", Intitule: "Diagonal", Description: "desc"},
	}}

	got := ranker.Rank(context.Background(), "profile", offers, "")

	wantOrder := []string{"exact", "diag", "ortho"}
	wantScores := []int{100, 60, 0}
	for i := range wantOrder {
		if got.Items[i].ID != wantOrder[i] {
			t.Fatalf("position %d: expected %s, got %s", i, wantOrder[i], got.Items[i].ID)
		}
		if got.Items[i].RelevanceScore != wantScores[i] {
			t.Fatalf("offer %s: expected score %d, got %d", got.Items[i].ID, wantScores[i], got.Items[i].RelevanceScore)
		}
	}

	if got.Items[0].RelevanceReasoning != "excellent match • aligned with your profile" {
		t.Fatalf("unexpected reasoning: %q", got.Items[0].RelevanceReasoning)
	}
	if got.Items[1].RelevanceReasoning != "moderate match • aligned with your profile" {
		t.Fatalf("unexpected reasoning: %q", got.Items[1].RelevanceReasoning)
	}
}

func TestRankClampsNegativeScores(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"profile":                   {1, 0},
		jobText("Opposite", "desc"): {-1, 0},
	}}
	ranker := New(embedder, zap.NewNop())

	offers := &francetravail.Offers{Items: []*francetravail.Offer{
		{ID: "1", Intitule: "Opposite", Description: "desc"},
	}}

	got := ranker.Rank(context.Background(), "profile", offers, "")

	if score := got.Items[0].RelevanceScore; score != 0 {
		t.Fatalf("expected clamped score 0, got %d", score)
	}
}

func TestRankKeepsThinOffersUnranked(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"profile":              {1, 0},
		jobText("Dev", "desc"): {1, 0},
	}}
	ranker := New(embedder, zap.NewNop())

	offers := &francetravail.Offers{Items: []*francetravail.Offer{
		{ID: "thin", Intitule: "", Description: "short"},
		{ID: "full", Intitule: "Dev", Description: "desc"},
	}}

	got := ranker.Rank(context.Background(), "profile", offers, "")

	if got.Len() != 2 {
		t.Fatalf("expected both offers kept, got %d", got.Len())
	}
	if got.Items[0].ID != "full" {
		t.Fatalf("expected ranked offer first, got %s", got.Items[0].ID)
	}
	last := got.Items[1]
	if last.ID != "thin" || last.RelevanceScore != 0 || last.RelevanceReasoning != "not ranked" {
		t.Fatalf("expected thin offer appended unranked, got %+v", last)
	}

	calls := embedder.documentCalls()
	if len(calls) != 1 || len(calls[0].texts) != 1 {
		t.Fatalf("expected a single document batch with 1 text, got %+v", calls)
	}
}

func TestRankCapsBatchSize(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"profile": {1, 0}}}
	ranker := New(embedder, zap.NewNop())

	offers := &francetravail.Offers{}
	for i := 0; i < maxBatchSize+5; i++ {
		offers.Items = append(offers.Items, &francetravail.Offer{
			ID:          fmt.Sprintf("%d", i),
			Intitule:    fmt.Sprintf("Job %d", i),
			Description: "a perfectly fine description",
		})
	}

	got := ranker.Rank(context.Background(), "profile", offers, "")

	if got.Len() != maxBatchSize+5 {
		t.Fatalf("expected all offers kept, got %d", got.Len())
	}

	calls := embedder.documentCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one document batch, got %d", len(calls))
	}
	if len(calls[0].texts) != maxBatchSize {
		t.Fatalf("expected batch capped at %d, got %d", maxBatchSize, len(calls[0].texts))
	}

	for _, offer := range got.Items[got.Len()-5:] {
		if offer.RelevanceReasoning != "not ranked" {
			t.Fatalf("expected overflow offer unranked, got %+v", offer)
		}
	}
}

func TestRankTruncatesLongInputs(t *testing.T) {
	longDesc := strings.Repeat("d", maxDescriptionRunes+500)
	truncated := longDesc[:maxDescriptionRunes]

	embedder := &stubEmbedder{vectors: map[string][]float32{
		jobText("Dev", truncated): {1, 0},
	}}
	ranker := New(embedder, zap.NewNop())

	offers := &francetravail.Offers{Items: []*francetravail.Offer{
		{ID: "1", Intitule: "Dev", Description: longDesc},
	}}

	longProfile := strings.Repeat("p", maxProfileRunes+100)
	ranker.Rank(context.Background(), longProfile, offers, "")

	embedder.mu.Lock()
	defer embedder.mu.Unlock()

	var sawProfile, sawDoc bool
	for _, call := range embedder.calls {
		switch call.taskType {
		case ai.TaskTypeQuery:
			sawProfile = true
			if got := len([]rune(call.texts[0])); got != maxProfileRunes {
				t.Fatalf("expected profile truncated to %d runes, got %d", maxProfileRunes, got)
			}
		case ai.TaskTypeDocument:
			sawDoc = true
			if call.texts[0] != jobText("Dev", truncated) {
				t.Fatalf("expected truncated description in document text")
			}
		}
	}
	if !sawProfile || !sawDoc {
		t.Fatalf("expected both profile and document embeds, got %+v", embedder.calls)
	}
}

func TestRankEmbedderFailureReturnsUnchanged(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("quota exceeded")}
	ranker := New(embedder, zap.NewNop())

	offers := &francetravail.Offers{Items: []*francetravail.Offer{
		{ID: "1", Intitule: "A", Description: "first description"},
		{ID: "2", Intitule: "B", Description: "second description"},
	}}

	got := ranker.Rank(context.Background(), "profile", offers, "query")

	if got.Len() != 2 || got.Items[0].ID != "1" || got.Items[1].ID != "2" {
		t.Fatalf("expected input order preserved, got %+v", got.IDs())
	}
	for _, offer := range got.Items {
		if offer.RelevanceReasoning != "" {
			t.Fatalf("expected no annotations on failure, got %+v", offer)
		}
	}
}

func TestRankWithoutEmbedderOrOffers(t *testing.T) {
	ranker := New(nil, zap.NewNop())

	offers := &francetravail.Offers{Items: []*francetravail.Offer{{ID: "1", Intitule: "A"}}}
	if got := ranker.Rank(context.Background(), "profile", offers, ""); got != offers {
		t.Fatalf("expected offers returned unchanged without embedder")
	}

	ranker = New(&stubEmbedder{}, zap.NewNop())
	empty := &francetravail.Offers{}
	if got := ranker.Rank(context.Background(), "profile", empty, ""); got != empty {
		t.Fatalf("expected empty offers returned unchanged")
	}
}

func TestRankDeterministicAndStable(t *testing.T) {
	vectors := map[string][]float32{
		"profile":                 {1, 0},
		jobText("Twin A", "desc"): {0.6, 0.8},
		jobText("Twin B", "desc"): {0.6, 0.8},
		jobText("Best", "desc"):   {1, 0},
	}

	run := func() []string {
		embedder := &stubEmbedder{vectors: vectors}
		ranker := New(embedder, zap.NewNop())
		offers := &francetravail.Offers{Items: []*francetravail.Offer{
			{ID: "twin-a", Intitule: "Twin A", Description: "desc"},
			{ID: "twin-b", Intitule: "Twin B", Description: "desc"},
			{ID: "best", Intitule: "Best", Description: "desc"},
		}}
		return ranker.Rank(context.Background(), "profile", offers, "").IDs()
	}

	first := run()
	second := run()

	want := []string{"best", "twin-a", "twin-b"}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, first)
		}
		if second[i] != first[i] {
			t.Fatalf("expected deterministic order, got %v then %v", first, second)
		}
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   []float32
		expect float64
	}{
		{name: "identical", a: []float32{1, 2}, b: []float32{1, 2}, expect: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, expect: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, expect: -1},
		{name: "zero norm", a: []float32{0, 0}, b: []float32{1, 0}, expect: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, expect: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cosine(tt.a, tt.b)
			if diff := got - tt.expect; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}
