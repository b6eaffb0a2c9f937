package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/abhisek/coursewell/internal/llm"
)

const script = `Photosynthesis happens in the leaves. Leaves use light to make sugar.

Roots pull water and minerals from the soil.

[QUESTION: What do roots pull from the soil? OPTIONS: A) water B) light ANSWER: A]

Flowers attract bees with bright colors and nectar.

Stems carry water from the roots up to the leaves.`

func TestGetOrBuild_CachesPerLesson(t *testing.T) {
	emb := llm.NewMockEmbedder()
	ix := NewIndex(emb)
	ctx := context.Background()

	t1, err := ix.GetOrBuild(ctx, "lesson-1", script)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if t1.Len() != 5 {
		t.Fatalf("chunks = %d, want 5", t1.Len())
	}
	if emb.CallCount() != 1 || emb.Calls[0].Mode != llm.EmbedDocument || len(emb.Calls[0].Texts) != 5 {
		t.Fatalf("embed calls = %+v, want one document batch of 5", emb.Calls)
	}

	t2, err := ix.GetOrBuild(ctx, "lesson-1", "ignored on a hit")
	if err != nil {
		t.Fatalf("cached: %v", err)
	}
	if t2 != t1 || emb.CallCount() != 1 {
		t.Fatal("second lookup should hit the cache")
	}

	ix.Invalidate("lesson-1")
	if ix.Cached("lesson-1") {
		t.Fatal("Invalidate should drop the table")
	}
	t3, err := ix.GetOrBuild(ctx, "lesson-1", "Only one paragraph now.")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if t3.Len() != 1 || emb.CallCount() != 2 {
		t.Fatalf("rebuild chunks = %d, embed calls = %d", t3.Len(), emb.CallCount())
	}
}

func TestGetOrBuild_EmptyScriptNoOracle(t *testing.T) {
	emb := llm.NewMockEmbedder()
	ix := NewIndex(emb)

	tbl, err := ix.GetOrBuild(context.Background(), "empty", "\n\n   \n")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if tbl.Len() != 0 {
		t.Fatalf("chunks = %d, want 0", tbl.Len())
	}
	if emb.CallCount() != 0 {
		t.Fatal("empty script must not call the embedder")
	}
}

func TestGetOrBuild_FailureNotCached(t *testing.T) {
	emb := llm.NewMockEmbedder()
	emb.Err = errors.New("quota")
	ix := NewIndex(emb)

	if _, err := ix.GetOrBuild(context.Background(), "l", script); err == nil {
		t.Fatal("expected build error")
	}
	if ix.Cached("l") {
		t.Fatal("failed build must not be cached")
	}

	emb.Err = nil
	if _, err := ix.GetOrBuild(context.Background(), "l", script); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

// countingEmbedder blocks until released so concurrent callers pile up.
type countingEmbedder struct {
	*llm.MockEmbedder
	release chan struct{}
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string, mode llm.EmbedMode) ([][]float32, error) {
	<-c.release
	return c.MockEmbedder.Embed(ctx, texts, mode)
}

func TestGetOrBuild_ConcurrentFirstAccessSharesOneBuild(t *testing.T) {
	emb := &countingEmbedder{MockEmbedder: llm.NewMockEmbedder(), release: make(chan struct{})}
	ix := NewIndex(emb)

	const callers = 8
	var wg sync.WaitGroup
	tables := make([]*Table, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := ix.GetOrBuild(context.Background(), "shared", script)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			tables[i] = tbl
		}()
	}
	close(emb.release)
	wg.Wait()

	if emb.CallCount() != 1 {
		t.Fatalf("embed calls = %d, want 1", emb.CallCount())
	}
	// Late callers hit the cache, so every caller sees the same table.
	for i := 1; i < callers; i++ {
		if tables[i] != tables[0] {
			t.Fatalf("caller %d got a different table", i)
		}
	}
}

func TestAnswer_EmptyTableDeflects(t *testing.T) {
	mock := llm.NewMockProvider()
	emb := llm.NewMockEmbedder()
	a := NewAnswerer(mock, emb, DefaultConfig())

	if got := a.Answer(context.Background(), "What is a leaf?", &Table{}); got != Deflection {
		t.Fatalf("answer = %q, want deflection", got)
	}
	if got := a.Answer(context.Background(), "What is a leaf?", nil); got != Deflection {
		t.Fatalf("answer = %q, want deflection", got)
	}
	if mock.CallCount() != 0 || emb.CallCount() != 0 {
		t.Fatal("deflection must not call any oracle")
	}
}

func TestAnswer_UsesTopThreeInScoreOrder(t *testing.T) {
	emb := llm.NewMockEmbedder()
	tbl, err := NewIndex(emb).GetOrBuild(context.Background(), "l", script)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	mock := llm.NewMockProvider(llm.TextResponse("Roots pull water from the soil."))
	a := NewAnswerer(mock, emb, DefaultConfig())

	got := a.Answer(context.Background(), "What do roots pull from the soil?", tbl)
	if got != "Roots pull water from the soil." {
		t.Fatalf("answer = %q", got)
	}

	last := emb.Calls[len(emb.Calls)-1]
	if last.Mode != llm.EmbedQuery || len(last.Texts) != 1 {
		t.Fatalf("query embed call = %+v", last)
	}

	prompt := mock.Calls[0].Messages[0].Content
	ctxPart := prompt[:strings.Index(prompt, "Student's Question")]
	included := 0
	for _, c := range tbl.Chunks {
		if strings.Contains(ctxPart, c.Text) {
			included++
		}
	}
	if included != 3 {
		t.Fatalf("context chunks = %d, want 3\n%s", included, prompt)
	}
	if !strings.Contains(ctxPart, "Roots pull water and minerals") {
		t.Fatal("best matching paragraph missing from context")
	}
	if strings.Contains(ctxPart, "Flowers attract bees") {
		t.Fatal("unrelated paragraph should not be in the top three")
	}
}

func TestTopChunks_ScoreOrder(t *testing.T) {
	tbl := &Table{Chunks: []Chunk{
		{Text: "low", Vector: []float32{0.1, 0}},
		{Text: "best", Vector: []float32{0.9, 0.1}},
		{Text: "tie-a", Vector: []float32{0.5, 0}},
		{Text: "tie-b", Vector: []float32{0.5, 0}},
		{Text: "negative", Vector: []float32{-1, 0}},
	}}
	a := NewAnswerer(nil, nil, Config{})
	got := strings.Join(a.topChunks([]float32{1, 0}, tbl), ",")
	if got != "best,tie-a,tie-b" {
		t.Fatalf("top chunks = %s", got)
	}
}

func TestAnswer_OracleFailuresFallBack(t *testing.T) {
	tbl := &Table{Chunks: []Chunk{{Text: "Leaves are green.", Vector: []float32{1}}}}

	emb := llm.NewMockEmbedder()
	emb.Err = errors.New("down")
	a := NewAnswerer(llm.NewMockProvider(), emb, DefaultConfig())
	if got := a.Answer(context.Background(), "q", tbl); got != Fallback {
		t.Fatalf("embed failure answer = %q", got)
	}

	a = NewAnswerer(llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{}}), llm.NewMockEmbedder(), DefaultConfig())
	if got := a.Answer(context.Background(), "q", tbl); got != Fallback {
		t.Fatalf("generation failure answer = %q", got)
	}
}

func TestDot(t *testing.T) {
	if got := dot([]float32{1, 2, 3}, []float32{4, 5}); got != 14 {
		t.Fatalf("dot = %v, want 14", got)
	}
}
