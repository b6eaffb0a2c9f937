// Package retrieval answers learner questions from a single lesson's
// script. Paragraph embeddings are built once per lesson and cached until
// the lesson's content changes.
package retrieval

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/llm"
	"github.com/abhisek/coursewell/internal/metrics"
)

// Chunk is one paragraph of a script and its document embedding.
type Chunk struct {
	Text   string
	Vector []float32
}

// Table holds a lesson's chunks in script order. An empty table is valid
// and means there is nothing to answer from.
type Table struct {
	Chunks []Chunk
}

// Len returns the number of chunks.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Chunks)
}

// Index caches one Table per lesson id. Reads are concurrent; the first
// build of a lesson is shared by every caller asking for it at the same
// time.
type Index struct {
	embedder llm.Embedder

	mu     sync.RWMutex
	tables map[string]*Table
	gen    map[string]uint64
	group  singleflight.Group
}

// NewIndex creates an empty Index.
func NewIndex(embedder llm.Embedder) *Index {
	return &Index{
		embedder: embedder,
		tables:   make(map[string]*Table),
		gen:      make(map[string]uint64),
	}
}

// GetOrBuild returns the cached table for lessonID, building it from
// rawScript on a miss. Build failures are returned and not cached.
func (ix *Index) GetOrBuild(ctx context.Context, lessonID, rawScript string) (*Table, error) {
	if t, ok := ix.lookup(lessonID); ok {
		metrics.RetrievalCache.WithLabelValues("hit").Inc()
		return t, nil
	}
	metrics.RetrievalCache.WithLabelValues("miss").Inc()

	v, err, _ := ix.group.Do(lessonID, func() (any, error) {
		if t, ok := ix.lookup(lessonID); ok {
			return t, nil
		}

		ix.mu.RLock()
		startGen := ix.gen[lessonID]
		ix.mu.RUnlock()

		t, err := ix.build(context.WithoutCancel(ctx), rawScript)
		if err != nil {
			return nil, err
		}

		ix.mu.Lock()
		// An invalidation during the build means rawScript may be stale.
		if ix.gen[lessonID] == startGen {
			ix.tables[lessonID] = t
		}
		ix.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// Invalidate drops the cached table for lessonID. Every operation that
// changes a lesson's script or media, or deletes it, must call it.
func (ix *Index) Invalidate(lessonID string) {
	ix.mu.Lock()
	delete(ix.tables, lessonID)
	ix.gen[lessonID]++
	ix.mu.Unlock()
	ix.group.Forget(lessonID)
}

// Cached reports whether a table for lessonID is cached.
func (ix *Index) Cached(lessonID string) bool {
	_, ok := ix.lookup(lessonID)
	return ok
}

func (ix *Index) lookup(lessonID string) (*Table, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tables[lessonID]
	return t, ok
}

func (ix *Index) build(ctx context.Context, rawScript string) (*Table, error) {
	paras := lesson.Paragraphs(rawScript)
	if len(paras) == 0 {
		return &Table{}, nil
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeEmbedDoc)
	vecs, err := ix.embedder.Embed(ctx, paras, llm.EmbedDocument)
	if err != nil {
		return nil, fmt.Errorf("embed lesson paragraphs: %w", err)
	}
	if len(vecs) != len(paras) {
		return nil, fmt.Errorf("embed lesson paragraphs: got %d vectors for %d paragraphs", len(vecs), len(paras))
	}

	t := &Table{Chunks: make([]Chunk, len(paras))}
	for i, p := range paras {
		t.Chunks[i] = Chunk{Text: p, Vector: vecs[i]}
	}
	return t, nil
}
