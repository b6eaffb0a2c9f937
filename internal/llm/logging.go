package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/metrics"
	"github.com/abhisek/coursewell/internal/store"
)

// LoggingProvider is a decorator that records every oracle request as an
// event and as a metric sample.
type LoggingProvider struct {
	inner     Provider
	eventRepo store.EventRepo
	log       *logging.Logger
}

// WithLogging wraps a Provider with event logging. repo may be nil when
// call history should not be persisted.
func WithLogging(p Provider, repo store.EventRepo, log *logging.Logger) Provider {
	if log == nil {
		log = logging.Nop()
	}
	return &LoggingProvider{inner: p, eventRepo: repo, log: log}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	metrics.ObserveOracle(purpose, start, err)
	data := store.LLMRequestEventData{
		Provider:    l.inner.ModelID(),
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = string(resp.Content)
	}

	if err != nil {
		data.ErrorMessage = err.Error()
		l.log.Warn("oracle call failed", "purpose", purpose, "model", data.Model, "error", err)
	} else {
		l.log.Debug("oracle call", "purpose", purpose, "model", data.Model,
			"latency_ms", data.LatencyMs, "input_tokens", data.InputTokens, "output_tokens", data.OutputTokens)
	}

	l.record(ctx, data)
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// record stores the event without failing the request.
func (l *LoggingProvider) record(ctx context.Context, data store.LLMRequestEventData) {
	if l.eventRepo == nil {
		return
	}
	if err := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); err != nil {
		l.log.Warn("failed to log oracle request event", "error", err)
	}
}

// LoggingEmbedder is the Embedder counterpart of LoggingProvider. Only the
// batch size is recorded; vectors are never persisted.
type LoggingEmbedder struct {
	inner     Embedder
	eventRepo store.EventRepo
	log       *logging.Logger
}

// WithEmbedLogging wraps an Embedder with event logging.
func WithEmbedLogging(e Embedder, repo store.EventRepo, log *logging.Logger) Embedder {
	if log == nil {
		log = logging.Nop()
	}
	return &LoggingEmbedder{inner: e, eventRepo: repo, log: log}
}

func (l *LoggingEmbedder) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	start := time.Now()
	purpose := PurposeEmbedDoc
	if mode == EmbedQuery {
		purpose = PurposeEmbedQuery
	}

	vecs, err := l.inner.Embed(ctx, texts, mode)

	metrics.ObserveOracle(purpose, start, err)
	data := store.LLMRequestEventData{
		Provider:    l.inner.ModelID(),
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: fmt.Sprintf("[%d texts, %s]", len(texts), mode),
	}
	if err != nil {
		data.ErrorMessage = err.Error()
		l.log.Warn("embedding call failed", "purpose", purpose, "texts", len(texts), "error", err)
	}

	if l.eventRepo != nil {
		if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
			l.log.Warn("failed to log embedding event", "error", logErr)
		}
	}
	return vecs, err
}

func (l *LoggingEmbedder) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the oracle request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			b.WriteString(fmt.Sprintf("[schema: %s]\n", req.Schema.Name))
			b.WriteString(string(schemaDef))
			b.WriteString("\n")
		}
	}

	return b.String()
}
