// Package docs assembles guidance documents into a single context string.
//
// Retrieval is a keyword heuristic: a document is relevant to a topic when its
// key contains the topic as a case-insensitive substring. The document set is
// assumed to be small, so every call lists the store and reads matching
// objects serially.
package docs

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ashureev/docchat/internal/blob"
	"github.com/ashureev/docchat/internal/domain"
	"github.com/ashureev/docchat/internal/extract"
	"github.com/ashureev/docchat/internal/metrics"
)

// separator joins documents in the context bundle.
const separator = "\n\n"

// Assembler builds context bundles from a blob store.
type Assembler struct {
	store   blob.Store
	extract ExtractFunc
	cache   Cache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// ExtractFunc converts an object payload into text.
type ExtractFunc func(key string, data []byte) (string, error)

// Option configures an Assembler.
type Option func(*Assembler)

// WithCache stores extracted text between calls.
func WithCache(c Cache) Option {
	return func(a *Assembler) {
		a.cache = c
	}
}

// WithExtractor replaces the default PDF/text extractor.
func WithExtractor(fn ExtractFunc) Option {
	return func(a *Assembler) {
		if fn != nil {
			a.extract = fn
		}
	}
}

// WithMetrics records document counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) {
		a.metrics = m
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAssembler creates an assembler reading from store.
func NewAssembler(store blob.Store, opts ...Option) *Assembler {
	a := &Assembler{
		store:   store,
		extract: extract.Extract,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AllContext concatenates every readable document in listing order.
func (a *Assembler) AllContext(ctx context.Context) string {
	return join(a.Documents(ctx, nil))
}

// ContextForTopic concatenates the documents whose key contains topic,
// ignoring case. It returns an empty string when nothing matches.
func (a *Assembler) ContextForTopic(ctx context.Context, topic string) string {
	topic = strings.ToLower(topic)
	return join(a.Documents(ctx, func(key string) bool {
		return strings.Contains(strings.ToLower(key), topic)
	}))
}

// ContextFor returns the topic context, or all context when no document
// matches the topic.
func (a *Assembler) ContextFor(ctx context.Context, topic string) string {
	if c := a.ContextForTopic(ctx, topic); c != "" {
		return c
	}
	a.logger.Debug("no topic-specific documents, using all context")
	return a.AllContext(ctx)
}

// Documents reads every object accepted by match (all objects when match is
// nil). Objects that cannot be read or extracted, or that yield no text, are
// skipped. A listing failure returns no documents.
func (a *Assembler) Documents(ctx context.Context, match func(key string) bool) []domain.Document {
	objects, err := a.store.List(ctx)
	if err != nil {
		a.logger.Error("failed to list documents", "store", a.store.Name(), "error", err)
		a.metrics.DocumentSkipped("list")
		return nil
	}

	var documents []domain.Document
	for _, obj := range objects {
		if match != nil && !match(obj.Key) {
			continue
		}
		if doc, ok := a.fetch(ctx, obj); ok {
			documents = append(documents, doc)
		}
	}
	return documents
}

func (a *Assembler) fetch(ctx context.Context, obj blob.Object) (domain.Document, bool) {
	cacheKey := a.cacheKey(obj)
	if cacheKey != "" {
		text, hit, err := a.cache.Get(ctx, cacheKey)
		if err != nil {
			a.logger.Warn("document cache lookup failed", "key", obj.Key, "error", err)
		}
		a.metrics.CacheLookup(hit)
		if hit {
			return domain.Document{Key: obj.Key, Text: text}, text != ""
		}
	}

	data, err := a.store.Read(ctx, obj.Key)
	if err != nil {
		a.logger.Error("failed to read document", "key", obj.Key, "error", err)
		a.metrics.DocumentSkipped("read")
		return domain.Document{}, false
	}

	text, err := a.extract(obj.Key, data)
	if err != nil {
		a.logger.Error("failed to extract document", "key", obj.Key, "error", err)
		a.metrics.DocumentSkipped("extract")
		return domain.Document{}, false
	}

	if cacheKey != "" {
		if err := a.cache.Set(ctx, cacheKey, text); err != nil {
			a.logger.Warn("document cache store failed", "key", obj.Key, "error", err)
		}
	}

	if text == "" {
		a.metrics.DocumentSkipped("empty")
		return domain.Document{}, false
	}
	a.metrics.DocumentRead()
	return domain.Document{Key: obj.Key, Text: text}, true
}

// cacheKey returns "" when the object cannot be cached safely.
func (a *Assembler) cacheKey(obj blob.Object) string {
	if a.cache == nil || obj.ETag == "" {
		return ""
	}
	return a.store.Name() + "/" + obj.Key + "@" + obj.ETag
}

func join(documents []domain.Document) string {
	texts := make([]string, 0, len(documents))
	for _, d := range documents {
		texts = append(texts, d.Text)
	}
	return strings.Join(texts, separator)
}
