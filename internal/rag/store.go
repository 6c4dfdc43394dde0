package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/akorchagin/hostsentry/internal/model"
)

// Filter narrows a similarity search by event metadata. Zero values
// mean no constraint.
type Filter struct {
	// Type restricts hits to one event type.
	Type string

	// Types restricts hits to any of the given types. Ignored when
	// Type is set.
	Types []string

	// Since drops hits older than the given instant.
	Since time.Time
}

// Hit is one similarity-search result.
type Hit struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float32
}

// VectorIndex is the semantic store the engine retrieves from. It also
// serves as the writer's document sink.
type VectorIndex interface {
	AddDocuments(ctx context.Context, docs []model.Document) error
	Search(ctx context.Context, query string, k int, filter *Filter) ([]Hit, error)
}

const collectionName = "system_events"

// ChromemIndex is a persistent, embedded vector index.
type ChromemIndex struct {
	coll *chromem.Collection
}

// NewChromemIndex opens (or creates) the index under dir, embedding
// through the given embedder.
func NewChromemIndex(dir string, embedder Embedder) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return vecs[0], nil
	}

	coll, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	return &ChromemIndex{coll: coll}, nil
}

// AddDocuments ingests one batch of event documents.
func (x *ChromemIndex) AddDocuments(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	converted := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" || d.Text == "" {
			continue
		}
		converted = append(converted, chromem.Document{
			ID:       d.ID,
			Content:  d.Text,
			Metadata: d.Metadata,
		})
	}
	if len(converted) == 0 {
		return nil
	}
	return x.coll.AddDocuments(ctx, converted, 1)
}

// Search returns the k most similar documents passing the filter. The
// backend only filters on metadata equality, so set and time
// constraints are applied client-side over an over-fetched candidate
// window.
func (x *ChromemIndex) Search(ctx context.Context, query string, k int, filter *Filter) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	total := x.coll.Count()
	if total == 0 {
		return nil, nil
	}

	fetch := k
	var where map[string]string
	switch {
	case filter == nil:
	case filter.Type != "":
		// Single-type filters push down to the backend.
		where = map[string]string{"type": filter.Type}
	default:
		fetch = k * 4
	}
	if !filterSince(filter).IsZero() && fetch < k*4 {
		fetch = k * 4
	}
	if fetch > total {
		fetch = total
	}

	results, err := x.coll.Query(ctx, query, fetch, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	hits := make([]Hit, 0, k)
	for _, r := range results {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:         r.ID,
			Text:       r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func filterSince(f *Filter) time.Time {
	if f == nil {
		return time.Time{}
	}
	return f.Since
}

// matchesFilter applies the set and time constraints a metadata-equality
// backend cannot express.
func matchesFilter(meta map[string]string, f *Filter) bool {
	if f == nil {
		return true
	}
	docType := meta["type"]
	if f.Type != "" && docType != f.Type {
		return false
	}
	if f.Type == "" && len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if docType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() {
		ts, err := time.Parse(time.RFC3339, meta["timestamp"])
		if err != nil || ts.Before(f.Since) {
			return false
		}
	}
	return true
}
