package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/google/uuid"
	"github.com/mudler/xlog"
	"github.com/philippgille/chromem-go"
)

const DefaultCollection = "bug-reports"

// ChromemStore keeps bug report memories in a chromem-go collection.
// Distances are reported as 1 - cosine similarity.
type ChromemStore struct {
	// mu guards collection, which Reset swaps out.
	mu             sync.RWMutex
	collectionName string
	collection     *chromem.Collection
	db             *chromem.DB
	embed          chromem.EmbeddingFunc
}

var _ Store = (*ChromemStore)(nil)
var _ Resetter = (*ChromemStore)(nil)

// NewChromemStore opens the collection. An empty path keeps everything in
// memory; otherwise the database is persisted (gzip compressed) under path.
func NewChromemStore(collection, path string, embed chromem.EmbeddingFunc) (*ChromemStore, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("opening memory database at %s: %w", path, err)
		}
	}

	c, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, err
	}

	xlog.Info("Memory collection ready", "collection", collection, "path", path, "entries", c.Count())

	return &ChromemStore{
		collectionName: collection,
		collection:     c,
		db:             db,
		embed:          embed,
	}, nil
}

func (c *ChromemStore) current() *chromem.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection
}

func (c *ChromemStore) Count() int {
	return c.current().Count()
}

func (c *ChromemStore) Search(ctx context.Context, query string, k int) ([]types.MemoryMatch, error) {
	// chromem refuses to return more results than it holds
	collection := c.current()
	n := collection.Count()
	if n == 0 || k <= 0 {
		return []types.MemoryMatch{}, nil
	}
	if k > n {
		k = n
	}

	res, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, err
	}

	matches := make([]types.MemoryMatch, 0, len(res))
	for _, r := range res {
		matches = append(matches, types.MemoryMatch{
			ID:       r.ID,
			Text:     r.Content,
			Distance: 1 - float64(r.Similarity),
		})
	}
	return matches, nil
}

func (c *ChromemStore) Get(ctx context.Context, id string) (string, error) {
	doc, err := c.current().GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc.Content, nil
}

func (c *ChromemStore) Add(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("empty memory")
	}

	id := uuid.New().String()
	now := time.Now().Format(time.RFC3339)
	err := c.current().AddDocument(ctx, chromem.Document{
		ID:      id,
		Content: text,
		Metadata: map[string]string{
			"id":         id,
			"created_at": now,
			"updated_at": now,
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Update re-embeds text under the existing id. AddDocument replaces a
// document with the same id, so the id is kept.
func (c *ChromemStore) Update(ctx context.Context, id, text string) error {
	collection := c.current()
	doc, err := collection.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	metadata := map[string]string{}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	metadata["updated_at"] = time.Now().Format(time.RFC3339)

	return collection.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: metadata,
	})
}

// Reset drops every memory in the collection.
func (c *ChromemStore) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(c.collectionName); err != nil {
		return err
	}
	collection, err := c.db.GetOrCreateCollection(c.collectionName, nil, c.embed)
	if err != nil {
		return err
	}
	c.collection = collection
	return nil
}
