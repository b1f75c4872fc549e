package memory

import (
	"context"
	"errors"

	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/xstrings"
)

var ErrNotFound = errors.New("memory not found")

// DefaultDistanceThreshold is the update/create boundary: matches strictly
// closer than this are updated in place.
const DefaultDistanceThreshold = 0.3

const DefaultSearchLimit = 10

// Store is a keyed document store with similarity search. Ids are assigned
// by Add and never change; Update replaces the text wholesale.
type Store interface {
	Search(ctx context.Context, query string, k int) ([]types.MemoryMatch, error)
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (string, error)
	Add(ctx context.Context, text string) (string, error)
	Update(ctx context.Context, id, text string) error
}

// Resetter is implemented by stores that can drop every memory at once.
type Resetter interface {
	Reset() error
}

// FilterForUpdate selects the ids of matches with distance < threshold,
// keeping match order and dropping repeats.
func FilterForUpdate(matches []types.MemoryMatch, threshold float64) []string {
	ids := []string{}
	for _, m := range matches {
		if m.Distance < threshold {
			ids = append(ids, m.ID)
		}
	}
	return xstrings.UniqueSlice(ids)
}
