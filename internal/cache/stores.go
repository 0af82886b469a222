package cache

import (
	"github.com/starford/promptvault/internal/models"
	"github.com/starford/promptvault/internal/remote"
)

// Stores groups the repository caches. Every write clears all of them.
type Stores struct {
	Directories *Store[[]remote.Entry]
	Files       *Store[*remote.File]
	Documents   *Store[models.Document]
	Lists       *Store[models.ListResult]
}

// NewStores creates four empty stores sharing the same options.
func NewStores(opts ...Option) *Stores {
	return &Stores{
		Directories: NewStore[[]remote.Entry](opts...),
		Files:       NewStore[*remote.File](opts...),
		Documents:   NewStore[models.Document](opts...),
		Lists:       NewStore[models.ListResult](opts...),
	}
}

// ClearAll empties every store.
func (s *Stores) ClearAll() {
	s.Directories.Clear()
	s.Files.Clear()
	s.Documents.Clear()
	s.Lists.Clear()
}
