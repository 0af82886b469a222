// Package remote defines the version-controlled tree the prompt store reads and
// writes, with a GitHub implementation and an in-memory one.
package remote

import "context"

// Entry kinds.
const (
	KindDir  = "dir"
	KindFile = "file"
)

// Entry is one item of a directory listing.
type Entry struct {
	Path     string `json:"path"`
	Kind     string `json:"type"`
	Revision string `json:"sha"`
}

// File is a blob at a ref. Revision is the blob revision used as the
// expected base when the file is later updated.
type File struct {
	Path     string
	Revision string
	Content  []byte
}

// Identity names a commit author.
type Identity struct {
	Name  string
	Email string
}

// FileChange creates or updates one file on a branch as a single commit.
// BaseRevision is empty for a new file.
type FileChange struct {
	Path         string
	Content      []byte
	Branch       string
	Message      string
	Author       Identity
	BaseRevision string
}

// Commit is one entry of a path history.
type Commit struct {
	Revision  string
	Author    string
	Message   string
	Timestamp string
}

// FilePatch is the patch for one path between two revisions.
type FilePatch struct {
	Path  string
	Patch string
}

// ChangeRequest asks the host to merge Head into Base.
type ChangeRequest struct {
	Head  string
	Base  string
	Title string
	Body  string
}

// Tree is the remote store capability set.
//
// Absent files, directories and refs are reported with apperr.ErrNotFound.
// CreateBranch reports an existing name with apperr.ErrAlreadyExists and
// PutFile reports a stale BaseRevision with apperr.ErrConflict.
type Tree interface {
	// Identity returns "owner/name" of the backing repository.
	Identity() string
	// DefaultBranch returns the branch change requests target.
	DefaultBranch() string

	GetFile(ctx context.Context, path, ref string) (*File, error)
	GetDirectory(ctx context.Context, path string) ([]Entry, error)
	PutFile(ctx context.Context, change FileChange) (string, error)
	GetBranch(ctx context.Context, name string) (string, error)
	CreateBranch(ctx context.Context, name, fromRevision string) error
	ListCommits(ctx context.Context, path string, limit int) ([]Commit, error)
	Compare(ctx context.Context, base, head string) ([]FilePatch, error)
	OpenChangeRequest(ctx context.Context, req ChangeRequest) (string, error)
}
