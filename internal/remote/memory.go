package remote

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/starford/promptvault/internal/apperr"
)

// Memory operation names accepted by FailOn.
const (
	OpGetFile           = "GetFile"
	OpGetDirectory      = "GetDirectory"
	OpPutFile           = "PutFile"
	OpGetBranch         = "GetBranch"
	OpCreateBranch      = "CreateBranch"
	OpListCommits       = "ListCommits"
	OpCompare           = "Compare"
	OpOpenChangeRequest = "OpenChangeRequest"
)

// Memory is an in-process Tree with branches, commits and pull requests.
// It backs tests and local runs without a GitHub token.
type Memory struct {
	mu            sync.Mutex
	identity      string
	defaultBranch string
	branches      map[string]string // name -> commit revision
	commits       map[string]*memCommit
	pulls         []ChangeRequest
	failures      map[string]error
	calls         map[string]int
	seq           int
	now           func() time.Time
}

type memCommit struct {
	revision string
	parent   string
	files    map[string]blob
	author   string
	message  string
	at       time.Time
}

type blob struct {
	revision string
	content  []byte
}

// NewMemory creates a tree whose default branch points at an empty root commit.
func NewMemory(identity, defaultBranch string) *Memory {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	m := &Memory{
		identity:      identity,
		defaultBranch: defaultBranch,
		branches:      make(map[string]string),
		commits:       make(map[string]*memCommit),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
		now:           time.Now,
	}
	root := m.commitLocked("", map[string]blob{}, "system", "initial commit")
	m.branches[defaultBranch] = root.revision
	return m
}

// Identity returns the repository name given at construction.
func (m *Memory) Identity() string { return m.identity }

// DefaultBranch returns the base branch.
func (m *Memory) DefaultBranch() string { return m.defaultBranch }

// Seed commits files directly to the default branch and returns the new
// commit revision. files maps paths to contents.
func (m *Memory) Seed(message string, files map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	tip := m.commits[m.branches[m.defaultBranch]]
	snapshot := copyFiles(tip.files)
	for p, content := range files {
		snapshot[cleanPath(p)] = newBlob([]byte(content))
	}
	c := m.commitLocked(tip.revision, snapshot, "system", message)
	m.branches[m.defaultBranch] = c.revision
	return c.revision
}

// FailOn makes every call of op return err until cleared with a nil err.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls reports how many times op was invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Pulls returns the change requests opened so far.
func (m *Memory) Pulls() []ChangeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.pulls)
}

// GetFile reads path at a branch name or commit revision.
func (m *Memory) GetFile(_ context.Context, p, ref string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGetFile); err != nil {
		return nil, err
	}
	c, err := m.resolveLocked(ref)
	if err != nil {
		return nil, err
	}
	p = cleanPath(p)
	b, ok := c.files[p]
	if !ok {
		return nil, fmt.Errorf("memory: get file %s@%s: %w", p, ref, apperr.ErrNotFound)
	}
	return &File{Path: p, Revision: b.revision, Content: slices.Clone(b.content)}, nil
}

// GetDirectory lists immediate children of dir on the default branch, sorted by path.
func (m *Memory) GetDirectory(_ context.Context, dir string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGetDirectory); err != nil {
		return nil, err
	}
	tip := m.commits[m.branches[m.defaultBranch]]
	prefix := cleanPath(dir)
	if prefix != "" {
		prefix += "/"
	}

	seen := make(map[string]Entry)
	for p, b := range tip.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" {
			continue
		}
		if name, _, isDir := strings.Cut(rest, "/"); isDir {
			child := prefix + name
			if _, dup := seen[child]; !dup {
				seen[child] = Entry{Path: child, Kind: KindDir, Revision: treeRevision(tip.files, child)}
			}
			continue
		}
		seen[p] = Entry{Path: p, Kind: KindFile, Revision: b.revision}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("memory: get directory %s: %w", dir, apperr.ErrNotFound)
	}

	out := make([]Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

// PutFile commits one file on a branch. A BaseRevision that does not match
// the branch's current blob is a conflict.
func (m *Memory) PutFile(_ context.Context, change FileChange) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpPutFile); err != nil {
		return "", err
	}
	tipRev, ok := m.branches[change.Branch]
	if !ok {
		return "", fmt.Errorf("memory: put file: branch %s: %w", change.Branch, apperr.ErrNotFound)
	}
	tip := m.commits[tipRev]
	p := cleanPath(change.Path)
	current, exists := tip.files[p]
	if (exists && current.revision != change.BaseRevision) || (!exists && change.BaseRevision != "") {
		return "", fmt.Errorf("memory: put file %s: base revision %q is stale: %w", p, change.BaseRevision, apperr.ErrConflict)
	}

	snapshot := copyFiles(tip.files)
	b := newBlob(change.Content)
	snapshot[p] = b
	c := m.commitLocked(tipRev, snapshot, change.Author.Name, change.Message)
	m.branches[change.Branch] = c.revision
	return b.revision, nil
}

// GetBranch returns the tip revision of name.
func (m *Memory) GetBranch(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGetBranch); err != nil {
		return "", err
	}
	rev, ok := m.branches[name]
	if !ok {
		return "", fmt.Errorf("memory: branch %s: %w", name, apperr.ErrNotFound)
	}
	return rev, nil
}

// CreateBranch points a new branch at fromRevision.
func (m *Memory) CreateBranch(_ context.Context, name, fromRevision string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCreateBranch); err != nil {
		return err
	}
	if _, ok := m.branches[name]; ok {
		return fmt.Errorf("memory: reference refs/heads/%s: %w", name, apperr.ErrAlreadyExists)
	}
	if _, ok := m.commits[fromRevision]; !ok {
		return fmt.Errorf("memory: create branch %s from %s: %w", name, fromRevision, apperr.ErrNotFound)
	}
	m.branches[name] = fromRevision
	return nil
}

// ListCommits walks the default branch and returns commits that changed p.
func (m *Memory) ListCommits(_ context.Context, p string, limit int) ([]Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpListCommits); err != nil {
		return nil, err
	}
	p = cleanPath(p)
	var out []Commit
	for c := m.commits[m.branches[m.defaultBranch]]; c != nil; c = m.commits[c.parent] {
		if limit > 0 && len(out) >= limit {
			break
		}
		cur, inCur := c.files[p]
		var prev blob
		var inPrev bool
		if parent := m.commits[c.parent]; parent != nil {
			prev, inPrev = parent.files[p]
		}
		if inCur == inPrev && cur.revision == prev.revision {
			continue
		}
		out = append(out, Commit{
			Revision:  c.revision,
			Author:    c.author,
			Message:   c.message,
			Timestamp: c.at.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// Compare returns unified-diff hunks for every path that differs between base and head.
func (m *Memory) Compare(_ context.Context, base, head string) ([]FilePatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCompare); err != nil {
		return nil, err
	}
	from, err := m.resolveLocked(base)
	if err != nil {
		return nil, err
	}
	to, err := m.resolveLocked(head)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for p := range from.files {
		paths[p] = struct{}{}
	}
	for p := range to.files {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	slices.Sort(sorted)

	var out []FilePatch
	for _, p := range sorted {
		a, b := from.files[p], to.files[p]
		if a.revision == b.revision {
			continue
		}
		patch, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:       difflib.SplitLines(string(a.content)),
			B:       difflib.SplitLines(string(b.content)),
			Context: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("memory: diff %s: %w", p, err)
		}
		out = append(out, FilePatch{Path: p, Patch: patch})
	}
	return out, nil
}

// OpenChangeRequest records a pull request and returns a synthetic URL.
func (m *Memory) OpenChangeRequest(_ context.Context, req ChangeRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpOpenChangeRequest); err != nil {
		return "", err
	}
	if _, ok := m.branches[req.Head]; !ok {
		return "", fmt.Errorf("memory: head branch %s: %w", req.Head, apperr.ErrNotFound)
	}
	if _, ok := m.branches[req.Base]; !ok {
		return "", fmt.Errorf("memory: base branch %s: %w", req.Base, apperr.ErrNotFound)
	}
	m.pulls = append(m.pulls, req)
	return fmt.Sprintf("memory://%s/pull/%d", m.identity, len(m.pulls)), nil
}

func (m *Memory) enter(op string) error {
	m.calls[op]++
	return m.failures[op]
}

func (m *Memory) resolveLocked(ref string) (*memCommit, error) {
	if ref == "" {
		ref = m.defaultBranch
	}
	if rev, ok := m.branches[ref]; ok {
		return m.commits[rev], nil
	}
	if c, ok := m.commits[ref]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("memory: ref %s: %w", ref, apperr.ErrNotFound)
}

func (m *Memory) commitLocked(parent string, files map[string]blob, author, message string) *memCommit {
	m.seq++
	c := &memCommit{
		revision: hashOf(fmt.Sprintf("commit %d %s %s", m.seq, parent, message)),
		parent:   parent,
		files:    files,
		author:   author,
		message:  message,
		at:       m.now(),
	}
	m.commits[c.revision] = c
	return c
}

func newBlob(content []byte) blob {
	return blob{revision: hashOf("blob " + string(content)), content: slices.Clone(content)}
}

// treeRevision derives a stable revision for a directory from its blobs.
func treeRevision(files map[string]blob, dir string) string {
	var parts []string
	for p, b := range files {
		if strings.HasPrefix(p, dir+"/") {
			parts = append(parts, p+"="+b.revision)
		}
	}
	slices.Sort(parts)
	return hashOf("tree " + strings.Join(parts, "\n"))
}

func copyFiles(files map[string]blob) map[string]blob {
	out := make(map[string]blob, len(files))
	for k, v := range files {
		out[k] = v
	}
	return out
}

func cleanPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

func hashOf(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

var _ Tree = (*Memory)(nil)
