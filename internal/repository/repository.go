// Package repository exposes prompts stored as files in a remote
// version-controlled tree: cached reads, branch-and-pull-request writes,
// history and diffs.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/promptvault/internal/apperr"
	"github.com/starford/promptvault/internal/cache"
	"github.com/starford/promptvault/internal/meta"
	"github.com/starford/promptvault/internal/models"
	"github.com/starford/promptvault/internal/remote"
)

// Defaults for Config fields left zero.
const (
	DefaultRoot             = "prompts"
	DefaultMetaFile         = "meta.yaml"
	DefaultBodyFile         = "prompt.md"
	DefaultMaxVersions      = 20
	DefaultFetchConcurrency = 8
	DefaultPerPage          = 20
)

// Config describes the storage layout and limits.
type Config struct {
	Root             string
	MetaFile         string
	BodyFile         string
	MaxVersions      int
	FetchConcurrency int
}

func (c Config) withDefaults() Config {
	if c.Root == "" {
		c.Root = DefaultRoot
	}
	c.Root = strings.Trim(c.Root, "/")
	if c.MetaFile == "" {
		c.MetaFile = DefaultMetaFile
	}
	if c.BodyFile == "" {
		c.BodyFile = DefaultBodyFile
	}
	if c.MaxVersions <= 0 {
		c.MaxVersions = DefaultMaxVersions
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = DefaultFetchConcurrency
	}
	return c
}

// Repository is the prompt store. It owns its caches for its whole lifetime.
type Repository struct {
	tree   remote.Tree
	caches *cache.Stores
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Repository. A nil tree means the remote is not configured:
// reads return nothing and writes fail with remote_unavailable.
func New(tree remote.Tree, caches *cache.Stores, cfg Config, logger *slog.Logger) *Repository {
	if caches == nil {
		caches = cache.NewStores()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		tree:   tree,
		caches: caches,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Configured reports whether a remote tree is attached.
func (r *Repository) Configured() bool { return r.tree != nil }

// StoragePath returns the directory holding slug.
func (r *Repository) StoragePath(slug string) string { return path.Join(r.cfg.Root, slug) }

func (r *Repository) bodyPath(slug string) string {
	return path.Join(r.cfg.Root, slug, r.cfg.BodyFile)
}

func (r *Repository) metaPath(slug string) string {
	return path.Join(r.cfg.Root, slug, r.cfg.MetaFile)
}

// ListDocumentDirectories returns the immediate subdirectories of the root.
// Failures are logged and yield an empty list.
func (r *Repository) ListDocumentDirectories(ctx context.Context) []remote.Entry {
	dirs, _ := r.listDirectories(ctx)
	return dirs
}

// listDirectories also reports whether the listing is complete. A failed
// listing is empty and not cached.
func (r *Repository) listDirectories(ctx context.Context) ([]remote.Entry, bool) {
	if r.tree == nil {
		return []remote.Entry{}, true
	}
	key := r.tree.Identity() + ":directories"
	if dirs, ok := r.caches.Directories.Get(key); ok {
		return dirs, true
	}

	entries, err := r.tree.GetDirectory(ctx, r.cfg.Root)
	if err != nil {
		r.logger.Error("list prompt directories failed",
			slog.String("root", r.cfg.Root),
			slog.String("error", err.Error()))
		return []remote.Entry{}, false
	}
	dirs := make([]remote.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == remote.KindDir {
			dirs = append(dirs, e)
		}
	}
	r.caches.Directories.Set(key, dirs)
	return dirs, true
}

// readFile returns the file at ref, or false when it is absent or unreadable.
func (r *Repository) readFile(ctx context.Context, p, ref string) (*remote.File, bool) {
	f, err := r.lookupFile(ctx, p, ref)
	return f, err == nil && f != nil
}

// lookupFile reads through the file cache. An absent file is nil with a nil
// error; any other failure is logged and returned.
func (r *Repository) lookupFile(ctx context.Context, p, ref string) (*remote.File, error) {
	if ref == "" {
		ref = r.tree.DefaultBranch()
	}
	key := r.tree.Identity() + ":" + ref + ":" + p
	if f, ok := r.caches.Files.Get(key); ok {
		return f, nil
	}
	f, err := r.tree.GetFile(ctx, p, ref)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		r.logger.Warn("read file failed",
			slog.String("path", p),
			slog.String("ref", ref),
			slog.String("error", err.Error()))
		return nil, err
	}
	r.caches.Files.Set(key, f)
	return f, nil
}

// FetchDocument reads one prompt. It reports false when the body file is
// missing; a missing metadata file parses as empty metadata.
func (r *Repository) FetchDocument(ctx context.Context, slug string) (models.Document, bool) {
	doc, ok, _ := r.fetchDocument(ctx, slug)
	return doc, ok
}

// fetchDocument also returns the first read failure. A document built around
// a failed read is returned but not cached.
func (r *Repository) fetchDocument(ctx context.Context, slug string) (models.Document, bool, error) {
	if r.tree == nil || !ValidSlug(slug) {
		return models.Document{}, false, nil
	}
	key := r.tree.Identity() + ":prompt:" + slug
	if doc, ok := r.caches.Documents.Get(key); ok {
		return doc, true, nil
	}

	var (
		metaFile, bodyFile *remote.File
		g                  errgroup.Group
	)
	g.Go(func() (err error) {
		metaFile, err = r.lookupFile(ctx, r.metaPath(slug), "")
		return err
	})
	g.Go(func() (err error) {
		bodyFile, err = r.lookupFile(ctx, r.bodyPath(slug), "")
		return err
	})
	readErr := g.Wait()

	if bodyFile == nil {
		return models.Document{}, false, readErr
	}
	var source string
	if metaFile != nil {
		source = string(metaFile.Content)
	}
	doc := models.Document{
		Slug:        slug,
		StoragePath: r.StoragePath(slug),
		Metadata:    meta.Parse(source, slug),
		Body:        string(bodyFile.Content),
	}
	if readErr != nil {
		return doc, true, readErr
	}
	r.caches.Documents.Set(key, doc)
	return doc, true, nil
}

// AllDocuments resolves every prompt directory, in listing order.
func (r *Repository) AllDocuments(ctx context.Context) []models.Document {
	docs, _ := r.allDocuments(ctx)
	return docs
}

// allDocuments reports false when the listing or any document read failed,
// so callers can avoid caching a partial catalog.
func (r *Repository) allDocuments(ctx context.Context) ([]models.Document, bool) {
	dirs, complete := r.listDirectories(ctx)

	type slot struct {
		doc models.Document
		ok  bool
	}
	slots := make([]slot, len(dirs))

	var g errgroup.Group
	g.SetLimit(r.cfg.FetchConcurrency)
	for i, d := range dirs {
		slug := path.Base(d.Path)
		g.Go(func() error {
			doc, ok, err := r.fetchDocument(ctx, slug)
			slots[i] = slot{doc: doc, ok: ok}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		complete = false
	}

	out := make([]models.Document, 0, len(slots))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.doc)
		}
	}
	return out, complete
}

// ListDocuments filters by tags (all required), then by a case-insensitive
// substring query, then pages the result. Order follows the directory listing.
func (r *Repository) ListDocuments(ctx context.Context, p models.ListParams) models.ListResult {
	p = normalizeParams(p)
	keyBytes, _ := json.Marshal(p)
	key := string(keyBytes)
	if res, ok := r.caches.Lists.Get(key); ok {
		return res
	}

	items, complete := r.allDocuments(ctx)
	if len(p.Tags) > 0 {
		items = filter(items, func(d models.Document) bool { return hasAllTags(d, p.Tags) })
	}
	if p.Query != "" {
		q := strings.ToLower(p.Query)
		items = filter(items, func(d models.Document) bool {
			return strings.Contains(strings.ToLower(searchText(d)), q)
		})
	}

	total := len(items)
	start := min((p.Page-1)*p.PerPage, total)
	end := min(start+p.PerPage, total)

	res := models.ListResult{
		Items:   append([]models.Document{}, items[start:end]...),
		Total:   total,
		Page:    p.Page,
		PerPage: p.PerPage,
	}
	if complete {
		r.caches.Lists.Set(key, res)
	}
	return res
}

// ListVersions returns the newest commits touching the prompt body.
// Remote failures are logged and yield an empty list.
func (r *Repository) ListVersions(ctx context.Context, slug string) ([]models.Version, error) {
	if !ValidSlug(slug) {
		return nil, apperr.Invalid("list versions", "invalid slug %q", slug)
	}
	if r.tree == nil {
		return []models.Version{}, nil
	}
	commits, err := r.tree.ListCommits(ctx, r.bodyPath(slug), r.cfg.MaxVersions)
	if err != nil {
		r.logger.Error("list versions failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()))
		return []models.Version{}, nil
	}
	if len(commits) > r.cfg.MaxVersions {
		commits = commits[:r.cfg.MaxVersions]
	}
	out := make([]models.Version, len(commits))
	for i, c := range commits {
		out[i] = models.Version{
			Revision:  c.Revision,
			Author:    c.Author,
			Message:   c.Message,
			Timestamp: c.Timestamp,
		}
	}
	return out, nil
}

// ComputeDiff returns the patch of the prompt body between two revisions, or
// an empty string when the body did not change. Remote failures are logged
// and yield an empty string.
func (r *Repository) ComputeDiff(ctx context.Context, req models.DiffRequest) (string, error) {
	const op = "compute diff"
	if !ValidSlug(req.Slug) {
		return "", apperr.Invalid(op, "invalid slug %q", req.Slug)
	}
	if req.Base == "" || req.Head == "" {
		return "", apperr.Invalid(op, "base and head revisions are required")
	}
	if r.tree == nil {
		return "", nil
	}
	patches, err := r.tree.Compare(ctx, req.Base, req.Head)
	if err != nil {
		r.logger.Error("compare revisions failed",
			slog.String("slug", req.Slug),
			slog.String("base", req.Base),
			slog.String("head", req.Head),
			slog.String("error", err.Error()))
		return "", nil
	}
	target := r.bodyPath(req.Slug)
	for _, p := range patches {
		if p.Path == target {
			return p.Patch, nil
		}
	}
	return "", nil
}

// ValidSlug rejects slugs that could address anything but a direct child of the root.
func ValidSlug(slug string) bool {
	if slug == "" || strings.HasPrefix(slug, ".") {
		return false
	}
	return !strings.ContainsAny(slug, `/\`) && !strings.Contains(slug, "..")
}

func normalizeParams(p models.ListParams) models.ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	var tags []string
	for _, t := range p.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	p.Tags = tags
	return p
}

func hasAllTags(d models.Document, want []string) bool {
	have := make(map[string]struct{}, len(d.Metadata.Tags))
	for _, t := range d.Metadata.Tags {
		have[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

func searchText(d models.Document) string {
	return strings.Join([]string{
		d.Metadata.Title,
		strings.Join(d.Metadata.Tags, " "),
		d.Body,
		strings.Join(d.Metadata.UseCases, " "),
	}, " ")
}

func filter(docs []models.Document, keep func(models.Document) bool) []models.Document {
	out := docs[:0:0]
	for _, d := range docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
