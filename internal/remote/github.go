package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"

	"github.com/starford/promptvault/internal/apperr"
)

// GitHubConfig configures the GitHub tree.
type GitHubConfig struct {
	// Repo is "owner/name".
	Repo          string
	Token         string
	DefaultBranch string
	// APIURL overrides https://api.github.com/ (GitHub Enterprise, tests).
	APIURL string
}

// GitHub implements Tree over the GitHub REST API.
type GitHub struct {
	client        *github.Client
	owner         string
	repo          string
	defaultBranch string
}

// ParseRepo splits "owner/name". ok is false when either half is empty.
func ParseRepo(s string) (owner, name string, ok bool) {
	owner, name, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

// NewGitHub creates a GitHub tree. httpClient may be nil.
func NewGitHub(cfg GitHubConfig, httpClient *http.Client) (*GitHub, error) {
	owner, name, ok := ParseRepo(cfg.Repo)
	if !ok {
		return nil, fmt.Errorf("github: invalid repo %q, want owner/name", cfg.Repo)
	}
	client := github.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.APIURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: parse api url: %w", err)
		}
		client.BaseURL = base
	}
	branch := cfg.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	return &GitHub{client: client, owner: owner, repo: name, defaultBranch: branch}, nil
}

// Identity returns owner/name.
func (g *GitHub) Identity() string { return g.owner + "/" + g.repo }

// DefaultBranch returns the configured base branch.
func (g *GitHub) DefaultBranch() string { return g.defaultBranch }

// GetFile reads a file at ref. Directories are reported as not found.
func (g *GitHub) GetFile(ctx context.Context, path, ref string) (*File, error) {
	if ref == "" {
		ref = g.defaultBranch
	}
	fc, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, mapError("get file "+path, err)
	}
	if fc == nil {
		return nil, fmt.Errorf("github: get file %s: %w", path, apperr.ErrNotFound)
	}
	// The contents API omits bodies above 1 MB and reports encoding "none";
	// those are read from the blob API instead.
	if fc.GetEncoding() == "none" {
		raw, _, err := g.client.Git.GetBlobRaw(ctx, g.owner, g.repo, fc.GetSHA())
		if err != nil {
			return nil, mapError("get blob "+path, err)
		}
		return &File{Path: fc.GetPath(), Revision: fc.GetSHA(), Content: raw}, nil
	}
	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("github: decode %s: %w", path, err)
	}
	return &File{Path: fc.GetPath(), Revision: fc.GetSHA(), Content: []byte(content)}, nil
}

// GetDirectory lists the immediate children of path on the default branch.
func (g *GitHub) GetDirectory(ctx context.Context, path string) ([]Entry, error) {
	_, dc, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path,
		&github.RepositoryContentGetOptions{Ref: g.defaultBranch})
	if err != nil {
		return nil, mapError("get directory "+path, err)
	}
	out := make([]Entry, 0, len(dc))
	for _, c := range dc {
		out = append(out, Entry{Path: c.GetPath(), Kind: c.GetType(), Revision: c.GetSHA()})
	}
	return out, nil
}

// PutFile commits one file to a branch and returns the new blob revision.
func (g *GitHub) PutFile(ctx context.Context, change FileChange) (string, error) {
	author := &github.CommitAuthor{
		Name:  github.String(change.Author.Name),
		Email: github.String(change.Author.Email),
	}
	opts := &github.RepositoryContentFileOptions{
		Message:   github.String(change.Message),
		Content:   change.Content,
		Branch:    github.String(change.Branch),
		Author:    author,
		Committer: author,
	}

	var (
		res *github.RepositoryContentResponse
		err error
	)
	if change.BaseRevision == "" {
		res, _, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, change.Path, opts)
	} else {
		opts.SHA = github.String(change.BaseRevision)
		res, _, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, change.Path, opts)
	}
	if err != nil {
		return "", mapError("put file "+change.Path, err)
	}
	if res == nil || res.Content == nil {
		return "", nil
	}
	return res.Content.GetSHA(), nil
}

// GetBranch returns the tip revision of a branch.
func (g *GitHub) GetBranch(ctx context.Context, name string) (string, error) {
	ref, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "heads/"+name)
	if err != nil {
		return "", mapError("get ref "+name, err)
	}
	return ref.GetObject().GetSHA(), nil
}

// CreateBranch creates refs/heads/name at fromRevision.
func (g *GitHub) CreateBranch(ctx context.Context, name, fromRevision string) error {
	_, _, err := g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(fromRevision)},
	})
	if err != nil {
		return mapError("create ref "+name, err)
	}
	return nil
}

// ListCommits returns up to limit commits touching path on the default branch, newest first.
func (g *GitHub) ListCommits(ctx context.Context, path string, limit int) ([]Commit, error) {
	commits, _, err := g.client.Repositories.ListCommits(ctx, g.owner, g.repo, &github.CommitsListOptions{
		SHA:         g.defaultBranch,
		Path:        path,
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, mapError("list commits "+path, err)
	}
	if limit > 0 && len(commits) > limit {
		commits = commits[:limit]
	}
	out := make([]Commit, 0, len(commits))
	for _, c := range commits {
		commit := c.GetCommit()
		author := "Unknown"
		var ts string
		if a := commit.GetAuthor(); a != nil {
			if a.GetName() != "" {
				author = a.GetName()
			}
			if d := a.GetDate(); !d.IsZero() {
				ts = d.UTC().Format(time.RFC3339)
			}
		}
		out = append(out, Commit{
			Revision:  c.GetSHA(),
			Author:    author,
			Message:   commit.GetMessage(),
			Timestamp: ts,
		})
	}
	return out, nil
}

// Compare returns per-file patches between two revisions.
func (g *GitHub) Compare(ctx context.Context, base, head string) ([]FilePatch, error) {
	cmp, _, err := g.client.Repositories.CompareCommits(ctx, g.owner, g.repo, base, head, nil)
	if err != nil {
		return nil, mapError("compare "+base+"..."+head, err)
	}
	out := make([]FilePatch, 0, len(cmp.Files))
	for _, f := range cmp.Files {
		out = append(out, FilePatch{Path: f.GetFilename(), Patch: f.GetPatch()})
	}
	return out, nil
}

// OpenChangeRequest opens a pull request and returns its HTML URL.
func (g *GitHub) OpenChangeRequest(ctx context.Context, req ChangeRequest) (string, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
		Body:  github.String(req.Body),
	})
	if err != nil {
		return "", mapError("open pull request", err)
	}
	return pr.GetHTMLURL(), nil
}

// mapError translates GitHub status codes into apperr sentinels while keeping
// the original message in the chain.
func mapError(op string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("github: %s: %w: %w", op, apperr.ErrNotFound, err)
		case http.StatusConflict:
			return fmt.Errorf("github: %s: %w: %w", op, apperr.ErrConflict, err)
		case http.StatusUnprocessableEntity:
			if strings.Contains(strings.ToLower(ghErr.Message), "already exists") {
				return fmt.Errorf("github: %s: %w: %w", op, apperr.ErrAlreadyExists, err)
			}
		}
	}
	return fmt.Errorf("github: %s: %w", op, err)
}

var _ Tree = (*GitHub)(nil)
