package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/promptvault/internal/apperr"
	"github.com/starford/promptvault/internal/meta"
	"github.com/starford/promptvault/internal/models"
	"github.com/starford/promptvault/internal/remote"
)

// DefaultAuthorName is used when a write carries no author.
const DefaultAuthorName = "anonymous"

// WriteDocument commits the metadata and body of a prompt to branch and opens
// a change request for it. The branch is cut from the default branch tip when
// it does not exist yet.
//
// Any remote failure aborts the write and is returned as is. Files already
// committed stay on the abandoned branch.
func (r *Repository) WriteDocument(ctx context.Context, req models.WriteRequest) (models.ChangeProposal, error) {
	const op = "write prompt"
	if r.tree == nil {
		return models.ChangeProposal{}, apperr.New(apperr.KindRemoteUnavailable, op, apperr.ErrRemoteUnavailable)
	}
	if err := validateWrite(req); err != nil {
		return models.ChangeProposal{}, err
	}

	m := req.Metadata
	m.Slug = req.Slug
	serialized, err := meta.Serialize(m)
	if err != nil {
		return models.ChangeProposal{}, apperr.New(apperr.KindInvalidPayload, op, err)
	}

	author := strings.TrimSpace(req.AuthorName)
	if author == "" {
		author = DefaultAuthorName
	}
	identity := remote.Identity{Name: author, Email: author + "@users.noreply.github.com"}

	// Whatever reached the remote invalidates every cached read.
	defer r.caches.ClearAll()

	if err := r.ensureBranch(ctx, req.Branch); err != nil {
		return models.ChangeProposal{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.putFile(gctx, req.Branch, r.bodyPath(req.Slug), []byte(req.Body),
			"chore: update prompt "+req.Slug, identity)
	})
	g.Go(func() error {
		return r.putFile(gctx, req.Branch, r.metaPath(req.Slug), []byte(serialized),
			"chore: update meta "+req.Slug, identity)
	})
	if err := g.Wait(); err != nil {
		return models.ChangeProposal{}, err
	}

	url, err := r.tree.OpenChangeRequest(ctx, remote.ChangeRequest{
		Head:  req.Branch,
		Base:  r.tree.DefaultBranch(),
		Title: "feat(prompt): " + m.Title,
		Body:  changeRequestBody(m),
	})
	if err != nil {
		return models.ChangeProposal{}, remoteError(err)
	}

	r.logger.Info("change request opened",
		slog.String("slug", req.Slug),
		slog.String("branch", req.Branch),
		slog.String("author", author),
		slog.String("url", url))
	return models.ChangeProposal{URL: url}, nil
}

// BranchName returns the single-use branch for a write of slug.
func (r *Repository) BranchName(prefix, slug string) string {
	if prefix == "" {
		prefix = "feature/prompt/"
	}
	return fmt.Sprintf("%s%s-%d", prefix, slug, r.now().UnixMilli())
}

// ensureBranch reads then creates without coordination. Two writers racing on
// the same name make CreateBranch fail, which surfaces as a conflict.
func (r *Repository) ensureBranch(ctx context.Context, branch string) error {
	if _, err := r.tree.GetBranch(ctx, branch); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return remoteError(err)
	}

	tip, err := r.tree.GetBranch(ctx, r.tree.DefaultBranch())
	if err != nil {
		return remoteError(err)
	}
	if err := r.tree.CreateBranch(ctx, branch, tip); err != nil {
		return remoteError(err)
	}
	return nil
}

func (r *Repository) putFile(ctx context.Context, branch, p string, content []byte, message string, author remote.Identity) error {
	var base string
	if existing, ok := r.readFile(ctx, p, branch); ok {
		base = existing.Revision
	}
	_, err := r.tree.PutFile(ctx, remote.FileChange{
		Path:         p,
		Content:      content,
		Branch:       branch,
		Message:      message,
		Author:       author,
		BaseRevision: base,
	})
	if err != nil {
		return remoteError(err)
	}
	return nil
}

func validateWrite(req models.WriteRequest) error {
	const op = "write prompt"
	switch {
	case !ValidSlug(req.Slug):
		return apperr.Invalid(op, "invalid slug %q", req.Slug)
	case req.Body == "":
		return apperr.Invalid(op, "content is required")
	case req.Branch == "":
		return apperr.Invalid(op, "branch is required")
	}
	return nil
}

// remoteError keeps the remote message and assigns a kind. An existing ref
// or a stale base revision is a conflict, everything else a remote failure.
func remoteError(err error) error {
	kind := apperr.KindRemoteFailure
	if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrAlreadyExists) {
		kind = apperr.KindConflict
	}
	return apperr.New(kind, "", err)
}

func changeRequestBody(m models.Metadata) string {
	return fmt.Sprintf("This PR updates prompt **%s**.\n\n- Tags: %s\n- Language: %s",
		m.Title, strings.Join(m.Tags, ", "), m.Language)
}
