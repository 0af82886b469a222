package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/promptvault/internal/apperr"
	"github.com/starford/promptvault/internal/index"
	"github.com/starford/promptvault/internal/meta"
	"github.com/starford/promptvault/internal/models"
	"github.com/starford/promptvault/internal/repository"
)

const maxBodyBytes = 1 << 20

// Repository is the prompt store the handlers serve.
type Repository interface {
	ListDocuments(ctx context.Context, p models.ListParams) models.ListResult
	FetchDocument(ctx context.Context, slug string) (models.Document, bool)
	AllDocuments(ctx context.Context) []models.Document
	WriteDocument(ctx context.Context, req models.WriteRequest) (models.ChangeProposal, error)
	ListVersions(ctx context.Context, slug string) ([]models.Version, error)
	ComputeDiff(ctx context.Context, req models.DiffRequest) (string, error)
	BranchName(prefix, slug string) string
}

// Publisher is notified after a change request was opened.
type Publisher interface {
	PublishProposal(slug, url string)
}

// Handler holds API route handlers.
type Handler struct {
	repo         Repository
	events       Publisher
	branchPrefix string
	now          func() time.Time
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(repo Repository, events Publisher, branchPrefix string) *Handler {
	return &Handler{repo: repo, events: events, branchPrefix: branchPrefix, now: time.Now}
}

// ListPrompts handles GET /api/prompts.
//
//	@Summary		List prompts with pagination, tag and text filters
//	@Tags			prompts
//	@Produce		json
//	@Param			page		query		int			false	"Page number, from 1"
//	@Param			per_page	query		int			false	"Page size"
//	@Param			tag			query		[]string	false	"Required tag, repeatable"
//	@Param			q			query		string		false	"Case-insensitive substring"
//	@Success		200			{object}	PromptListResponse
//	@Router			/prompts [get]
func (h *Handler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	res := h.repo.ListDocuments(r.Context(), models.ListParams{
		Page:    page,
		PerPage: perPage,
		Tags:    q["tag"],
		Query:   q.Get("q"),
	})
	w.Header().Set("Cache-Control", "s-maxage=60")
	writeJSON(w, http.StatusOK, res)
}

// GetPrompt handles GET /api/prompts/{slug}.
//
//	@Summary		Get a single prompt
//	@Tags			prompts
//	@Produce		json
//	@Param			slug	path		string	true	"Prompt slug"
//	@Success		200		{object}	models.Document
//	@Failure		404		{object}	errResponse
//	@Router			/prompts/{slug} [get]
func (h *Handler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	doc, ok := h.repo.FetchDocument(r.Context(), slug)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody(string(apperr.KindNotFound), "Prompt not found"))
		return
	}

	etag := `"` + checksum(doc.Body) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "s-maxage=60")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreatePrompt handles POST /api/prompts.
//
//	@Summary		Propose a new prompt through a change request
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		WritePromptRequest	true	"Prompt to create"
//	@Success		201		{object}	ProposalResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/prompts [post]
func (h *Handler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeWrite(w, r)
	if !ok {
		return
	}
	record := req.record()
	source := req.Slug
	if source == "" {
		source, _ = record["slug"].(string)
	}
	if source == "" {
		source, _ = record["title"].(string)
	}
	h.write(w, r, meta.Slugify(source), record, req.Content, http.StatusCreated, true)
}

// UpdatePrompt handles PUT /api/prompts/{slug}.
//
//	@Summary		Propose a new revision of a prompt
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string				true	"Prompt slug"
//	@Param			body	body		WritePromptRequest	true	"Updated prompt"
//	@Success		200		{object}	ProposalResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/prompts/{slug} [put]
func (h *Handler) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeWrite(w, r)
	if !ok {
		return
	}
	h.write(w, r, chi.URLParam(r, "slug"), req.record(), req.Content, http.StatusOK, false)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, slug string, record map[string]any, content string, status int, create bool) {
	in := writeInput{Slug: slug, Content: content}
	if err := in.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(string(apperr.KindInvalidPayload), validationMessage(err)))
		return
	}

	m := meta.ParseRecord(record, slug)
	m.UpdatedAt = h.now().UTC()
	author := repository.DefaultAuthorName
	if user, ok := UserFrom(r.Context()); ok {
		author = user
		m.Author = user
	} else if create {
		m.Author = author
	}

	proposal, err := h.repo.WriteDocument(r.Context(), models.WriteRequest{
		Slug:       slug,
		Metadata:   m,
		Body:       content,
		Branch:     h.repo.BranchName(h.branchPrefix, slug),
		AuthorName: author,
	})
	if err != nil {
		slog.Error("write prompt failed",
			slog.String("slug", slug),
			slog.String("kind", string(apperr.KindOf(err))),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if h.events != nil {
		h.events.PublishProposal(slug, proposal.URL)
	}
	writeJSON(w, status, proposal)
}

// ListVersions handles GET /api/prompts/{slug}/versions.
//
//	@Summary		List the newest revisions of a prompt body
//	@Tags			prompts
//	@Produce		json
//	@Param			slug	path		string	true	"Prompt slug"
//	@Success		200		{object}	VersionsResponse
//	@Failure		400		{object}	errResponse
//	@Router			/prompts/{slug}/versions [get]
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.repo.ListVersions(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "s-maxage=60")
	writeJSON(w, http.StatusOK, VersionsResponse{Versions: versions})
}

// GetDiff handles GET /api/prompts/{slug}/diff.
//
//	@Summary		Diff a prompt body between two revisions
//	@Tags			prompts
//	@Produce		json
//	@Param			slug	path		string	true	"Prompt slug"
//	@Param			base	query		string	true	"Base revision"
//	@Param			head	query		string	true	"Head revision"
//	@Success		200		{object}	DiffResponse
//	@Failure		400		{object}	errResponse
//	@Router			/prompts/{slug}/diff [get]
func (h *Handler) GetDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base, head := q.Get("base"), q.Get("head")
	if base == "" || head == "" {
		writeJSON(w, http.StatusBadRequest, errorBody(string(apperr.KindInvalidPayload), "Missing base or head"))
		return
	}
	diff, err := h.repo.ComputeDiff(r.Context(), models.DiffRequest{
		Slug: chi.URLParam(r, "slug"),
		Base: base,
		Head: head,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "s-maxage=30")
	writeJSON(w, http.StatusOK, DiffResponse{Diff: diff})
}

// Search handles GET /api/search.
//
//	@Summary		Search prompts with Unicode-aware matching of every term
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search query"
//	@Success		200	{object}	SearchResponse
//	@Failure		400	{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody(string(apperr.KindInvalidPayload), "query parameter 'q' is required"))
		return
	}
	items := index.Build(h.repo.AllDocuments(r.Context())).Search(q)
	if items == nil {
		items = []models.Document{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Items: items})
}

func decodeWrite(w http.ResponseWriter, r *http.Request) (WritePromptRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req WritePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(string(apperr.KindInvalidPayload), "invalid JSON body"))
		return req, false
	}
	return req, true
}

func checksum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
