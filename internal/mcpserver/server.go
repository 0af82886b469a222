// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the prompt catalog to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/promptvault/internal/apperr"
	"github.com/starford/promptvault/internal/index"
	"github.com/starford/promptvault/internal/meta"
	"github.com/starford/promptvault/internal/models"
	"github.com/starford/promptvault/internal/repository"
)

// Repository is the prompt store the tools read and write.
type Repository interface {
	ListDocuments(ctx context.Context, p models.ListParams) models.ListResult
	FetchDocument(ctx context.Context, slug string) (models.Document, bool)
	AllDocuments(ctx context.Context) []models.Document
	WriteDocument(ctx context.Context, req models.WriteRequest) (models.ChangeProposal, error)
	ListVersions(ctx context.Context, slug string) ([]models.Version, error)
	ComputeDiff(ctx context.Context, req models.DiffRequest) (string, error)
	BranchName(prefix, slug string) string
}

// Server wraps the MCP server with the catalog tools.
type Server struct {
	mcp          *server.MCPServer
	repo         Repository
	branchPrefix string
	author       string
}

// New creates a new MCP server with all tools registered. Proposals are
// committed under author.
func New(repo Repository, branchPrefix, author string) *Server {
	if author == "" {
		author = repository.DefaultAuthorName
	}
	s := &Server{repo: repo, branchPrefix: branchPrefix, author: author}

	s.mcp = server.NewMCPServer(
		"promptvault",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_prompts",
		mcp.WithDescription("Search prompt titles, tags, use cases and bodies. Every term must match."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPrompts)

	s.mcp.AddTool(mcp.NewTool("get_prompt",
		mcp.WithDescription("Read one prompt with its metadata and body."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Prompt slug, the directory name under prompts/")),
	), s.getPrompt)

	s.mcp.AddTool(mcp.NewTool("list_prompts",
		mcp.WithDescription("List prompts page by page, optionally filtered by tags and a substring."),
		mcp.WithString("tag", mcp.Description("Comma-separated tags; every tag is required")),
		mcp.WithString("query", mcp.Description("Case-insensitive substring of title, tags, body or use cases")),
		mcp.WithNumber("page", mcp.Description("Page number, from 1")),
		mcp.WithNumber("per_page", mcp.Description("Page size, default 20")),
	), s.listPrompts)

	s.mcp.AddTool(mcp.NewTool("list_versions",
		mcp.WithDescription("List the newest commits that changed a prompt body."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Prompt slug")),
	), s.listVersions)

	s.mcp.AddTool(mcp.NewTool("get_diff",
		mcp.WithDescription("Unified diff of a prompt body between two revisions."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Prompt slug")),
		mcp.WithString("base", mcp.Required(), mcp.Description("Base revision")),
		mcp.WithString("head", mcp.Required(), mcp.Description("Head revision")),
	), s.getDiff)

	s.mcp.AddTool(mcp.NewTool("propose_prompt",
		mcp.WithDescription("Open a pull request creating or updating a prompt. "+
			"Read the layout first via get_layout_contract or the "+LayoutURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Prompt title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Prompt body")),
		mcp.WithString("slug", mcp.Description("Slug; derived from the title when empty")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("language", mcp.Description("Language code, default en")),
	), s.proposePrompt)

	s.mcp.AddTool(mcp.NewTool("get_layout_contract",
		mcp.WithDescription("Returns the storage layout and metadata format of prompts."),
	), s.getLayoutContract)

	s.mcp.AddResource(
		mcp.NewResource(LayoutURI, "Storage Layout",
			mcp.WithResourceDescription("How prompts are laid out in the backing repository."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type promptSummary struct {
	Slug  string   `json:"slug"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
	Path  string   `json:"path"`
}

func summarize(docs []models.Document) []promptSummary {
	out := make([]promptSummary, len(docs))
	for i, d := range docs {
		out[i] = promptSummary{Slug: d.Slug, Title: d.Metadata.Title, Tags: d.Metadata.Tags, Path: d.StoragePath}
	}
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchPrompts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits := index.Build(s.repo.AllDocuments(ctx)).Search(query)
	return jsonResult(summarize(hits)), nil
}

func (s *Server) getPrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, ok := s.repo.FetchDocument(ctx, slug)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) listPrompts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tags []string
	if raw := req.GetString("tag", ""); raw != "" {
		tags = strings.Split(raw, ",")
	}
	res := s.repo.ListDocuments(ctx, models.ListParams{
		Page:    req.GetInt("page", 1),
		PerPage: req.GetInt("per_page", repository.DefaultPerPage),
		Tags:    tags,
		Query:   req.GetString("query", ""),
	})
	return jsonResult(map[string]any{
		"items":   summarize(res.Items),
		"total":   res.Total,
		"page":    res.Page,
		"perPage": res.PerPage,
	}), nil
}

func (s *Server) listVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	versions, err := s.repo.ListVersions(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(versions), nil
}

func (s *Server) getDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args [3]string
	for i, name := range []string{"slug", "base", "head"} {
		v, err := req.RequireString(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args[i] = v
	}
	diff, err := s.repo.ComputeDiff(ctx, models.DiffRequest{Slug: args[0], Base: args[1], Head: args[2]})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if diff == "" {
		return mcp.NewToolResultText("no changes"), nil
	}
	return mcp.NewToolResultText(diff), nil
}

func (s *Server) proposePrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source := req.GetString("slug", "")
	if source == "" {
		source = title
	}
	slug := meta.Slugify(source)
	if slug == "" {
		return mcp.NewToolResultError("slug is empty after normalisation"), nil
	}

	m := meta.ParseRecord(map[string]any{
		"title":    title,
		"tags":     req.GetString("tags", ""),
		"language": req.GetString("language", meta.DefaultLanguage),
		"author":   s.author,
	}, slug)
	if existing, ok := s.repo.FetchDocument(ctx, slug); ok {
		m.CreatedAt = existing.Metadata.CreatedAt
		m.UseCases = existing.Metadata.UseCases
		m.ModelHints = existing.Metadata.ModelHints
		m.Description = existing.Metadata.Description
	}

	proposal, err := s.repo.WriteDocument(ctx, models.WriteRequest{
		Slug:       slug,
		Metadata:   m,
		Body:       content,
		Branch:     s.repo.BranchName(s.branchPrefix, slug),
		AuthorName: s.author,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", apperr.KindOf(err), err.Error())), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("proposed: %s", proposal.URL)), nil
}

func (s *Server) getLayoutContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LayoutContract), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LayoutURI,
			MIMEType: "text/markdown",
			Text:     LayoutContract,
		},
	}, nil
}
