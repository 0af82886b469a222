// Package models defines the domain types for promptvault.
package models

import "time"

// Metadata is the structured front-matter stored next to a prompt body.
type Metadata struct {
	Title       string         `json:"title" yaml:"title"`
	Slug        string         `json:"slug" yaml:"slug"`
	Tags        []string       `json:"tags" yaml:"tags"`
	CreatedAt   time.Time      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt" yaml:"updatedAt"`
	Author      string         `json:"author" yaml:"author"`
	Language    string         `json:"language" yaml:"language"`
	UseCases    []string       `json:"useCases" yaml:"useCases"`
	ModelHints  map[string]any `json:"modelHints" yaml:"modelHints"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// Document is one prompt: a directory holding a metadata file and a body file.
// Values are never mutated after construction.
type Document struct {
	Slug        string   `json:"slug"`
	StoragePath string   `json:"path"`
	Metadata    Metadata `json:"meta"`
	Body        string   `json:"content"`
}

// Version is one commit that touched a prompt body.
type Version struct {
	Revision  string `json:"sha"`
	Author    string `json:"author"`
	Message   string `json:"message"`
	Timestamp string `json:"date"`
}

// ChangeProposal is the handle of an opened pull request.
type ChangeProposal struct {
	URL string `json:"prUrl"`
}

// ListParams selects a page of prompts.
type ListParams struct {
	Page    int      `json:"page"`
	PerPage int      `json:"perPage"`
	Tags    []string `json:"tag"`
	Query   string   `json:"q"`
}

// ListResult is a page of prompts. Total counts filtered items before paging.
type ListResult struct {
	Items   []Document `json:"items"`
	Total   int        `json:"total"`
	Page    int        `json:"page"`
	PerPage int        `json:"perPage"`
}

// WriteRequest proposes a new revision of a prompt on a single-use branch.
type WriteRequest struct {
	Slug       string
	Metadata   Metadata
	Body       string
	Branch     string
	AuthorName string
}

// DiffRequest selects two revisions of a prompt body to compare.
type DiffRequest struct {
	Slug string
	Base string
	Head string
}
