package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/promptvault/internal/models"
	"github.com/starford/promptvault/internal/repository"
)

// WritePromptRequest is the request body for creating or updating a prompt.
// Meta is either a JSON object or a YAML document encoded as a string.
type WritePromptRequest struct {
	Slug    string          `json:"slug,omitempty" example:"welcome-message"`
	Meta    json.RawMessage `json:"meta,omitempty" swaggertype:"object"`
	Content string          `json:"content" example:"Hello {{name}}!" validate:"required"`
}

// ProposalResponse is returned after a change request was opened.
type ProposalResponse = models.ChangeProposal

// PromptListResponse is the paginated listing.
type PromptListResponse = models.ListResult

// VersionsResponse wraps the history of a prompt.
type VersionsResponse struct {
	Versions []models.Version `json:"versions" validate:"required"`
}

// DiffResponse wraps a unified patch; empty when nothing changed.
type DiffResponse struct {
	Diff string `json:"diff" validate:"required"`
}

// SearchResponse wraps local search results.
type SearchResponse struct {
	Items []models.Document `json:"items" validate:"required"`
}

// record decodes Meta into a generic record. A malformed or non-mapping
// value yields a nil record, which parses as default metadata.
func (p WritePromptRequest) record() map[string]any {
	raw := bytes.TrimSpace(p.Meta)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var src string
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil
		}
		var out map[string]any
		if err := yaml.Unmarshal([]byte(src), &out); err != nil {
			return nil
		}
		return out
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// writeInput is the validated boundary form of a write.
type writeInput struct {
	Slug    string `json:"slug"`
	Content string `json:"content"`
}

func (in writeInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Slug, validation.Required.Error("missing slug"), validation.By(slugRule)),
		validation.Field(&in.Content, validation.Required.Error("missing content")),
	)
}

func slugRule(value any) error {
	s, _ := value.(string)
	if s != "" && !repository.ValidSlug(s) {
		return errors.New("must be a single path segment")
	}
	return nil
}

// validationMessage flattens ozzo field errors into one line.
func validationMessage(err error) string {
	var fields validation.Errors
	if errors.As(err, &fields) {
		return fmt.Sprintf("invalid payload: %s", fields.Error())
	}
	return err.Error()
}
