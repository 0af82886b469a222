// Package meta parses and serializes the YAML metadata stored next to each
// prompt body.
package meta

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/promptvault/internal/models"
)

// Defaults applied when a field is missing or the file cannot be parsed.
const (
	DefaultAuthor   = "unknown"
	DefaultLanguage = "en"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Parse decodes raw YAML into Metadata. It never fails: malformed input or a
// document that is not a mapping yields Fallback(slug). The slug field in raw
// is ignored; slug always wins.
func Parse(raw string, slug string) models.Metadata {
	var data map[string]any
	if err := yaml.Unmarshal([]byte(raw), &data); err != nil {
		return Fallback(slug)
	}
	return ParseRecord(data, slug)
}

// ParseRecord coerces an already-decoded record (YAML or JSON) into Metadata.
func ParseRecord(data map[string]any, slug string) models.Metadata {
	now := time.Now().UTC()
	m := models.Metadata{
		Title:       stringField(data, "title", slug),
		Slug:        slug,
		Tags:        listField(data["tags"]),
		CreatedAt:   timeField(data["createdAt"], now),
		UpdatedAt:   timeField(data["updatedAt"], now),
		Author:      stringField(data, "author", DefaultAuthor),
		Language:    stringField(data, "language", DefaultLanguage),
		UseCases:    listField(data["useCases"]),
		ModelHints:  hintsField(data["modelHints"]),
		Description: stringField(data, "description", ""),
	}
	return m
}

// Fallback is the record used when metadata cannot be read.
func Fallback(slug string) models.Metadata {
	now := time.Now().UTC()
	return models.Metadata{
		Title:      slug,
		Slug:       slug,
		Tags:       []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
		Author:     DefaultAuthor,
		Language:   DefaultLanguage,
		UseCases:   []string{},
		ModelHints: map[string]any{},
	}
}

type document struct {
	Title       string         `yaml:"title"`
	Slug        string         `yaml:"slug"`
	Tags        []string       `yaml:"tags"`
	CreatedAt   string         `yaml:"createdAt"`
	UpdatedAt   string         `yaml:"updatedAt"`
	Author      string         `yaml:"author"`
	Language    string         `yaml:"language"`
	UseCases    []string       `yaml:"useCases"`
	ModelHints  map[string]any `yaml:"modelHints"`
	Description string         `yaml:"description,omitempty"`
}

// Serialize renders m as YAML. Timestamps are written as RFC 3339 strings.
func Serialize(m models.Metadata) (string, error) {
	doc := document{
		Title:       m.Title,
		Slug:        m.Slug,
		Tags:        nonNil(m.Tags),
		CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   m.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Author:      m.Author,
		Language:    m.Language,
		UseCases:    nonNil(m.UseCases),
		ModelHints:  m.ModelHints,
		Description: m.Description,
	}
	if doc.ModelHints == nil {
		doc.ModelHints = map[string]any{}
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("meta: serialize %s: %w", m.Slug, err)
	}
	return string(out), nil
}

// Slugify lower-cases s and collapses every run of characters outside
// [a-z0-9] into a single dash, trimming dashes at both ends.
func Slugify(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func stringField(data map[string]any, key, def string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := scalarString(v); ok {
		return s
	}
	return def
}

// listField accepts a YAML/JSON list of scalars or a comma-separated string.
// Items are trimmed, blanks dropped, duplicates removed keeping the first.
func listField(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := scalarString(item); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = t
	case string:
		raw = strings.Split(t, ",")
	}

	out := []string{}
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func timeField(v any, def time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t)); err == nil {
			return ts.UTC()
		}
		if d, err := time.Parse(time.DateOnly, strings.TrimSpace(t)); err == nil {
			return d.UTC()
		}
	}
	return def
}

// hintsField keeps scalar entries of a mapping; anything else becomes empty.
// Numbers are held as float64 so 1.0 and 1 decode to the same value whether
// they come from YAML or JSON.
func hintsField(v any) map[string]any {
	out := map[string]any{}
	record, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range record {
		switch t := val.(type) {
		case bool, string, float64:
			out[k] = t
		case int:
			out[k] = float64(t)
		case int64:
			out[k] = float64(t)
		case uint64:
			out[k] = float64(t)
		case float32:
			out[k] = float64(t)
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case time.Time:
		return t.UTC().Format(time.RFC3339), true
	}
	return "", false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
