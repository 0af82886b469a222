// Package testutil provides shared test helpers for setting up remote trees
// seeded with prompts.
package testutil

import (
	"log/slog"
	"path"
	"testing"

	"github.com/starford/promptvault/internal/remote"
)

// Identity and branch of every tree created by Tree.
const (
	Identity      = "acme/prompts"
	DefaultBranch = "main"
	Root          = "prompts"
)

// Prompt is one seeded prompt directory. An empty Meta skips meta.yaml and an
// empty Body skips prompt.md.
type Prompt struct {
	Slug string
	Meta string
	Body string
}

// Tree returns an in-memory tree whose default branch holds prompts.
func Tree(t *testing.T, prompts ...Prompt) *remote.Memory {
	t.Helper()
	tree := remote.NewMemory(Identity, DefaultBranch)
	if len(prompts) > 0 {
		Seed(t, tree, "seed prompts", prompts...)
	}
	return tree
}

// Seed commits prompts to the default branch of tree and returns the revision.
func Seed(t *testing.T, tree *remote.Memory, message string, prompts ...Prompt) string {
	t.Helper()
	files := make(map[string]string, 2*len(prompts))
	for _, p := range prompts {
		dir := path.Join(Root, p.Slug)
		if p.Meta != "" {
			files[path.Join(dir, "meta.yaml")] = p.Meta
		}
		if p.Body != "" {
			files[path.Join(dir, "prompt.md")] = p.Body
		}
	}
	return tree.Seed(message, files)
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Sample returns three prompts with distinct tags, sorted by slug.
func Sample() []Prompt {
	return []Prompt{
		{
			Slug: "alpha",
			Meta: "title: Alpha Greeting\ntags: [welcome, email]\nuseCases: [onboarding]\nlanguage: en\n",
			Body: "Say hello to the new user.",
		},
		{
			Slug: "bravo",
			Meta: "title: Bravo Refund\ntags: [support, email]\nlanguage: en\n",
			Body: "Apologise and explain the refund policy.",
		},
		{
			Slug: "charlie",
			Meta: "title: Charlie Summary\ntags: [support]\nlanguage: fr\n",
			Body: "Summarise the ticket thread.",
		},
	}
}
