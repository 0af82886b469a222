package internal

import (
	"net/http"

	"github.com/starford/promptvault/internal/remote"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	tree       remote.Tree
	httpClient *http.Client
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithTree uses tree instead of the backend named in the configuration.
func WithTree(tree remote.Tree) Option {
	return func(a *application) {
		a.tree = tree
	}
}

// WithHTTPClient sets the client used to reach the GitHub API.
func WithHTTPClient(c *http.Client) Option {
	return func(a *application) {
		a.httpClient = c
	}
}
