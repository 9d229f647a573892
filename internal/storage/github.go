package storage

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/abduss/stopsurvey/internal/config"
)

// NewGitHubClient builds a token-authenticated GitHub client. BaseURL switches to a
// GitHub Enterprise API endpoint.
func NewGitHubClient(cfg config.GitHubConfig) (*github.Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github backend needs STOPSURVEY_GITHUB_OWNER and STOPSURVEY_GITHUB_REPO")
	}

	client := github.NewClient(nil)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		enterprise, err := client.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
		client = enterprise
	}
	return client, nil
}
