package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/go-github/v66/github"
)

// GitHubConfig locates the repository that holds blobs.
type GitHubConfig struct {
	Owner  string
	Repo   string
	Branch string
	// Prefix is a directory inside the repository.
	Prefix string
	// Author overrides the commit author; the token's user is used when empty.
	AuthorName  string
	AuthorEmail string
}

// GitHub stores blobs as files in a repository. The blob SHA is the version marker.
type GitHub struct {
	client *github.Client
	cfg    GitHubConfig
}

// NewGitHub constructs a repository-backed blob store.
func NewGitHub(client *github.Client, cfg GitHubConfig) *GitHub {
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &GitHub{client: client, cfg: cfg}
}

func (g *GitHub) Get(ctx context.Context, key string) (Blob, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.cfg.Owner, g.cfg.Repo, g.path(key), g.refOptions())
	if err != nil {
		return Blob{}, classifyGitHub(resp, err)
	}
	if file == nil {
		return Blob{}, fmt.Errorf("%w: %s is a directory", ErrRejected, key)
	}

	// Files over 1 MB come back without inline content.
	if file.GetEncoding() == "none" {
		data, err := g.download(ctx, key)
		if err != nil {
			return Blob{}, err
		}
		return Blob{Data: data, Version: file.GetSHA()}, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return Blob{}, fmt.Errorf("%w: decode %s: %v", ErrRejected, key, err)
	}
	return Blob{Data: []byte(content), Version: file.GetSHA()}, nil
}

func (g *GitHub) Put(ctx context.Context, key string, data []byte, _ string, version string) (Reference, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("survey: update " + key),
		Content: data,
	}
	if g.cfg.Branch != "" {
		opts.Branch = github.String(g.cfg.Branch)
	}
	if g.cfg.AuthorName != "" && g.cfg.AuthorEmail != "" {
		opts.Author = &github.CommitAuthor{Name: github.String(g.cfg.AuthorName), Email: github.String(g.cfg.AuthorEmail)}
	}

	var (
		res  *github.RepositoryContentResponse
		resp *github.Response
		err  error
	)
	if version == "" {
		res, resp, err = g.client.Repositories.CreateFile(ctx, g.cfg.Owner, g.cfg.Repo, g.path(key), opts)
	} else {
		opts.SHA = github.String(version)
		res, resp, err = g.client.Repositories.UpdateFile(ctx, g.cfg.Owner, g.cfg.Repo, g.path(key), opts)
	}
	if err != nil {
		// Creating over an existing file fails validation because no sha was supplied.
		if version == "" && statusOf(resp, err) == http.StatusUnprocessableEntity {
			return Reference{}, fmt.Errorf("%w: %s already exists: %v", ErrStaleVersion, key, err)
		}
		return Reference{}, classifyGitHub(resp, err)
	}

	ref := Reference{Key: key}
	if res != nil && res.Content != nil {
		ref.ID = res.Content.GetSHA()
		ref.URL = res.Content.GetHTMLURL()
	}
	return ref, nil
}

func (g *GitHub) Ping(ctx context.Context) error {
	_, resp, err := g.client.Repositories.Get(ctx, g.cfg.Owner, g.cfg.Repo)
	if err != nil {
		return classifyGitHub(resp, err)
	}
	return nil
}

func (g *GitHub) download(ctx context.Context, key string) ([]byte, error) {
	rc, resp, err := g.client.Repositories.DownloadContents(ctx, g.cfg.Owner, g.cfg.Repo, g.path(key), g.refOptions())
	if err != nil {
		return nil, classifyGitHub(resp, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	return data, nil
}

func (g *GitHub) path(key string) string {
	if g.cfg.Prefix == "" {
		return key
	}
	return path.Join(g.cfg.Prefix, key)
}

func (g *GitHub) refOptions() *github.RepositoryContentGetOptions {
	if g.cfg.Branch == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: g.cfg.Branch}
}

func statusOf(resp *github.Response, err error) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

func classifyGitHub(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ClassifyStatus(statusOf(resp, err), err)
}
