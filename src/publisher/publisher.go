// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"

	errs "codeforge/src/errors"
	"codeforge/src/logging"
)

const defaultBranch = "main"

// File is one path/content pair to commit. Order matters: each file is
// committed independently and the reported SHA is the last file's commit.
type File struct {
	Path    string
	Content string
}

// Deployed describes where a publish landed.
type Deployed struct {
	RepoURL   string
	CommitSHA string
	PagesURL  string
}

// Publisher owns no repository state itself; it mutates GitHub-owned state
// on behalf of the orchestrator. Safe for concurrent use.
type Publisher struct {
	client *github.Client
	owner  string
}

// New creates a Publisher authenticated with a personal access token.
func New(token, username string) (*Publisher, error) {
	if token == "" || username == "" {
		return nil, errs.New(errs.InvalidInput, "GITHUB_TOKEN or GITHUB_USERNAME is not set")
	}
	return &Publisher{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  username,
	}, nil
}

// NewWithClient wires an externally constructed client. Used by tests to
// point the publisher at a fake API backend.
func NewWithClient(client *github.Client, owner string) *Publisher {
	return &Publisher{client: client, owner: owner}
}

// RepoName derives the deterministic repository name for a task. Stable
// across rounds so that a revise re-targets the round-1 repository.
func RepoName(taskID string) string {
	return "llm-app-" + strings.ToLower(taskID)
}

// Publish ensures the task's repository exists, writes the given files on
// main, sets the default branch and enables Pages. Each non-empty file is
// committed independently; a mid-loop failure leaves earlier files written.
func (p *Publisher) Publish(ctx context.Context, taskID string, files []File, isUpdate bool) (Deployed, error) {
	repoName := RepoName(taskID)

	repo, err := p.ensureRepo(ctx, taskID, repoName)
	if err != nil {
		return Deployed{}, err
	}

	commitSHA := ""
	var written []string
	for _, f := range files {
		if strings.TrimSpace(f.Content) == "" {
			logging.Log("Skipping empty file: "+f.Path, slog.LevelInfo)
			continue
		}

		sha, err := p.writeFile(ctx, repoName, taskID, f)
		if err != nil {
			if len(written) > 0 {
				logging.Log(fmt.Sprintf("Publish aborted mid-loop for %s; repository holds partial update: %v",
					repoName, written), slog.LevelWarn)
			}
			return Deployed{}, err
		}
		written = append(written, f.Path)
		commitSHA = sha
	}

	pagesURL, err := p.enablePages(ctx, repoName)
	if err != nil {
		return Deployed{}, err
	}

	return Deployed{
		RepoURL:   repo.GetHTMLURL(),
		CommitSHA: commitSHA,
		PagesURL:  pagesURL,
	}, nil
}

// ensureRepo creates the public repository, falling back to the existing
// one when the name is already taken. Create-or-get, not an error path.
func (p *Publisher) ensureRepo(ctx context.Context, taskID, repoName string) (*github.Repository, error) {
	repo, _, err := p.client.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(repoName),
		Description: github.String("LLM generated code for task " + taskID),
		Private:     github.Bool(false),
	})
	if err == nil {
		logging.Log("Created repository: "+repoName, slog.LevelInfo)
		return repo, nil
	}

	if !isNameTaken(err) {
		return nil, errs.WithFields(
			errs.Wrap(err, errs.PublishFailed, "repository create failed"),
			errs.Fields{"repo": repoName})
	}

	repo, _, err = p.client.Repositories.Get(ctx, p.owner, repoName)
	if err != nil {
		return nil, errs.WithFields(
			errs.Wrap(err, errs.PublishFailed, "repository exists but fetch failed"),
			errs.Fields{"repo": repoName})
	}
	logging.Log("Repository already exists: "+repoName+". Updating files...", slog.LevelInfo)
	return repo, nil
}

// writeFile probes the path on main and creates or updates accordingly,
// supplying the current blob SHA on update per the API's concurrency contract.
func (p *Publisher) writeFile(ctx context.Context, repoName, taskID string, f File) (string, error) {
	sha, found, err := p.probeFile(ctx, repoName, f.Path)
	if err != nil {
		return "", err
	}

	opts := &github.RepositoryContentFileOptions{
		Content: []byte(f.Content),
		Branch:  github.String(defaultBranch),
	}

	var resp *github.RepositoryContentResponse
	if found {
		opts.Message = github.String(fmt.Sprintf("Update %s for task %s", f.Path, taskID))
		opts.SHA = github.String(sha)
		resp, _, err = p.client.Repositories.UpdateFile(ctx, p.owner, repoName, f.Path, opts)
	} else {
		opts.Message = github.String(fmt.Sprintf("Initial commit of %s for task %s", f.Path, taskID))
		resp, _, err = p.client.Repositories.CreateFile(ctx, p.owner, repoName, f.Path, opts)
	}
	if err != nil {
		return "", errs.WithFields(
			errs.Wrap(err, errs.PublishFailed, "file commit failed"),
			errs.Fields{"repo": repoName, "path": f.Path})
	}

	commitSHA := resp.Commit.GetSHA()
	logging.Log(fmt.Sprintf("Committed %s to %s. SHA: %.7s", f.Path, repoName, commitSHA), slog.LevelInfo)
	return commitSHA, nil
}

// probeFile reports whether a file exists on the default branch. A 404 is a
// normal outcome, not an error.
func (p *Publisher) probeFile(ctx context.Context, repoName, path string) (sha string, found bool, err error) {
	content, _, resp, err := p.client.Repositories.GetContents(ctx, p.owner, repoName, path,
		&github.RepositoryContentGetOptions{Ref: defaultBranch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, errs.WithFields(
			errs.Wrap(err, errs.PublishFailed, "file existence probe failed"),
			errs.Fields{"repo": repoName, "path": path})
	}
	if content == nil {
		return "", false, nil
	}
	return content.GetSHA(), true, nil
}

// enablePages sets the default branch and switches Pages on. Branch and
// Pages setup failures are fatal; the post-enable status lookup is not.
func (p *Publisher) enablePages(ctx context.Context, repoName string) (string, error) {
	pagesURL := fmt.Sprintf("https://%s.github.io/%s/", p.owner, repoName)

	_, _, err := p.client.Repositories.Edit(ctx, p.owner, repoName, &github.Repository{
		DefaultBranch: github.String(defaultBranch),
	})
	if err != nil {
		return "", errs.WithFields(
			errs.Wrap(err, errs.PublishFailed, "setting default branch failed"),
			errs.Fields{"repo": repoName})
	}

	_, resp, err := p.client.Repositories.EnablePages(ctx, p.owner, repoName, &github.Pages{
		Source: &github.PagesSource{
			Branch: github.String(defaultBranch),
			Path:   github.String("/"),
		},
	})
	if err != nil && !isAlreadyEnabled(resp) {
		return "", errs.WithFields(
			errs.Wrap(err, errs.PublishFailed, "enabling Pages failed"),
			errs.Fields{"repo": repoName})
	}

	pages, _, err := p.client.Repositories.GetPagesInfo(ctx, p.owner, repoName)
	if err != nil {
		logging.Log(fmt.Sprintf("Pages status lookup failed for %s; returning conventional URL unconfirmed: %v",
			repoName, err), slog.LevelWarn)
		return pagesURL, nil
	}
	if url := pages.GetHTMLURL(); url != "" {
		return url, nil
	}
	return pagesURL, nil
}

// RepoFiles reads the published artifact back from the repository. Used as
// the revise-path fallback when the store has no round-1 snapshot.
func (p *Publisher) RepoFiles(ctx context.Context, taskID string) (html, readme string, found bool, err error) {
	repoName := RepoName(taskID)

	html, htmlFound, err := p.fileContent(ctx, repoName, "index.html")
	if err != nil {
		return "", "", false, err
	}
	readme, readmeFound, err := p.fileContent(ctx, repoName, "README.md")
	if err != nil {
		return "", "", false, err
	}

	if !htmlFound && !readmeFound {
		return "", "", false, nil
	}
	return html, readme, true, nil
}

func (p *Publisher) fileContent(ctx context.Context, repoName, path string) (string, bool, error) {
	content, _, resp, err := p.client.Repositories.GetContents(ctx, p.owner, repoName, path,
		&github.RepositoryContentGetOptions{Ref: defaultBranch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, errs.WithFields(
			errs.Wrap(err, errs.PublishFailed, "file fetch failed"),
			errs.Fields{"repo": repoName, "path": path})
	}
	if content == nil {
		return "", false, nil
	}

	text, err := content.GetContent()
	if err != nil {
		return "", false, errs.WithFields(
			errs.Wrap(err, errs.PublishFailed, "file decode failed"),
			errs.Fields{"repo": repoName, "path": path})
	}
	return text, true, nil
}

func isNameTaken(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) {
		return false
	}
	if ghErr.Response == nil || ghErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	for _, e := range ghErr.Errors {
		if strings.Contains(e.Message, "name already exists") {
			return true
		}
	}
	return false
}

func isAlreadyEnabled(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusConflict
}
