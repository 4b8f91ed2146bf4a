package processor

import (
	"context"
	"fmt"
	"log/slog"

	errs "codeforge/src/errors"
	"codeforge/src/generator"
	"codeforge/src/logging"
	"codeforge/src/model"
	"codeforge/src/notifier"
	"codeforge/src/publisher"
	"codeforge/src/validation"
)

// Collaborator contracts. The processor owns the request lifecycle and
// drives these in sequence; each is injected at construction so tests can
// substitute fakes.

type Store interface {
	SaveTask(ctx context.Context, req *model.TaskRequest) error
	SaveDeployment(ctx context.Context, dep *model.Deployment) error
	GetDeployment(ctx context.Context, email, taskID string, round int) (*model.Deployment, bool, error)
}

type Generator interface {
	Generate(ctx context.Context, brief string, checks []string, attachments []model.Attachment) (html, readme string, err error)
	Revise(ctx context.Context, existingHTML, existingReadme, newBrief string, newChecks []string, newAttachments []model.Attachment) (html, readme string, err error)
}

type Publisher interface {
	Publish(ctx context.Context, taskID string, files []publisher.File, isUpdate bool) (publisher.Deployed, error)
	RepoFiles(ctx context.Context, taskID string) (html, readme string, found bool, err error)
}

type Notifier interface {
	Notify(ctx context.Context, evaluationURL string, payload notifier.Payload) bool
}

// Result is the structured outcome returned to the transport layer. Either
// all deployment fields are populated (success) or none are (failure).
type Result struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Round     int    `json:"round"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// Processor sequences validate → persist → generate → check → publish →
// record → notify for one request. Stateless between requests; safe for
// concurrent use as long as its collaborators are.
type Processor struct {
	store     Store
	generator Generator
	publisher Publisher
	notifier  Notifier
}

func New(store Store, generator Generator, pub Publisher, n Notifier) *Processor {
	return &Processor{
		store:     store,
		generator: generator,
		publisher: pub,
		notifier:  n,
	}
}

// Process handles one request end to end. Every failure comes back as a
// coded error with a human-readable message; nothing panics through here.
func (p *Processor) Process(ctx context.Context, req *model.TaskRequest) (Result, error) {
	logging.Log(fmt.Sprintf("Processing request for %s - task %s, round %d", req.Email, req.Task, req.Round), slog.LevelInfo)

	// Validation short-circuits before any persistence or remote call.
	if err := validation.CheckRequest(req); err != nil {
		return Result{}, err
	}

	if err := p.store.SaveTask(ctx, req); err != nil {
		return Result{}, err
	}

	switch req.Round {
	case 1:
		return p.build(ctx, req)
	case 2:
		return p.revise(ctx, req)
	default:
		// Unreachable after validation.
		return Result{}, errs.New(errs.ValidationFailed, "invalid round number")
	}
}

// build handles round 1: fresh generation, create-mode publish.
func (p *Processor) build(ctx context.Context, req *model.TaskRequest) (Result, error) {
	logging.Log("Starting round 1: BUILD", slog.LevelInfo)

	html, readme, err := p.generator.Generate(ctx, req.Brief, req.Checks, req.Attachments)
	if err != nil {
		return Result{}, err
	}

	return p.deploy(ctx, req, html, readme, false)
}

// revise handles round 2: load the round-1 baseline, amend it, update-mode
// publish. The store is the primary baseline source; the repository itself
// is the fallback when the store has no round-1 row.
func (p *Processor) revise(ctx context.Context, req *model.TaskRequest) (Result, error) {
	logging.Log("Starting round 2: REVISE", slog.LevelInfo)

	existingHTML, existingReadme, err := p.baseline(ctx, req)
	if err != nil {
		return Result{}, err
	}

	html, readme, err := p.generator.Revise(ctx, existingHTML, existingReadme, req.Brief, req.Checks, req.Attachments)
	if err != nil {
		return Result{}, err
	}

	return p.deploy(ctx, req, html, readme, true)
}

func (p *Processor) baseline(ctx context.Context, req *model.TaskRequest) (html, readme string, err error) {
	dep, found, err := p.store.GetDeployment(ctx, req.Email, req.Task, 1)
	if err != nil {
		return "", "", err
	}
	if found {
		return dep.Snapshot.HTML, dep.Snapshot.Readme, nil
	}

	logging.Log("Round 1 deployment not in store, reading files from repository...", slog.LevelWarn)
	html, readme, found, err = p.publisher.RepoFiles(ctx, req.Task)
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", "", errs.WithFields(
			errs.New(errs.NotFound, "round 1 deployment not found in store or repository"),
			errs.Fields{"task": req.Task})
	}
	return html, readme, nil
}

// deploy is the shared tail of both rounds: structure check, publish,
// record, notify. Notification failure never demotes a success.
func (p *Processor) deploy(ctx context.Context, req *model.TaskRequest, html, readme string, isUpdate bool) (Result, error) {
	if !generator.ValidStructure(html) {
		return Result{}, errs.New(errs.StructureInvalid, "generated HTML has invalid structure")
	}

	deployed, err := p.publisher.Publish(ctx, req.Task, []publisher.File{
		{Path: "index.html", Content: html},
		{Path: "README.md", Content: readme},
	}, isUpdate)
	if err != nil {
		return Result{}, err
	}

	dep := &model.Deployment{
		Email:     req.Email,
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		RepoURL:   deployed.RepoURL,
		CommitSHA: deployed.CommitSHA,
		PagesURL:  deployed.PagesURL,
		Snapshot:  model.CodeSnapshot{HTML: html, Readme: readme},
	}
	if err := p.store.SaveDeployment(ctx, dep); err != nil {
		return Result{}, err
	}

	notified := p.notifier.Notify(ctx, req.EvaluationURL, notifier.Payload{
		Email:     req.Email,
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		RepoURL:   deployed.RepoURL,
		CommitSHA: deployed.CommitSHA,
		PagesURL:  deployed.PagesURL,
	})
	if !notified {
		logging.Log("Evaluation API notification failed (deployment succeeded)", slog.LevelWarn)
	}

	logging.Log(fmt.Sprintf("Round %d completed successfully for task %s", req.Round, req.Task), slog.LevelInfo)

	return Result{
		Status:    "success",
		Message:   fmt.Sprintf("Code generated and deployed successfully to repository: %s", deployed.RepoURL),
		Round:     req.Round,
		RepoURL:   deployed.RepoURL,
		CommitSHA: deployed.CommitSHA,
		PagesURL:  deployed.PagesURL,
	}, nil
}
