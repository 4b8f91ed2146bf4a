package processor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "codeforge/src/errors"
	"codeforge/src/model"
	"codeforge/src/notifier"
	"codeforge/src/publisher"
)

const validHTML = "<!DOCTYPE html>\n<html><body><div id=\"app\"></div></body></html>"

type fakeStore struct {
	tasks       []*model.TaskRequest
	deployments []*model.Deployment
	saveTaskErr error
	lookupErr   error
}

func (f *fakeStore) SaveTask(_ context.Context, req *model.TaskRequest) error {
	if f.saveTaskErr != nil {
		return f.saveTaskErr
	}
	f.tasks = append(f.tasks, req)
	return nil
}

func (f *fakeStore) SaveDeployment(_ context.Context, dep *model.Deployment) error {
	f.deployments = append(f.deployments, dep)
	return nil
}

func (f *fakeStore) GetDeployment(_ context.Context, email, taskID string, round int) (*model.Deployment, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	for _, d := range f.deployments {
		if d.Email == email && d.Task == taskID && d.Round == round {
			return d, true, nil
		}
	}
	return nil, false, nil
}

type fakeGenerator struct {
	html, readme   string
	err            error
	generateCalls  int
	reviseCalls    int
	reviseBaseHTML string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, _ []string, _ []model.Attachment) (string, string, error) {
	f.generateCalls++
	return f.html, f.readme, f.err
}

func (f *fakeGenerator) Revise(_ context.Context, existingHTML, _, _ string, _ []string, _ []model.Attachment) (string, string, error) {
	f.reviseCalls++
	f.reviseBaseHTML = existingHTML
	return f.html, f.readme, f.err
}

type fakePublisher struct {
	calls     int
	lastFiles []publisher.File
	isUpdate  bool
	err       error

	repoHTML   string
	repoReadme string
	repoFound  bool
}

func (f *fakePublisher) Publish(_ context.Context, taskID string, files []publisher.File, isUpdate bool) (publisher.Deployed, error) {
	f.calls++
	f.lastFiles = files
	f.isUpdate = isUpdate
	if f.err != nil {
		return publisher.Deployed{}, f.err
	}
	repo := publisher.RepoName(taskID)
	return publisher.Deployed{
		RepoURL:   "https://github.com/acct/" + repo,
		CommitSHA: "commit1",
		PagesURL:  "https://acct.github.io/" + repo + "/",
	}, nil
}

func (f *fakePublisher) RepoFiles(_ context.Context, _ string) (string, string, bool, error) {
	return f.repoHTML, f.repoReadme, f.repoFound, nil
}

type fakeNotifier struct {
	calls   int
	lastURL string
	last    notifier.Payload
	ok      bool
}

func (f *fakeNotifier) Notify(_ context.Context, url string, payload notifier.Payload) bool {
	f.calls++
	f.lastURL = url
	f.last = payload
	return f.ok
}

type fixture struct {
	store     *fakeStore
	generator *fakeGenerator
	publisher *fakePublisher
	notifier  *fakeNotifier
	processor *Processor
}

func newFixture() *fixture {
	f := &fixture{
		store:     &fakeStore{},
		generator: &fakeGenerator{html: validHTML, readme: "# App"},
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{ok: true},
	}
	f.processor = New(f.store, f.generator, f.publisher, f.notifier)
	return f
}

func request(round int) *model.TaskRequest {
	return &model.TaskRequest{
		Email:         "student@example.com",
		Secret:        "s3cret",
		Task:          "abc",
		Round:         round,
		Nonce:         fmt.Sprintf("nonce-%d", round),
		Brief:         "build a todo app",
		Checks:        []string{"has an input field"},
		EvaluationURL: "https://eval.example.com/notify",
	}
}

func TestBuildRoundOne(t *testing.T) {
	f := newFixture()

	res, err := f.processor.Process(context.Background(), request(1))
	require.NoError(t, err)

	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 1, res.Round)
	assert.Equal(t, "https://github.com/acct/llm-app-abc", res.RepoURL)
	assert.Equal(t, "commit1", res.CommitSHA)
	assert.Equal(t, "https://acct.github.io/llm-app-abc/", res.PagesURL)

	assert.Equal(t, 1, f.generator.generateCalls)
	assert.Zero(t, f.generator.reviseCalls)
	assert.False(t, f.publisher.isUpdate)

	// index.html + README.md, in that order.
	require.Len(t, f.publisher.lastFiles, 2)
	assert.Equal(t, "index.html", f.publisher.lastFiles[0].Path)
	assert.Equal(t, "README.md", f.publisher.lastFiles[1].Path)

	// Deployment record carries the full snapshot.
	require.Len(t, f.store.deployments, 1)
	assert.Equal(t, validHTML, f.store.deployments[0].Snapshot.HTML)

	// Notification carries all deployment fields.
	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, "https://eval.example.com/notify", f.notifier.lastURL)
	assert.Equal(t, "commit1", f.notifier.last.CommitSHA)
}

func TestInvalidRoundShortCircuits(t *testing.T) {
	f := newFixture()

	_, err := f.processor.Process(context.Background(), request(3))
	require.Error(t, err)
	assert.Equal(t, errs.ValidationFailed, errs.CodeOf(err))

	// No store writes, no remote calls.
	assert.Empty(t, f.store.tasks)
	assert.Zero(t, f.generator.generateCalls)
	assert.Zero(t, f.publisher.calls)
	assert.Zero(t, f.notifier.calls)
}

func TestMissingFieldsShortCircuit(t *testing.T) {
	f := newFixture()
	req := request(1)
	req.Brief = ""

	_, err := f.processor.Process(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, errs.ValidationFailed, errs.CodeOf(err))
	assert.Empty(t, f.store.tasks)
}

func TestGenerationFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.generator.err = errs.New(errs.GenerationFailed, "received empty response from model")

	_, err := f.processor.Process(context.Background(), request(1))
	require.Error(t, err)
	assert.Equal(t, errs.GenerationFailed, errs.CodeOf(err))

	// Task was persisted first; no repository mutation was attempted.
	assert.Len(t, f.store.tasks, 1)
	assert.Zero(t, f.publisher.calls)
	assert.Zero(t, f.notifier.calls)
}

func TestInvalidStructureAbortsBeforePublish(t *testing.T) {
	f := newFixture()
	f.generator.html = "<!DOCTYPE html><html><body>truncated"

	_, err := f.processor.Process(context.Background(), request(1))
	require.Error(t, err)
	assert.Equal(t, errs.StructureInvalid, errs.CodeOf(err))
	assert.Zero(t, f.publisher.calls)
	assert.Empty(t, f.store.deployments)
}

func TestPublishFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.publisher.err = errs.New(errs.PublishFailed, "repository create failed")

	_, err := f.processor.Process(context.Background(), request(1))
	require.Error(t, err)
	assert.Equal(t, errs.PublishFailed, errs.CodeOf(err))
	assert.Empty(t, f.store.deployments)
	assert.Zero(t, f.notifier.calls)
}

func TestNotificationFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture()
	f.notifier.ok = false

	res, err := f.processor.Process(context.Background(), request(1))
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.NotEmpty(t, res.CommitSHA)
	assert.NotEmpty(t, res.PagesURL)
}

func TestReviseUsesStoredBaseline(t *testing.T) {
	f := newFixture()
	f.store.deployments = append(f.store.deployments, &model.Deployment{
		Email:    "student@example.com",
		Task:     "abc",
		Round:    1,
		Snapshot: model.CodeSnapshot{HTML: validHTML, Readme: "# App"},
	})

	res, err := f.processor.Process(context.Background(), request(2))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Round)
	assert.Equal(t, 1, f.generator.reviseCalls)
	assert.Zero(t, f.generator.generateCalls)
	assert.Equal(t, validHTML, f.generator.reviseBaseHTML)
	assert.True(t, f.publisher.isUpdate)
}

func TestReviseFallsBackToRepository(t *testing.T) {
	f := newFixture()
	f.publisher.repoHTML = validHTML
	f.publisher.repoReadme = "# App"
	f.publisher.repoFound = true

	res, err := f.processor.Process(context.Background(), request(2))
	require.NoError(t, err)

	assert.Equal(t, "success", res.Status)
	assert.Equal(t, validHTML, f.generator.reviseBaseHTML)
}

func TestReviseWithoutBaselineIsNotFound(t *testing.T) {
	f := newFixture()
	f.publisher.repoFound = false

	_, err := f.processor.Process(context.Background(), request(2))
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
	assert.Zero(t, f.generator.reviseCalls)
	assert.Zero(t, f.publisher.calls)
}

func TestReviseKeysRoundOneSpecifically(t *testing.T) {
	f := newFixture()
	// Only a round-2 record exists; the baseline lookup must not use it.
	f.store.deployments = append(f.store.deployments, &model.Deployment{
		Email:    "student@example.com",
		Task:     "abc",
		Round:    2,
		Snapshot: model.CodeSnapshot{HTML: "<html>wrong</html>", Readme: ""},
	})
	f.publisher.repoFound = false

	_, err := f.processor.Process(context.Background(), request(2))
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestReviseStoreLookupErrorIsFatal(t *testing.T) {
	f := newFixture()
	f.store.lookupErr = errs.New(errs.StoreFailed, "deployment lookup failed")

	_, err := f.processor.Process(context.Background(), request(2))
	require.Error(t, err)
	assert.Equal(t, errs.StoreFailed, errs.CodeOf(err))
	assert.Zero(t, f.generator.reviseCalls)
}

func TestSaveTaskFailureIsFatal(t *testing.T) {
	f := newFixture()
	f.store.saveTaskErr = errs.New(errs.StoreFailed, "saving task failed")

	_, err := f.processor.Process(context.Background(), request(1))
	require.Error(t, err)
	assert.Equal(t, errs.StoreFailed, errs.CodeOf(err))
	assert.Zero(t, f.generator.generateCalls)
}
