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

package store

import (
	"context"
	"database/sql"
	"encoding/json"

	errs "codeforge/src/errors"
	"codeforge/src/model"
)

// Store persists task submissions and deployment records in Postgres.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS TASKS (
			id             SERIAL PRIMARY KEY,
			email          TEXT NOT NULL,
			task           TEXT NOT NULL,
			round          INT NOT NULL,
			nonce          TEXT NOT NULL,
			brief          TEXT NOT NULL,
			checks         JSONB NOT NULL DEFAULT '[]',
			evaluation_url TEXT NOT NULL,
			received       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS DEPLOYMENTS (
			id         SERIAL PRIMARY KEY,
			email      TEXT NOT NULL,
			task       TEXT NOT NULL,
			round      INT NOT NULL,
			nonce      TEXT NOT NULL,
			repo_url   TEXT NOT NULL,
			commit_sha TEXT NOT NULL,
			pages_url  TEXT NOT NULL,
			html       TEXT NOT NULL,
			readme     TEXT NOT NULL,
			created    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS deployments_key
			ON DEPLOYMENTS (email, task, round);
	`)
	if err != nil {
		return errs.Wrap(err, errs.StoreFailed, "schema setup failed")
	}
	return nil
}

// SaveTask records an inbound submission before any remote call is made.
func (s *Store) SaveTask(ctx context.Context, req *model.TaskRequest) error {
	checks, err := json.Marshal(req.Checks)
	if err != nil {
		return errs.Wrap(err, errs.StoreFailed, "encoding checks failed")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO TASKS (email, task, round, nonce, brief, checks, evaluation_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.Email, req.Task, req.Round, req.Nonce, req.Brief, checks, req.EvaluationURL)
	if err != nil {
		return errs.Wrap(err, errs.StoreFailed, "saving task failed")
	}
	return nil
}

// SaveDeployment records one successful round, snapshot included.
func (s *Store) SaveDeployment(ctx context.Context, dep *model.Deployment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO DEPLOYMENTS (email, task, round, nonce, repo_url, commit_sha, pages_url, html, readme)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		dep.Email, dep.Task, dep.Round, dep.Nonce,
		dep.RepoURL, dep.CommitSHA, dep.PagesURL,
		dep.Snapshot.HTML, dep.Snapshot.Readme)
	if err != nil {
		return errs.Wrap(err, errs.StoreFailed, "saving deployment failed")
	}
	return nil
}

// GetDeployment looks up the most recent deployment for an exact
// (email, task, round) key. Absence is a normal outcome, not an error.
func (s *Store) GetDeployment(ctx context.Context, email, taskID string, round int) (*model.Deployment, bool, error) {
	dep := &model.Deployment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT email, task, round, nonce, repo_url, commit_sha, pages_url, html, readme, created
		FROM DEPLOYMENTS
		WHERE email = $1 AND task = $2 AND round = $3
		ORDER BY created DESC
		LIMIT 1`,
		email, taskID, round).Scan(
		&dep.Email, &dep.Task, &dep.Round, &dep.Nonce,
		&dep.RepoURL, &dep.CommitSHA, &dep.PagesURL,
		&dep.Snapshot.HTML, &dep.Snapshot.Readme, &dep.Created)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(err, errs.StoreFailed, "deployment lookup failed")
	}
	return dep, true, nil
}
