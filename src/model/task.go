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

package model

import "time"

type RequestStatus string

const (
	RequestReceived  RequestStatus = "received"
	RequestValidated RequestStatus = "validated"
	RequestPersisted RequestStatus = "persisted"
	RequestGenerated RequestStatus = "generated"
	RequestChecked   RequestStatus = "structure_checked"
	RequestPublished RequestStatus = "published"
	RequestRecorded  RequestStatus = "deployment_persisted"
	RequestNotified  RequestStatus = "notified"
	RequestFailed    RequestStatus = "failed"
)

// Attachment is a caller-supplied file, carried as a self-contained data URI.
type Attachment struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required"`
}

// TaskRequest is the POST /generate-code request body.
type TaskRequest struct {
	Email         string       `json:"email" validate:"required"`
	Secret        string       `json:"secret" validate:"required"`
	Task          string       `json:"task" validate:"required"`
	Round         int          `json:"round" validate:"required,oneof=1 2"`
	Nonce         string       `json:"nonce" validate:"required"`
	Brief         string       `json:"brief" validate:"required"`
	Checks        []string     `json:"checks"`
	EvaluationURL string       `json:"evaluation_url" validate:"required,url"`
	Attachments   []Attachment `json:"attachments" validate:"dive"`
}

// CodeSnapshot is the generated artifact pair stored with a deployment so
// that round 2 can revise without re-fetching from GitHub.
type CodeSnapshot struct {
	HTML   string `json:"html"`
	Readme string `json:"readme"`
}

// Deployment records one successful round for (email, task, round).
// Rows are never mutated, only superseded by the next round's row.
type Deployment struct {
	Email     string       `json:"email"`
	Task      string       `json:"task"`
	Round     int          `json:"round"`
	Nonce     string       `json:"nonce"`
	RepoURL   string       `json:"repo_url"`
	CommitSHA string       `json:"commit_sha"`
	PagesURL  string       `json:"pages_url"`
	Snapshot  CodeSnapshot `json:"code_snapshot"`
	Created   *time.Time   `json:"created,omitempty"`
}
