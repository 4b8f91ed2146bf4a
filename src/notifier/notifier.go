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

package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"codeforge/src/logging"
)

// The evaluation endpoint may itself run a slow grading process, so the
// callback timeout is measured in minutes, not seconds.
const DefaultTimeout = 5 * time.Minute

// Payload is the completion message posted to the evaluation URL.
type Payload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// Notifier delivers best-effort completion callbacks.
type Notifier struct {
	client *http.Client
}

func New(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
	}
}

// Notify posts the payload to the evaluation URL. Delivery failure is
// logged and reported as false; it never becomes an error, because the
// deployment has already succeeded by the time this runs.
func (n *Notifier) Notify(ctx context.Context, evaluationURL string, payload Payload) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Log(fmt.Sprintf("Notification payload encode failed: %v", err), slog.LevelWarn)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, evaluationURL, bytes.NewReader(body))
	if err != nil {
		logging.Log(fmt.Sprintf("Notification request build failed: %v", err), slog.LevelWarn)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logging.Log(fmt.Sprintf("Notification to %s failed: %v", evaluationURL, err), slog.LevelWarn)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Log(fmt.Sprintf("Notification to %s returned status %d", evaluationURL, resp.StatusCode), slog.LevelWarn)
		return false
	}

	logging.Log("Evaluation API notified successfully", slog.LevelInfo)
	return true
}
