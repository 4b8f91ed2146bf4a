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

package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	errs "codeforge/src/errors"
	"codeforge/src/logging"
	"codeforge/src/model"
)

const (
	DefaultModel = "claude-sonnet-4-5"

	maxOutputTokens = 16384
	temperature     = 0.2
)

// Generator produces application code through the Anthropic Messages API.
// Safe for concurrent use; the underlying client carries no request state.
type Generator struct {
	client *anthropic.Client
	model  anthropic.Model
}

// New creates a Generator. The API key is required; the model falls back
// to DefaultModel when empty.
func New(apiKey, modelName string, opts ...option.RequestOption) (*Generator, error) {
	if apiKey == "" {
		return nil, errs.New(errs.InvalidInput, "ANTHROPIC_API_KEY is not set")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(clientOpts...)

	return &Generator{
		client: &client,
		model:  anthropic.Model(modelName),
	}, nil
}

// Generate produces a fresh single-file HTML application and README for the
// given brief. One attempt per artifact, no retries.
func (g *Generator) Generate(ctx context.Context, brief string, checks []string, attachments []model.Attachment) (html, readme string, err error) {
	html, err = g.complete(ctx, buildAppPrompt(brief, checks, attachments), "html")
	if err != nil {
		return "", "", err
	}

	readme, err = g.complete(ctx, buildReadmePrompt(brief, checks), "markdown")
	if err != nil {
		return "", "", err
	}

	return html, readme, nil
}

// Revise produces updated HTML and README from the round-1 baseline plus the
// new requirements. The prompts embed the baseline verbatim and forbid
// discarding working functionality.
func (g *Generator) Revise(ctx context.Context, existingHTML, existingReadme, newBrief string, newChecks []string, newAttachments []model.Attachment) (html, readme string, err error) {
	html, err = g.complete(ctx, revisionAppPrompt(existingHTML, newBrief, newChecks, newAttachments), "html")
	if err != nil {
		return "", "", err
	}

	readme, err = g.complete(ctx, revisionReadmePrompt(existingReadme, newBrief, newChecks), "markdown")
	if err != nil {
		return "", "", err
	}

	return html, readme, nil
}

func (g *Generator) complete(ctx context.Context, prompt, lang string) (string, error) {
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: g.model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens:   maxOutputTokens,
		Temperature: anthropic.Float(temperature),
	})

	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			logging.Log(fmt.Sprintf("Anthropic API error: status code %d", apiErr.StatusCode), slog.LevelError)
		}
		return "", errs.WithFields(
			errs.Wrap(err, errs.GenerationFailed, "model request failed"),
			errs.Fields{"model": string(g.model)})
	}

	if message == nil || len(message.Content) == 0 {
		return "", errs.New(errs.GenerationFailed, "received empty response from model")
	}

	var responseText string
	if block := message.Content[0]; block.Type == "text" {
		responseText = block.Text
	}

	logging.Log(fmt.Sprintf("Model response: %d prompt tokens, %d completion tokens",
		message.Usage.InputTokens, message.Usage.OutputTokens), slog.LevelDebug)

	code := ExtractFenced(responseText, lang)
	if code == "" {
		return "", errs.WithFields(
			errs.New(errs.GenerationFailed, "model response contained no code block"),
			errs.Fields{"lang": lang})
	}
	return code, nil
}

// ExtractFenced pulls the body of the first ```<lang> fenced block out of a
// model response, discarding any conversational wrapper text. A response
// that is already bare code (no fence) is returned trimmed as-is.
func ExtractFenced(response, lang string) string {
	text := strings.TrimSpace(response)
	if text == "" {
		return ""
	}

	marker := "```" + lang
	start := strings.Index(text, marker)
	if start < 0 {
		// Some responses fence without a language tag.
		if strings.HasPrefix(text, "```") {
			start = 0
			marker = "```"
		} else {
			return text
		}
	}

	body := text[start+len(marker):]
	body = strings.TrimPrefix(body, "\n")

	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
