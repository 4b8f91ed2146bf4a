package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "codeforge/src/errors"
	"codeforge/src/model"
)

func validRequest() *model.TaskRequest {
	return &model.TaskRequest{
		Email:         "student@example.com",
		Secret:        "s3cret",
		Task:          "abc",
		Round:         1,
		Nonce:         "nonce-1",
		Brief:         "build a todo app",
		Checks:        []string{"has an input field"},
		EvaluationURL: "https://eval.example.com/notify",
	}
}

func TestCheckRequestValid(t *testing.T) {
	assert.NoError(t, CheckRequest(validRequest()))
}

func TestCheckRequestNil(t *testing.T) {
	err := CheckRequest(nil)
	require.Error(t, err)
	assert.Equal(t, errs.ValidationFailed, errs.CodeOf(err))
}

func TestCheckRequestMissingFields(t *testing.T) {
	req := validRequest()
	req.Email = ""
	req.Nonce = ""

	err := CheckRequest(req)
	require.Error(t, err)
	assert.Equal(t, errs.ValidationFailed, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "nonce")
}

func TestCheckRequestRoundOutOfRange(t *testing.T) {
	for _, round := range []int{0, 3, -1, 42} {
		req := validRequest()
		req.Round = round

		err := CheckRequest(req)
		require.Error(t, err, "round %d must be rejected", round)
		assert.Equal(t, errs.ValidationFailed, errs.CodeOf(err))
		assert.Contains(t, err.Error(), "round")
	}
}

func TestCheckRequestBadEvaluationURL(t *testing.T) {
	req := validRequest()
	req.EvaluationURL = "not a url"

	err := CheckRequest(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluation_url")
}

func TestCheckRequestAttachmentsOptional(t *testing.T) {
	req := validRequest()
	req.Attachments = nil
	assert.NoError(t, CheckRequest(req))

	req.Attachments = []model.Attachment{{Name: "data.csv", URL: "data:text/csv;base64,YSxi"}}
	assert.NoError(t, CheckRequest(req))
}

func TestCheckRequestAttachmentMissingName(t *testing.T) {
	req := validRequest()
	req.Attachments = []model.Attachment{{URL: "data:text/csv;base64,YSxi"}}

	err := CheckRequest(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}
