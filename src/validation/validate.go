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

package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	errs "codeforge/src/errors"
	"codeforge/src/model"
)

var validate = validator.New()

// CheckRequest verifies that every required field of the payload is present
// and that the round is an accepted value. It performs no semantic checks
// (URL reachability, email format) beyond the struct tags.
func CheckRequest(req *model.TaskRequest) error {
	if req == nil {
		return errs.New(errs.ValidationFailed, "empty request payload")
	}

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errs.Wrap(err, errs.ValidationFailed, "payload validation failed")
	}

	var messages []string
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return errs.New(errs.ValidationFailed, strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("missing required field: %s", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// jsonName maps struct field names to their wire names for error messages.
func jsonName(field string) string {
	switch field {
	case "EvaluationURL":
		return "evaluation_url"
	default:
		return strings.ToLower(field)
	}
}
