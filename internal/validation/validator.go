// Package validation turns untrusted action documents into typed actions and
// checks typed actions against the schema before they reach a handler.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
)

// Validate checks act and every nested action. The first mismatch is
// returned as an *action.Error with code VALIDATION_ERROR.
func Validate(act action.Action) error {
	return validateTree("", act)
}

func validateTree(path string, act action.Action) error {
	if err := checkNode(path, act); err != nil {
		return err
	}
	for _, child := range children(path, act) {
		if err := validateTree(child.path, child.action); err != nil {
			return err
		}
	}
	return nil
}

// checkNode validates a single action without descending into its children.
func checkNode(path string, act action.Action) error {
	if act == nil {
		return action.NewValidationError(path, "action is required")
	}

	kind := act.Type()
	if !kind.IsBuiltin() && !kind.IsPlugin() {
		return action.NewValidationError(joinPath(path, "type"), fmt.Sprintf("unknown action type %q", kind))
	}

	if err := validatorInstance().Struct(act); err != nil {
		return convertValidationError(path, err)
	}

	switch v := act.(type) {
	case action.Chain:
		if v.Actions == nil {
			return action.NewValidationError(joinPath(path, "actions"), "required field missing")
		}
	case action.Parallel:
		if v.Actions == nil {
			return action.NewValidationError(joinPath(path, "actions"), "required field missing")
		}
	case action.Conditional:
		return checkCondition(path, v)
	}
	return nil
}

func checkCondition(path string, c action.Conditional) error {
	if c.Condition.RequiresKey() && c.Key == "" {
		return action.NewValidationError(path, fmt.Sprintf("key required for %s condition", c.Condition))
	}
	if c.Condition.RequiresPattern() {
		if c.Pattern == "" {
			return action.NewValidationError(path, fmt.Sprintf("pattern required for %s condition", c.Condition))
		}
		if _, err := action.CompilePattern(c.Pattern, c.Flags); err != nil {
			return &action.Error{
				Code:    action.ErrCodeValidation,
				Field:   joinPath(path, "pattern"),
				Message: err.Error(),
				Cause:   err,
			}
		}
	}
	if c.Condition == action.ConditionUserAgentIncludes {
		if c.Value == nil {
			return action.NewValidationError(path, "value required for userAgentIncludes condition")
		}
		if _, ok := c.Value.(string); !ok {
			return action.NewValidationError(joinPath(path, "value"), "must be a string for userAgentIncludes condition")
		}
	}
	return nil
}

type childRef struct {
	path   string
	action action.Action
}

func children(path string, act action.Action) []childRef {
	var out []childRef
	add := func(name string, a action.Action) {
		if a != nil {
			out = append(out, childRef{path: joinPath(path, name), action: a})
		}
	}
	switch v := act.(type) {
	case action.Chain:
		for i, a := range v.Actions {
			out = append(out, childRef{path: indexPath(path, "actions", i), action: a})
		}
	case action.Parallel:
		for i, a := range v.Actions {
			out = append(out, childRef{path: indexPath(path, "actions", i), action: a})
		}
	case action.Conditional:
		add("ifTrue", v.IfTrue)
		add("ifFalse", v.IfFalse)
	case action.Delay:
		add("then", v.Then)
	case action.Request:
		add("onSuccess", v.OnSuccess)
		add("onError", v.OnError)
	}
	return out
}

// convertValidationError normalizes validator errors into action validation errors.
func convertValidationError(path string, err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return &action.Error{Code: action.ErrCodeValidation, Field: path, Message: err.Error(), Cause: err}
	}

	fe := ves[0]
	field := joinPath(path, fieldPath(fe))
	return &action.Error{
		Code:    action.ErrCodeValidation,
		Field:   field,
		Message: describe(fe),
		Cause:   err,
	}
}

// fieldPath drops the struct name from the namespace so nested fields read
// like document keys (item.id).
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field missing"
	case "required_if":
		parts := strings.Fields(fe.Param())
		if len(parts) == 2 {
			return fmt.Sprintf("required when %s is %s", lowerFirst(parts[0]), parts[1])
		}
		return "required field missing"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "http_verb":
		return fmt.Sprintf("unsupported request method %q", fe.Value())
	}
	return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func joinPath(base, field string) string {
	switch {
	case base == "":
		return field
	case field == "":
		return base
	}
	return base + "." + field
}

func indexPath(base, field string, i int) string {
	return fmt.Sprintf("%s[%d]", joinPath(base, field), i)
}
