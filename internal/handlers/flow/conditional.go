package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// Conditional evaluates its condition and dispatches the matching branch. The
// branch result is returned as is; without a branch for the outcome the data
// is an action.ConditionOutcome.
func Conditional(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	c := act.(action.Conditional)

	met, err := Evaluate(c, rt.Capabilities)
	if err != nil {
		return action.Fail(err)
	}
	rt.Emit(ctx, event.ConditionEvaluated{Condition: string(c.Condition), Key: c.Key, Met: met})

	branch, name := c.IfFalse, "ifFalse"
	if met {
		branch, name = c.IfTrue, "ifTrue"
	}
	if branch == nil {
		return action.Succeed(action.ConditionOutcome{ConditionMet: met, Executed: false})
	}

	res := dispatch(ctx, rt, branch)
	rt.Emit(ctx, event.ConditionalExecuted{Condition: string(c.Condition), Branch: name, Success: res.Success})
	return res
}

// Evaluate computes a condition against the session state and environment.
// Errors are validation failures for conditions that could not be compiled.
func Evaluate(c action.Conditional, caps action.Capabilities) (bool, error) {
	switch c.Condition {
	case action.ConditionStateEquals:
		value, _ := caps.State(c.Key)
		return action.StrictEqual(value, c.Value), nil

	case action.ConditionStateExists:
		_, ok := caps.State(c.Key)
		return ok, nil

	case action.ConditionStateMatches:
		re, err := action.CompilePattern(c.Pattern, c.Flags)
		if err != nil {
			return false, action.NewValidationError("pattern", err.Error())
		}
		value, ok := caps.State(c.Key)
		return re.MatchString(action.StringifyState(value, ok)), nil

	case action.ConditionUserAgentMatches:
		re, err := action.CompilePattern(c.Pattern, c.Flags)
		if err != nil {
			return false, action.NewValidationError("pattern", err.Error())
		}
		return re.MatchString(caps.UserAgent), nil

	case action.ConditionUserAgentIncludes:
		needle, ok := c.Value.(string)
		if !ok {
			return false, action.NewValidationError("value", "value required for userAgentIncludes condition")
		}
		return strings.Contains(strings.ToLower(caps.UserAgent), strings.ToLower(needle)), nil

	case action.ConditionCustom:
		return false, nil
	}
	return false, action.NewValidationError("condition", fmt.Sprintf("unknown condition %q", c.Condition))
}
