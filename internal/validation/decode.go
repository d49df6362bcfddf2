package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
)

// Decode converts an untrusted document value into a typed action. Defaults
// are applied for absent fields, wrong field types are rejected and nested
// actions are decoded and checked with dotted paths (actions[1].ifTrue).
func Decode(raw map[string]any) (action.Action, error) {
	return decodeAt("", raw)
}

// DecodeValue accepts any document value, failing when it is not an object.
func DecodeValue(raw any) (action.Action, error) {
	return decodeValueAt("", raw)
}

func decodeValueAt(path string, raw any) (action.Action, error) {
	m, ok := asObject(raw)
	if !ok {
		return nil, action.NewValidationError(path, fmt.Sprintf("expected action object, got %s", typeName(raw)))
	}
	return decodeAt(path, m)
}

func decodeAt(path string, raw map[string]any) (action.Action, error) {
	if raw == nil {
		return nil, action.NewValidationError(path, "action is required")
	}
	rawKind, present := raw["type"]
	if !present || rawKind == nil {
		return nil, action.NewValidationError(joinPath(path, "type"), "required field missing")
	}
	kindStr, ok := rawKind.(string)
	if !ok {
		return nil, action.NewValidationError(joinPath(path, "type"), fmt.Sprintf("expected string, got %s", typeName(rawKind)))
	}
	kind := action.Kind(kindStr)

	if kind.IsPlugin() {
		params := make(map[string]any, len(raw))
		for k, v := range raw {
			if k != "type" {
				params[k] = v
			}
		}
		plugin := action.Plugin{Name: strings.TrimPrefix(kindStr, action.PluginPrefix), Params: params}
		return plugin, checkNode(path, plugin)
	}

	switch kind {
	case action.KindNavigate:
		out := action.Navigate{}
		return finish(path, raw, &out)
	case action.KindClosePopup:
		return action.ClosePopup{}, nil
	case action.KindRedirect:
		out := action.Redirect{Target: action.DefaultRedirectTarget}
		return finish(path, raw, &out)
	case action.KindGet, action.KindPost, action.KindPut, action.KindPatch, action.KindDelete:
		out := action.Request{Method: kind, Timeout: action.DefaultRequestTimeout}
		if err := decodeFields(path, raw, &out); err != nil {
			return nil, err
		}
		if err := checkNode(path, out); err != nil {
			return nil, err
		}
		var err error
		if out.OnSuccess, err = optionalChild(path, raw, "onSuccess"); err != nil {
			return nil, err
		}
		if out.OnError, err = optionalChild(path, raw, "onError"); err != nil {
			return nil, err
		}
		return out, nil
	case action.KindAnalytics:
		out := action.Analytics{Provider: action.ProviderGtag}
		return finish(path, raw, &out)
	case action.KindPixel:
		out := action.Pixel{Async: true}
		return finish(path, raw, &out)
	case action.KindIframe:
		out := action.Iframe{}
		return finish(path, raw, &out)
	case action.KindCustomHTML:
		out := action.CustomHTML{Target: action.DefaultHTMLTarget, Position: action.DefaultHTMLPosition}
		return finish(path, raw, &out)
	case action.KindSetState:
		out := action.SetState{}
		return finish(path, raw, &out)
	case action.KindCart:
		out := action.Cart{}
		return finish(path, raw, &out)
	case action.KindLog:
		out := action.Log{Level: action.LevelInfo}
		return finish(path, raw, &out)
	case action.KindChain:
		out := action.Chain{}
		if err := decodeFields(path, raw, &out); err != nil {
			return nil, err
		}
		actions, err := childList(path, raw)
		if err != nil {
			return nil, err
		}
		out.Actions = actions
		return out, nil
	case action.KindParallel:
		out := action.Parallel{WaitForAll: true}
		if err := decodeFields(path, raw, &out); err != nil {
			return nil, err
		}
		actions, err := childList(path, raw)
		if err != nil {
			return nil, err
		}
		out.Actions = actions
		return out, nil
	case action.KindConditional:
		out := action.Conditional{}
		if err := decodeFields(path, raw, &out); err != nil {
			return nil, err
		}
		if err := checkNode(path, out); err != nil {
			return nil, err
		}
		var err error
		if out.IfTrue, err = optionalChild(path, raw, "ifTrue"); err != nil {
			return nil, err
		}
		if out.IfFalse, err = optionalChild(path, raw, "ifFalse"); err != nil {
			return nil, err
		}
		return out, nil
	case action.KindDelay:
		if v, ok := raw["duration"]; !ok || v == nil {
			return nil, action.NewValidationError(joinPath(path, "duration"), "required field missing")
		}
		out := action.Delay{}
		if err := decodeFields(path, raw, &out); err != nil {
			return nil, err
		}
		if err := checkNode(path, out); err != nil {
			return nil, err
		}
		then, err := optionalChild(path, raw, "then")
		if err != nil {
			return nil, err
		}
		out.Then = then
		return out, nil
	}

	return nil, action.NewValidationError(joinPath(path, "type"), fmt.Sprintf("unknown action type %q", kind))
}

// finish decodes a leaf action into target and checks it.
func finish[T action.Action](path string, raw map[string]any, target *T) (action.Action, error) {
	if err := decodeFields(path, raw, target); err != nil {
		return nil, err
	}
	if err := checkNode(path, *target); err != nil {
		return nil, err
	}
	return *target, nil
}

func childList(path string, raw map[string]any) ([]action.Action, error) {
	field := joinPath(path, "actions")
	value, ok := raw["actions"]
	if !ok || value == nil {
		return nil, action.NewValidationError(field, "required field missing")
	}
	items, ok := value.([]any)
	if !ok {
		return nil, action.NewValidationError(field, fmt.Sprintf("expected list of actions, got %s", typeName(value)))
	}
	out := make([]action.Action, 0, len(items))
	for i, item := range items {
		child, err := decodeValueAt(indexPath(path, "actions", i), item)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func optionalChild(path string, raw map[string]any, key string) (action.Action, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return nil, nil
	}
	return decodeValueAt(joinPath(path, key), value)
}

func decodeFields(path string, raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: durationHook,
		Result:     target,
		TagName:    "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return convertDecodeError(path, err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook reads document durations: numbers are milliseconds, strings
// use time.ParseDuration syntax.
func durationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", v)
		}
		return d, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	case float32:
		return time.Duration(float64(v) * float64(time.Millisecond)), nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case int32:
		return time.Duration(v) * time.Millisecond, nil
	case uint64:
		return time.Duration(v) * time.Millisecond, nil
	}
	return data, nil
}

var quotedField = regexp.MustCompile(`'([^']*)'`)

// convertDecodeError maps the first mapstructure failure onto a field error.
func convertDecodeError(path string, err error) error {
	msg := err.Error()
	var merr *mapstructure.Error
	if errors.As(err, &merr) && len(merr.Errors) > 0 {
		msg = merr.Errors[0]
	}
	field := path
	if m := quotedField.FindStringSubmatch(msg); m != nil {
		field = joinPath(path, m[1])
		msg = strings.TrimSpace(strings.TrimPrefix(msg, m[0]))
	}
	return &action.Error{Code: action.ErrCodeValidation, Field: field, Message: msg, Cause: err}
}

func asObject(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = v
		}
		return out, true
	}
	return nil, false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32, uint64:
		return "number"
	case []any:
		return "list"
	case map[string]any, map[any]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
