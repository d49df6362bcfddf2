// Package config loads action documents: YAML or JSON files naming the
// actions a page can dispatch plus the initial session state.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
	"github.com/alexisbeaulieu97/actionflow/internal/validation"
	apperrors "github.com/alexisbeaulieu97/actionflow/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// ErrUnsupportedExtension is returned for files that are neither YAML nor JSON.
var ErrUnsupportedExtension = errors.New("unsupported document extension")

// Document is a decoded action document.
type Document struct {
	Path    string
	Name    string
	Version string
	// State seeds the session state store.
	State map[string]any
	// Root is the document's top-level action, when it has one.
	Root action.Action
	// Actions maps names to validated actions; Order keeps file order.
	Actions map[string]action.Action
	Order   []string
}

type rawDocument struct {
	Name    string         `yaml:"name" mapstructure:"name" validate:"omitempty,max=128"`
	Version string         `yaml:"version" mapstructure:"version" validate:"omitempty,max=32"`
	State   map[string]any `yaml:"state" validate:"-"`
	Action  yaml.Node      `yaml:"action" validate:"-"`
	Actions yaml.Node      `yaml:"actions" validate:"-"`
}

// Loader reads action documents from disk.
type Loader struct {
	logger ports.Logger
}

// NewLoader creates a loader. A nil logger disables logging.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads, parses and validates the document at path.
func (l *Loader) Load(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkExtension(path); err != nil {
		return nil, err
	}

	l.debug(ctx, "loading action document", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		l.fail(ctx, "failed to read action document", err, "path", path)
		return nil, apperrors.NewParseError(path, 0, err)
	}

	doc, err := Parse(path, data)
	if err != nil {
		l.fail(ctx, "failed to load action document", err, "path", path)
		return nil, err
	}

	l.info(ctx, "action document loaded", "path", path, "actions", len(doc.Order))
	return doc, nil
}

// Validate loads path and discards the result.
func (l *Loader) Validate(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NewParseError(path, 0, err)
	}
	if info.IsDir() {
		return apperrors.NewParseError(path, 0, errors.New("path is a directory"))
	}
	_, err = l.Load(ctx, path)
	return err
}

// Parse decodes document bytes. JSON is accepted as a YAML subset.
func Parse(path string, data []byte) (*Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewParseError(path, extractLine(err), err)
	}
	if err := validation.GetValidator().Struct(raw); err != nil {
		return nil, apperrors.NewDocumentError(path, "", 0, fmt.Errorf("invalid document header: %w", err))
	}

	doc := &Document{
		Path:    path,
		Name:    raw.Name,
		Version: raw.Version,
		State:   raw.State,
		Actions: make(map[string]action.Action),
	}
	if doc.State == nil {
		doc.State = map[string]any{}
	}

	if raw.Action.Kind != 0 {
		root, err := decodeNode(&raw.Action)
		if err != nil {
			return nil, apperrors.NewDocumentError(path, "action", raw.Action.Line, err)
		}
		doc.Root = root
	}

	node := &raw.Actions
	if node.Kind == 0 {
		if doc.Root == nil {
			return nil, apperrors.NewDocumentError(path, "", 0, errors.New("document defines no actions"))
		}
		return doc, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, apperrors.NewDocumentError(path, "", node.Line, errors.New("actions must be a mapping of names to actions"))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		name := keyNode.Value
		if _, dup := doc.Actions[name]; dup {
			return nil, apperrors.NewDocumentError(path, name, keyNode.Line, errors.New("duplicate action name"))
		}

		act, err := decodeNode(valueNode)
		if err != nil {
			return nil, apperrors.NewDocumentError(path, name, valueNode.Line, err)
		}
		doc.Actions[name] = act
		doc.Order = append(doc.Order, name)
	}
	return doc, nil
}

func decodeNode(node *yaml.Node) (action.Action, error) {
	var value any
	if err := node.Decode(&value); err != nil {
		return nil, err
	}
	return validation.DecodeValue(value)
}

// Lookup returns the named action, or Root for an empty name.
func (d *Document) Lookup(name string) (action.Action, bool) {
	if name == "" {
		return d.Root, d.Root != nil
	}
	act, ok := d.Actions[name]
	return act, ok
}

func checkExtension(path string) error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return nil
	}
	return apperrors.NewParseError(path, 0, fmt.Errorf("%w %q", ErrUnsupportedExtension, filepath.Ext(path)))
}

func extractLine(err error) int {
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	line, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0
	}
	return line
}

func (l *Loader) debug(ctx context.Context, msg string, fields ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(ctx, msg, fields...)
	}
}

func (l *Loader) info(ctx context.Context, msg string, fields ...interface{}) {
	if l.logger != nil {
		l.logger.Info(ctx, msg, fields...)
	}
}

func (l *Loader) fail(ctx context.Context, msg string, err error, fields ...interface{}) {
	if l.logger != nil {
		l.logger.Error(ctx, msg, append(fields, "error", err)...)
	}
}
