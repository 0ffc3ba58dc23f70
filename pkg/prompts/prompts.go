// Package prompts holds the prompt templates used for relevance judgments and
// the typed records their responses are decoded into.
package prompts

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/soundprediction/lexigraph/pkg/nlp"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// Vars are the named inputs of a prompt. The "logger" key, when set to a
// *slog.Logger, receives the rendered prompts at debug level.
type Vars map[string]any

func (v Vars) str(key string) string {
	s, _ := v[key].(string)
	return s
}

func (v Vars) intOr(key string, fallback int) int {
	if n, ok := v[key].(int); ok && n > 0 {
		return n
	}
	return fallback
}

func (v Vars) logger() *slog.Logger {
	if l, ok := v["logger"].(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Prompt builds the messages for one judgment call.
type Prompt func(Vars) ([]types.Message, error)

// unicodeNote keeps Korean statute text readable in model output.
const unicodeNote = "\nDo not escape unicode characters.\n"

// Render builds the messages and appends the unicode instruction to every
// system message.
func (p Prompt) Render(v Vars) ([]types.Message, error) {
	messages, err := p(v)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		if messages[i].Role == nlp.RoleSystem {
			messages[i].Content += unicodeNote
		}
	}
	if logger := v.logger(); logger.Enabled(context.Background(), slog.LevelDebug) {
		for _, m := range messages {
			logger.Debug("Rendered prompt", "role", m.Role, "content", m.Content)
		}
	}
	return messages, nil
}

func chat(system, user string) []types.Message {
	return []types.Message{nlp.NewSystemMessage(system), nlp.NewUserMessage(user)}
}

// TSV renders a slice of structs as tab-separated rows with a header. Column
// names come from the `csv` tag, or the field name; `csv:"-"` skips a field.
// An empty slice renders as "".
func TSV(rows any) (string, error) {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return "", fmt.Errorf("tsv: want a slice, got %T", rows)
	}
	if v.Len() == 0 {
		return "", nil
	}
	elem := v.Type().Elem()
	if elem.Kind() != reflect.Struct {
		return "", fmt.Errorf("tsv: want struct elements, got %s", elem.Kind())
	}

	var header []string
	var cols []int
	for i := range elem.NumField() {
		f := elem.Field(i)
		name := f.Tag.Get("csv")
		if !f.IsExported() || name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		header = append(header, name)
		cols = append(cols, i)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	_ = w.Write(header)
	for i := range v.Len() {
		row := v.Index(i)
		record := make([]string, len(cols))
		for j, c := range cols {
			record[j] = cell(row.Field(c).Interface())
		}
		_ = w.Write(record)
	}
	w.Flush()
	return buf.String(), w.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float32:
		return strconv.FormatFloat(float64(x), 'f', 3, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', 3, 64)
	default:
		return fmt.Sprint(x)
	}
}

// YAML renders v as two-space indented YAML.
func YAML(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
