package driver

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// valueError reports a record column or result that does not have the expected
// Neo4j type.
type valueError struct {
	field string
	want  string
	got   any
}

func (e *valueError) Error() string {
	if e.field == "" {
		return fmt.Sprintf("neo4j value: want %s, got %T", e.want, e.got)
	}
	return fmt.Sprintf("neo4j value %q: want %s, got %T", e.field, e.want, e.got)
}

// column reads key from record as T. A missing or null column is an error.
func column[T any](record *db.Record, key string) (T, error) {
	v, _ := record.Get(key)
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, &valueError{field: key, want: fmt.Sprintf("%T", zero), got: v}
	}
	return t, nil
}

// props reads node and relationship properties, yielding zero values for
// absent or mistyped keys.
type props map[string]any

func (p props) str(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p props) integer(key string) int {
	switch v := p[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (p props) vector(key string) []float32 {
	v, _ := toFloat32s(p[key])
	return v
}

func (p props) time(key string) time.Time {
	t, _ := p[key].(time.Time)
	return t
}

// toFloat32s converts a Neo4j list of numbers into an embedding.
func toFloat32s(v any) ([]float32, bool) {
	switch list := v.(type) {
	case []float32:
		return list, true
	case []float64:
		out := make([]float32, len(list))
		for i, x := range list {
			out[i] = float32(x)
		}
		return out, true
	case []any:
		out := make([]float32, len(list))
		for i, x := range list {
			switch f := x.(type) {
			case float64:
				out[i] = float32(f)
			case int64:
				out[i] = float32(f)
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

// toStrings keeps the string elements of a Neo4j list.
func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, x := range list {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
