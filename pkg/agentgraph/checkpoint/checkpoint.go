package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Version is the current checkpoint document version.
// Increment when making breaking changes to the document layout.
const Version = 1

// Checkpoint is a persisted snapshot of a workflow run: the full state
// plus the status every node had when the snapshot was taken.
type Checkpoint struct {
	Version      int               `json:"version" yaml:"version"`
	ID           string            `json:"id" yaml:"id"`
	Workflow     string            `json:"workflow" yaml:"workflow"`
	Name         string            `json:"name" yaml:"name"`
	State        map[string]any    `json:"state" yaml:"state"`
	NodeStatuses map[string]string `json:"node_statuses" yaml:"node_statuses"`
	CreatedAt    time.Time         `json:"created_at" yaml:"created_at"`
}

// New creates a checkpoint document. State is stored as given; call
// Sanitize first if it may hold values that cannot be encoded.
func New(workflow, name string, state map[string]any, statuses map[string]string) *Checkpoint {
	if state == nil {
		state = make(map[string]any)
	}
	if statuses == nil {
		statuses = make(map[string]string)
	}
	return &Checkpoint{
		Version:      Version,
		ID:           uuid.NewString(),
		Workflow:     workflow,
		Name:         name,
		State:        state,
		NodeStatuses: statuses,
		CreatedAt:    time.Now().UTC(),
	}
}

// Status returns the recorded status of a node, or "" if none was recorded.
func (c *Checkpoint) Status(nodeID string) string {
	return c.NodeStatuses[nodeID]
}

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml". Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported checkpoint format %q", s)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Encode serializes a checkpoint. Integral float64 values in the state are
// written with a decimal point so they decode as float64, not int.
func Encode(c *Checkpoint, format Format) ([]byte, error) {
	out := *c
	out.State, _ = markFloats(c.State).(map[string]any)
	if format == FormatYAML {
		return yaml.Marshal(&out)
	}
	return json.MarshalIndent(&out, "", "  ")
}

// Decode parses a checkpoint document. Any parse failure, unknown version
// or missing workflow name is reported as ErrCorrupt.
//
// State values come back in the JSON data model, with numbers split by
// how they were written: integers are int, everything else float64.
// Objects are map[string]any and arrays are []any. YAML documents are
// normalized to the same model so both formats round-trip identically.
func Decode(data []byte, format Format) (*Checkpoint, error) {
	var c Checkpoint
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &c)
	} else {
		err = decodeJSON(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if c.Version < 1 || c.Version > Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, c.Version)
	}
	if c.Workflow == "" {
		return nil, fmt.Errorf("%w: missing workflow name", ErrCorrupt)
	}
	if c.State == nil {
		c.State = make(map[string]any)
	} else {
		c.State = normalize(c.State).(map[string]any)
	}
	if c.NodeStatuses == nil {
		c.NodeStatuses = make(map[string]string)
	}
	return &c, nil
}

// decodeJSON unmarshals data keeping numbers as json.Number, for
// normalize to split into int and float64.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after document")
	}
	return nil
}

// exactFloat is an integral float64 that encodes as "2.0" rather than "2".
type exactFloat float64

func (f exactFloat) text() string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// MarshalJSON implements json.Marshaler.
func (f exactFloat) MarshalJSON() ([]byte, error) {
	return []byte(f.text()), nil
}

// MarshalYAML implements yaml.Marshaler.
func (f exactFloat) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: f.text()}, nil
}

// markFloats copies v, wrapping finite integral float64 values in exactFloat.
func markFloats(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return val
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = markFloats(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = markFloats(item)
		}
		return out
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return exactFloat(val)
		}
		return val
	default:
		return v
	}
}

// normalize converts decoded values to the JSON data model: maps keyed by
// string, integers as int and other numbers as float64.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case json.Number:
		if !strings.ContainsAny(val.String(), ".eE") {
			if i, err := strconv.ParseInt(val.String(), 10, 0); err == nil {
				return int(i)
			}
		}
		f, _ := val.Float64()
		return f
	case int64:
		if val >= math.MinInt && val <= math.MaxInt {
			return int(val)
		}
		return float64(val)
	case uint64:
		if val <= math.MaxInt {
			return int(val)
		}
		return float64(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// Sanitize returns a copy of state in the JSON data model. Values that
// cannot be encoded (functions, channels, cyclic or failing marshalers)
// are replaced by an "<unserializable T>" marker; the dotted paths of the
// replaced values are returned so the caller can report them.
func Sanitize(state map[string]any) (map[string]any, []string) {
	var dropped []string
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = sanitizeValue(k, v, &dropped)
	}
	return out, dropped
}

func sanitizeValue(path string, v any, dropped *[]string) any {
	switch val := v.(type) {
	case nil, bool, string, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitizeValue(path+"."+k, item, dropped)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(fmt.Sprintf("%s.%d", path, i), item, dropped)
		}
		return out
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		*dropped = append(*dropped, path)
		return unserializable(v)
	}

	// Structs, typed maps and slices: let encoding/json decide, then bring
	// the result into the JSON data model.
	b, err := json.Marshal(v)
	if err != nil {
		*dropped = append(*dropped, path)
		return unserializable(v)
	}
	var decoded any
	if err := decodeJSON(b, &decoded); err != nil {
		*dropped = append(*dropped, path)
		return unserializable(v)
	}
	return normalize(decoded)
}

func unserializable(v any) string {
	return fmt.Sprintf("<unserializable %T>", v)
}
