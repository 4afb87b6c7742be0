// Package runfile reads and writes Run documents on disk as JSON or YAML.
package runfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/runproof/internal/canon"
	"github.com/roach88/runproof/internal/run"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the format from the file extension. Anything other
// than .yaml or .yml is treated as JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Read loads and validates a run from path. The path "-" reads stdin as JSON.
func Read(path string) (run.Run, error) {
	if path == "-" {
		return ReadFrom(os.Stdin, FormatJSON)
	}
	f, err := os.Open(path)
	if err != nil {
		return run.Run{}, fmt.Errorf("open run file: %w", err)
	}
	defer f.Close()

	r, err := ReadFrom(f, DetectFormat(path))
	if err != nil {
		return run.Run{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ReadFrom decodes and validates a run from rd.
func ReadFrom(rd io.Reader, format Format) (run.Run, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return run.Run{}, fmt.Errorf("read run: %w", err)
	}
	return Decode(data, format)
}

// Decode parses a run document and validates it. Unknown top-level fields
// are ignored; unknown step types are rejected.
func Decode(data []byte, format Format) (run.Run, error) {
	jsonData, err := toJSON(data, format)
	if err != nil {
		return run.Run{}, err
	}
	var r run.Run
	if err := json.Unmarshal(jsonData, &r); err != nil {
		return run.Run{}, fmt.Errorf("decode run: %w", err)
	}
	if err := r.Validate(); err != nil {
		return run.Run{}, err
	}
	return r, nil
}

// DecodeValue parses an arbitrary JSON or YAML document into a Value.
func DecodeValue(data []byte, format Format) (canon.Value, error) {
	jsonData, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}
	return canon.Decode(jsonData)
}

// ReadValue loads an arbitrary document from path ("-" for stdin JSON).
func ReadValue(path string) (canon.Value, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return DecodeValue(data, DetectFormat(path))
}

// Encode renders a run in the given format. JSON output is indented with
// sorted keys so files diff cleanly under version control.
func Encode(r run.Run, format Format) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode run: %w", err)
	}
	v, err := canon.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("encode run: %w", err)
	}
	return EncodeValue(v, format)
}

// EncodeValue renders an arbitrary Value in the given format.
func EncodeValue(v canon.Value, format Format) ([]byte, error) {
	compact, err := canon.Marshal(v)
	if err != nil {
		return nil, err
	}
	return EncodeValueJSON(compact, format)
}

// EncodeValueJSON re-renders compact JSON as indented JSON or YAML.
func EncodeValueJSON(compact []byte, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		v, err := canon.Decode(compact)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(yamlValue(v)); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		if err := json.Indent(&buf, compact, "", "  "); err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	}
}

// Write stores a run at path in the format its extension implies.
func Write(path string, r run.Run) error {
	data, err := Encode(r, DetectFormat(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run file: %w", err)
	}
	return nil
}

func toJSON(data []byte, format Format) ([]byte, error) {
	if format != FormatYAML {
		return data, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	doc, err := fromNode(&node)
	if err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	v, err := canon.FromAny(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return canon.Marshal(v)
}

// fromNode converts a YAML node into plain data. Integer scalars beyond
// int64 become *big.Int instead of the float64 yaml.v3 would produce.
func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[k.Value] = v
		}
		return out, nil
	case yaml.ScalarNode:
		if tag := n.ShortTag(); tag == "!!int" || tag == "!!float" {
			if b, ok := new(big.Int).SetString(n.Value, 10); ok && !b.IsInt64() {
				return b, nil
			}
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		if t, ok := v.(time.Time); ok {
			return t.Format(time.RFC3339Nano), nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}

// yamlValue is canon.ToAny with big integers kept as plain digit scalars.
func yamlValue(v canon.Value) any {
	switch val := v.(type) {
	case canon.BigInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: string(val)}
	case canon.Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = yamlValue(elem)
		}
		return out
	case canon.Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = yamlValue(elem)
		}
		return out
	default:
		return canon.ToAny(v)
	}
}
