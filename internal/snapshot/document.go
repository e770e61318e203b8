package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/starford/itemdesk/internal/models"
)

// Format is an import/export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("snapshot: unsupported format %q", s)
}

// DocumentVersion is written into every export.
const DocumentVersion = 1

// Document is the portable export envelope.
type Document struct {
	Version    int           `json:"version" yaml:"version"`
	ExportedAt time.Time     `json:"exportedAt" yaml:"exportedAt"`
	Items      []models.Item `json:"items" yaml:"items"`
}

const documentSchemaURL = "itemdesk-document.schema.json"

const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["items"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "exportedAt": {"type": "string", "format": "date-time"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "description", "priority", "createdAt", "updatedAt"],
        "properties": {
          "id": {"type": "integer", "minimum": 1},
          "name": {"type": "string", "minLength": 3},
          "description": {"type": "string", "minLength": 1},
          "priority": {"enum": %s},
          "createdAt": {"type": "string", "format": "date-time"},
          "updatedAt": {"type": "string", "format": "date-time"}
        }
      }
    }
  }
}`

var docSchema = compileDocumentSchema()

func compileDocumentSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	enum, err := json.Marshal(models.PrioritySpellings())
	if err != nil {
		panic(fmt.Sprintf("snapshot: priority enum: %v", err))
	}
	schema := fmt.Sprintf(documentSchema, enum)
	if err := c.AddResource(documentSchemaURL, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("snapshot: add schema: %v", err))
	}
	return c.MustCompile(documentSchemaURL)
}

// Export renders items as a Document in the given format.
func Export(items []models.Item, format Format, now time.Time) ([]byte, error) {
	if items == nil {
		items = []models.Item{}
	}
	doc := Document{Version: DocumentVersion, ExportedAt: now.UTC(), Items: items}
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("snapshot: export yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("snapshot: export yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("snapshot: export json: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// Import parses a Document (or a bare item array, as stored in a slot),
// validates it against the document schema and returns its items.
func Import(data []byte, format Format) ([]models.Item, error) {
	jsonData, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(jsonData, &generic); err != nil {
		return nil, fmt.Errorf("snapshot: import: %w", err)
	}
	if arr, ok := generic.([]any); ok {
		generic = map[string]any{"items": arr}
		jsonData, _ = json.Marshal(generic)
	}
	if err := docSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("snapshot: import: %w", err)
	}

	var doc struct {
		Items []record `json:"items"`
	}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("snapshot: import: %w", err)
	}
	return fromRecords(doc.Items)
}

// toJSON converts YAML input to equivalent JSON; JSON input is returned as is.
func toJSON(data []byte, format Format) ([]byte, error) {
	if format != FormatYAML {
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("snapshot: import yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: import yaml: %w", err)
	}
	return out, nil
}
