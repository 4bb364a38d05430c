package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a scenario pack as exported by the editor: a shared role
// list plus one or more scenarios.
type Document struct {
	Version   json.Number `json:"version"`
	Roles     []Role      `json:"roles"`
	Scenarios []*Scenario `json:"scenarios"`
}

// ParseDocument parses and validates a JSON scenario pack.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if doc.Version != "" {
		v, err := doc.Version.Float64()
		if err != nil || v != 1 {
			return nil, fmt.Errorf("unsupported scenario document version: %s", doc.Version)
		}
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario document has no scenarios")
	}
	for _, sc := range doc.Scenarios {
		if sc == nil {
			return nil, fmt.Errorf("scenario document has an empty entry")
		}
		if len(sc.Roles) == 0 {
			sc.Roles = doc.Roles
		}
		if err := sc.prepare(); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

// ParseYAMLDocument accepts the same structure written as YAML.
func ParseYAMLDocument(data []byte) (*Document, error) {
	b, err := yamlToJSON(data)
	if err != nil {
		return nil, err
	}
	return ParseDocument(b)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to convert scenario YAML: %w", err)
	}
	return b, nil
}

// ParseInline parses a scenario supplied at room creation. Both a whole
// pack (the first scenario is used) and a bare scenario object are
// accepted. The result belongs to the caller alone.
func ParseInline(data []byte) (*Scenario, error) {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("inline scenario must be a JSON object: %w", err)
	}
	if _, isPack := head["scenarios"]; isPack {
		doc, err := ParseDocument(data)
		if err != nil {
			return nil, err
		}
		return doc.Scenarios[0], nil
	}

	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse inline scenario: %w", err)
	}
	if sc.ID == "" {
		sc.ID = "custom"
	}
	if err := sc.prepare(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile loads a pack from a .json, .yaml or .yml file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var doc *Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err = ParseYAMLDocument(data)
	default:
		doc, err = ParseDocument(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadDir loads every scenario file in dir, in name order.
func LoadDir(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		doc, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
