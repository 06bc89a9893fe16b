package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Error reports a manifest that failed to load or validate — fatal at
// load time.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("manifest %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("manifest: %s", e.Reason)
}

// Load reads and validates a manifest document. The document format is
// sniffed from the file extension: .yaml/.yml parse as YAML, anything else
// as JSON.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: err.Error()}
	}

	var m Manifest
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, &Error{Path: path, Reason: "invalid YAML: " + err.Error()}
		}
	} else {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &Error{Path: path, Reason: "invalid JSON: " + err.Error()}
		}
	}

	if err := validate(&m); err != nil {
		return nil, &Error{Path: path, Reason: err.Error()}
	}
	return &m, nil
}

func validate(m *Manifest) error {
	var missing []string
	if m.ID == "" {
		missing = append(missing, "id")
	}
	if len(m.Reqs) == 0 {
		missing = append(missing, "config.reqs")
	}
	if len(m.Datasets) == 0 {
		missing = append(missing, "config.datasets")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
