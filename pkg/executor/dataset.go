package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeDatasets implements §4.7.5: collect each dataset's source request
// responses, splice `results` arrays or push whole bodies, and write one
// pretty-printed JSON array per non-empty dataset.
func (e *Executor) writeDatasets() error {
	if e.opts.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(e.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("executor: creating output dir: %w", err)
	}

	for _, ds := range e.manifest.Datasets {
		records := e.collectDataset(ds.Data)
		if len(records) == 0 {
			continue
		}

		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("executor: encoding dataset %s: %w", ds.Name, err)
		}

		path := filepath.Join(e.opts.OutputDir, slugify(ds.Name)+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("executor: writing dataset %s: %w", ds.Name, err)
		}
		e.debugf("wrote dataset %s -> %s (%d records)", ds.Name, path, len(records))
	}
	return nil
}

func (e *Executor) collectDataset(sourceNames []string) []interface{} {
	var out []interface{}
	for _, name := range sourceNames {
		for _, resp := range e.history.All(name) {
			body, ok := resp.Body.(map[string]interface{})
			if ok {
				if results, ok := body["results"].([]interface{}); ok {
					out = append(out, results...)
					continue
				}
			}
			out = append(out, resp.Body)
		}
	}
	return out
}
