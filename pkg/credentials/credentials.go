// Package credentials resolves a manifest's configSchema against
// environment variables, loading a .env.local file first when one is
// present.
package credentials

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	"github.com/blackcoderx/precog/pkg/manifest"
)

// Error reports one or more required credentials that were not provided.
// Fatal before execution begins.
type Error struct {
	MissingEnvVars []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("missing required credential environment variable(s): %s", strings.Join(e.MissingEnvVars, ", "))
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// EnvVarName maps a configSchema field name to the environment variable the
// engine reads for it: uppercased, with runs of whitespace collapsed to a
// single underscore. `"API Key"` becomes `API_KEY`.
func EnvVarName(fieldName string) string {
	return strings.ToUpper(whitespaceRun.ReplaceAllString(strings.TrimSpace(fieldName), "_"))
}

// Load reads .env.local (if present) into the process environment, then
// resolves every configSchema field against the environment. A field whose
// Sensitive flag is true is required; its absence is collected into the
// returned Error rather than failing on the first miss, so the operator
// sees every missing variable at once.
func Load(m *manifest.Manifest) (map[string]interface{}, error) {
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("credentials: loading .env.local: %w", err)
	}

	creds := make(map[string]interface{}, len(m.ConfigSchema))
	var missing []string
	for field, schema := range m.ConfigSchema {
		envVar := EnvVarName(field)
		value, present := os.LookupEnv(envVar)
		if !present {
			if schema.Sensitive {
				missing = append(missing, envVar)
			}
			continue
		}
		creds[field] = value
	}

	if len(missing) > 0 {
		return nil, &Error{MissingEnvVars: missing}
	}
	return creds, nil
}
