package validate

import (
	"strings"
	"testing"
)

// FuzzAgainstSchema tests schema validation with various inputs
func FuzzAgainstSchema(f *testing.F) {
	basicSchema := []byte(`{
		"type": "object",
		"properties": {
			"packages": {"type": "array"},
			"runtimeProvided": {"type": "array"}
		},
		"required": ["packages"]
	}`)

	// Seed with various JSON data patterns
	f.Add("registry-schema", basicSchema, []byte(`{"packages": [{"name": "ingest"}]}`))
	f.Add("registry-schema", basicSchema, []byte(`{"packages": []}`))
	f.Add("registry-schema", basicSchema, []byte(`{}`))
	f.Add("registry-schema", basicSchema, []byte(`{"packages": null}`))
	f.Add("registry-schema", basicSchema, []byte(`{"packages": "not-an-array"}`))
	f.Add("registry-schema", basicSchema, []byte(`invalid json`))
	f.Add("registry-schema", basicSchema, []byte(`null`))
	f.Add("registry-schema", basicSchema, []byte(`[]`))
	f.Add("registry-schema", basicSchema, []byte(`"string"`))

	f.Fuzz(func(t *testing.T, name string, schema []byte, data []byte) {
		// Skip invalid schema names that would cause panics in the library
		if name == "" || strings.Contains(name, "#") || len(name) < 3 {
			t.Skip("Skipping invalid schema name")
		}

		// Skip empty or very small schema data
		if len(schema) < 10 {
			t.Skip("Skipping too small schema")
		}

		// Should handle all inputs gracefully (error or success both acceptable)
		err := AgainstSchema(name, schema, data)
		_ = err // We don't validate the specific error, just that it doesn't crash
	})
}
