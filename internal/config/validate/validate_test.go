package validate

import (
	"testing"
)

var basicSchema = []byte(`{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"version": {"type": "string"}
	},
	"required": ["name"]
}`)

func TestAgainstSchemaAccepts(t *testing.T) {
	if err := AgainstSchema("basic.schema.json", basicSchema, []byte(`{"name": "pkg1", "version": "1.0"}`)); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}
}

func TestAgainstSchemaRejectsMissingRequired(t *testing.T) {
	if err := AgainstSchema("basic.schema.json", basicSchema, []byte(`{"version": "1.0"}`)); err == nil {
		t.Error("document missing required field accepted")
	}
}

func TestAgainstSchemaRejectsInvalidJSON(t *testing.T) {
	if err := AgainstSchema("basic.schema.json", basicSchema, []byte(`not json`)); err == nil {
		t.Error("invalid JSON accepted")
	}
}

func TestAgainstSchemaRejectsBrokenSchema(t *testing.T) {
	if err := AgainstSchema("broken.schema.json", []byte(`{"type": 42}`), []byte(`{}`)); err == nil {
		t.Error("broken schema accepted")
	}
}
