package registry

// defaultRegistry is the compiled-in descriptor table. A YAML registry
// file given on the command line replaces the package list; the
// allowlists below also serve as fallbacks when the file omits them.
var defaultRegistry = registryFile{
	Packages: []Descriptor{
		{
			Name:             "ingest",
			PublishedHandler: "ingest.py",
			SourceHandler:    "ingest_handler.py",
			RequiredSharedLibs: []string{
				"schemas.py",
				"s3util.py",
			},
		},
		{
			Name:             "transform",
			PublishedHandler: "transform.py",
			SourceHandler:    "transform.py",
			RequiredSharedLibs: []string{
				"schemas.py",
			},
		},
		{
			Name:             "notify",
			PublishedHandler: "notify.py",
			SourceHandler:    "notify.py",
		},
	},
	// Modules the deployment platform provides in the execution
	// environment. A missing import that resolves to one of these is a
	// warning, not a broken build.
	RuntimeProvided: []string{
		"boto3",
		"botocore",
		"awslambdaric",
		"s3transfer",
		"urllib3",
	},
	// Modules that must import cleanly from the extracted archive even if
	// the handler itself never imports them directly.
	KeyDependencies: []string{
		"requests",
	},
	// Development-only dependency names that must never be bundled.
	DevOnly: []string{
		"pytest",
		"pytest_mock",
		"moto",
		"black",
		"flake8",
		"mypy",
	},
}

// registrySchema validates the YAML registry file after YAML to JSON
// conversion.
var registrySchema = []byte(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["packages"],
  "additionalProperties": false,
  "properties": {
    "packages": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "publishedHandler"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "publishedHandler": {"type": "string", "minLength": 1},
          "sourceHandler": {"type": "string"},
          "requiredSharedLibs": {
            "type": "array",
            "items": {"type": "string", "minLength": 1}
          }
        }
      }
    },
    "runtimeProvided": {"type": "array", "items": {"type": "string"}},
    "keyDependencies": {"type": "array", "items": {"type": "string"}},
    "devOnlyDependencies": {"type": "array", "items": {"type": "string"}}
  }
}`)
