package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/ThePuug/closed-economy/internal/net/proto"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath, buildSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{}
	schema := reflector.Reflect(new(proto.Message))
	schema.Title = "Closed Economy Wire Envelope"
	schema.Description = fmt.Sprintf("Validates try and do frames of protocol version %d", proto.Version)
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
