package spec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "file:///etc/hosts")
	if err == nil {
		t.Fatalf("expected error for file:// URL")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != InputError {
		t.Fatalf("expected InputError, got %v", se.Code)
	}
}

func TestLoad_RejectsRemoteAndUnknownSchemes(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"https://example.com/openapi.json", "ftp://example.com/spec.yaml"} {
		_, err := Load(context.Background(), in)
		var se *SpecError
		if !errors.As(err, &se) || se.Code != InputError {
			t.Fatalf("%s: expected InputError, got %v (%T)", in, err, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected cause to wrap os.ErrNotExist, got %v", err)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"paths": {`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(context.Background(), path)
	var se *SpecError
	if !errors.As(err, &se) || se.Code != ParseError {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if se.Location == "" {
		t.Fatalf("expected location to be set")
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("  \n"), "empty.json")
	var se *SpecError
	if !errors.As(err, &se) || se.Code != ParseError {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParse_RejectsUnsupportedVersion(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`{"openapi": "4.0.0", "paths": {}}`), "v4.json")
	if err == nil || !strings.Contains(err.Error(), "unsupported OpenAPI version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestLoad_JSONKeepsDocumentOrder(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "openapi.json")
	// Tab indentation on purpose; JSON is not always valid YAML.
	content := "{\n\t\"openapi\": \"3.0.3\",\n\t\"paths\": {\n\t\t\"/things\": {},\n\t\t\"/sensors\": {},\n\t\t\"/datastreams\": {}\n\t},\n" +
		"\t\"components\": {\"schemas\": {\"Thing\": {\"type\": \"object\", \"properties\": {\"zeta\": {\"type\": \"string\"}, \"alpha\": {\"type\": \"string\"}}}}}\n}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !filepath.IsAbs(doc.Location) {
		t.Fatalf("expected absolute location, got %q", doc.Location)
	}
	var paths []string
	for _, p := range doc.Paths {
		paths = append(paths, p.Path)
	}
	if diff := cmp.Diff([]string{"/things", "/sensors", "/datastreams"}, paths); diff != "" {
		t.Fatalf("path order mismatch (-want +got):\n%s", diff)
	}
	obj, ok := doc.Schemas["Thing"].(*Object)
	if !ok {
		t.Fatalf("expected object schema, got %T", doc.Schemas["Thing"])
	}
	if obj.Properties[0].Name != "zeta" || obj.Properties[1].Name != "alpha" {
		t.Fatalf("property order not preserved: %+v", obj.Properties)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	content := strings.TrimSpace(`openapi: 3.0.0
info:
  title: Sample
  version: "1.0.0"
paths:
  /things:
    get:
      operationId: listThings
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Thing'
components:
  schemas:
    Thing:
      type: object
      properties:
        name:
          type: string
`) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	get := doc.Paths[0].Operation(GET)
	if get == nil || get.ID != "listThings" {
		t.Fatalf("expected listThings operation, got %+v", get)
	}
	arr, ok := doc.ResponseSchema(get).(*Array)
	if !ok {
		t.Fatalf("expected array response schema")
	}
	if ref, ok := arr.Items.(*Ref); !ok || ref.Ref != "#/components/schemas/Thing" {
		t.Fatalf("expected Thing ref, got %#v", arr.Items)
	}
}

func TestParse_OpenAPI31Schemas(t *testing.T) {
	t.Parallel()
	content := `{
  "openapi": "3.1.0",
  "info": {"title": "Sample", "version": "1.0.0"},
  "paths": {
    "/things": {"get": {"operationId": "listThings", "responses": {"200": {"description": "ok",
      "content": {"application/json": {"schema": {"type": "array", "items": {"$ref": "#/components/schemas/Thing"}}}}}}}}
  },
  "components": {
    "schemas": {
      "Thing": {"type": "object", "properties": {
        "name": {"type": ["string", "null"]},
        "count": {"type": "integer", "exclusiveMinimum": 0},
        "ratio": {"type": ["null", "number"], "minimum": 1, "exclusiveMaximum": 10},
        "nothing": {"type": ["null"]}
      }}
    }
  }
}`
	doc, err := Parse([]byte(content), "openapi.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	obj, ok := doc.Schemas["Thing"].(*Object)
	if !ok {
		t.Fatalf("expected object schema, got %T", doc.Schemas["Thing"])
	}
	var names, types []string
	for _, p := range obj.Properties {
		sc, ok := p.Schema.(*Scalar)
		if !ok {
			t.Fatalf("%s: expected scalar, got %T", p.Name, p.Schema)
		}
		names = append(names, p.Name)
		types = append(types, sc.Type)
	}
	if diff := cmp.Diff([]string{"name", "count", "ratio", "nothing"}, names); diff != "" {
		t.Fatalf("property order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"string", "integer", "number", "null"}, types); diff != "" {
		t.Fatalf("property types mismatch (-want +got):\n%s", diff)
	}
	get := doc.Paths[0].Operation(GET)
	if get == nil || get.ID != "listThings" {
		t.Fatalf("expected listThings operation, got %+v", get)
	}
}

func TestParse_OpenAPI31YAML(t *testing.T) {
	t.Parallel()
	content := strings.TrimSpace(`openapi: 3.1.0
paths: {}
components:
  schemas:
    Reading:
      type: object
      properties:
        value:
          type: [number, "null"]
          exclusiveMinimum: 0
`) + "\n"
	doc, err := Parse([]byte(content), "openapi.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	obj, ok := doc.Schemas["Reading"].(*Object)
	if !ok || len(obj.Properties) != 1 {
		t.Fatalf("expected one-property object, got %#v", doc.Schemas["Reading"])
	}
	if sc, ok := obj.Properties[0].Schema.(*Scalar); !ok || sc.Type != "number" {
		t.Fatalf("expected number scalar, got %#v", obj.Properties[0].Schema)
	}
}

func TestLoad_V2_Conversion_Success(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "swagger.yaml")
	content := strings.TrimSpace(`swagger: "2.0"
info:
  title: Sample
  version: "1.0.0"
paths:
  /things:
    post:
      consumes: [application/json]
      parameters:
        - in: body
          name: body
          schema:
            $ref: '#/definitions/ThingPostBody'
      responses:
        "201":
          description: created
definitions:
  ThingPostBody:
    type: object
    properties:
      name:
        type: string
      description:
        type: string
`) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Schemas["ThingPostBody"] == nil {
		t.Fatalf("expected definitions to become component schemas")
	}
	post := doc.Paths[0].Operation(POST)
	if post == nil {
		t.Fatalf("expected POST operation")
	}
	if diff := cmp.Diff([]string{"name", "description"}, doc.WritableKeys(doc.RequestSchema(post))); diff != "" {
		t.Fatalf("writable keys mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_V2_InvalidVersion(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("swagger: \"1.2\"\npaths: {}\n"), "old.yaml")
	var se *SpecError
	if !errors.As(err, &se) || se.Code != ParseError {
		t.Fatalf("expected ParseError, got %v", err)
	}
}
