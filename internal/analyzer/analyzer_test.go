package analyzer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hydroserver2/contractgen/internal/spec"
)

func parse(t *testing.T, src string) *spec.Document {
	t.Helper()
	doc, err := spec.Parse([]byte(src), "openapi.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func analyze(t *testing.T, doc *spec.Document, conv Conventions, resource string) *Descriptor {
	t.Helper()
	d, err := New(doc, conv).Analyze(resource)
	if err != nil {
		t.Fatalf("analyze %s: %v", resource, err)
	}
	return d
}

func schemaExpr(name string) string {
	return "Data.components['schemas']['" + name + "']"
}

const thingsDoc = `{
  "openapi": "3.0.3",
  "paths": {
    "/api/data/things": {
      "get": {
        "operationId": "get_things",
        "parameters": [{"name": "page", "in": "query"}],
        "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {
          "type": "array", "items": {"$ref": "#/components/schemas/Other"}
        }}}}}
      },
      "post": {
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/ThingPostBody"}}}},
        "responses": {"201": {"description": "ok"}}
      }
    },
    "/api/data/things/{thing_id}/tags": {
      "get": {"responses": {"200": {"description": "ok"}}}
    },
    "/api/data/things/{thing_id}": {
      "get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Other"}}}}}},
      "patch": {
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/ThingPatchBody"}}}},
        "responses": {"200": {"description": "ok"}}
      },
      "delete": {
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/ThingDeleteBody"}}}},
        "responses": {"204": {"description": "gone"}}
      }
    }
  },
  "components": {"schemas": {
    "Other": {"type": "object"},
    "ThingSummaryResponse": {"type": "object"},
    "ThingDetailResponse": {"type": "object"},
    "ThingQueryParameters": {"type": "object"},
    "ThingBase": {"type": "object", "properties": {
      "id": {"type": "string", "readOnly": true},
      "name": {"type": "string"}
    }},
    "ThingExtra": {"type": "object", "properties": {"description": {"type": "string"}}},
    "ThingPostBody": {"type": "object", "properties": {"name": {"type": "string"}, "siteType": {"type": "string"}}},
    "ThingPatchBody": {"allOf": [
      {"$ref": "#/components/schemas/ThingBase"},
      {"$ref": "#/components/schemas/ThingExtra"}
    ]},
    "ThingDeleteBody": {"type": "object"}
  }}
}`

func TestAnalyze_ExactNamesWin(t *testing.T) {
	t.Parallel()
	d := analyze(t, parse(t, thingsDoc), DefaultConventions(), "things")

	want := &Descriptor{
		Resource:        "things",
		Route:           "things",
		CollectionPath:  "/api/data/things",
		ItemPath:        "/api/data/things/{thing_id}",
		SummaryResponse: TypeRef{Schema: "ThingSummaryResponse", Expr: schemaExpr("ThingSummaryResponse"), Via: Exact},
		DetailResponse:  TypeRef{Schema: "ThingDetailResponse", Expr: schemaExpr("ThingDetailResponse"), Via: Exact},
		PostBody:        TypeRef{Schema: "ThingPostBody", Expr: schemaExpr("ThingPostBody"), Via: Exact},
		PatchBody:       TypeRef{Schema: "ThingPatchBody", Expr: schemaExpr("ThingPatchBody"), Via: Exact},
		DeleteBody:      TypeRef{Schema: "ThingDeleteBody", Expr: schemaExpr("ThingDeleteBody"), Via: Exact},
		QueryParameters: TypeRef{Schema: "ThingQueryParameters", Expr: schemaExpr("ThingQueryParameters"), Via: Exact},
		WritableKeys:    []string{"name", "description"},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_MissingCollectionPath(t *testing.T) {
	t.Parallel()
	_, err := New(parse(t, thingsDoc), DefaultConventions()).Analyze("sensors")
	if !errors.Is(err, ErrNoCollectionPath) {
		t.Fatalf("expected ErrNoCollectionPath, got %v", err)
	}
	if _, err := New(parse(t, thingsDoc), DefaultConventions()).Analyze("  "); err == nil {
		t.Fatalf("expected error for empty resource")
	}
}

const structuralDoc = `{
  "openapi": "3.0.3",
  "paths": {
    "/sensors": {
      "get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {
        "type": "array", "items": {"$ref": "#/components/schemas/Sensor"}
      }}}}}},
      "post": {
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/SensorCreate"}}}},
        "responses": {"201": {"description": "ok"}}
      }
    },
    "/sensors/{id}": {
      "get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Sensor"}}}}}}
    },
    "/datastreams": {
      "get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/PagedDatastreams"}}}}}}
    },
    "/datastreams/{id}": {
      "get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"oneOf": [
        {"$ref": "#/components/schemas/WorkspaceDetail"},
        {"$ref": "#/components/schemas/DatastreamBrief"},
        {"$ref": "#/components/schemas/DatastreamDetailResponse"}
      ]}}}}}}
    },
    "/workspaces": {
      "get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"anyOf": [
        {"$ref": "#/components/schemas/Alpha"},
        {"$ref": "#/components/schemas/BetaSummary"}
      ]}}}}}}
    },
    "/tags": {
      "get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"oneOf": [
        {"$ref": "#/components/schemas/Alpha"},
        {"$ref": "#/components/schemas/Beta"}
      ]}}}}}}
    },
    "/runs": {
      "get": {"responses": {"default": {"description": "err"}}}
    }
  },
  "components": {"schemas": {
    "Sensor": {"type": "object"},
    "SensorCreate": {"allOf": [
      {"type": "object", "properties": {"id": {"type": "string", "readOnly": true}, "name": {"type": "string"}}},
      {"type": "object", "properties": {"manufacturer": {"type": "string"}}}
    ]},
    "PagedDatastreams": {"type": "object", "properties": {
      "count": {"type": "integer"},
      "results": {"type": "array", "items": {"$ref": "#/components/schemas/DatastreamListItem"}}
    }},
    "DatastreamListItem": {"type": "object"},
    "WorkspaceDetail": {"type": "object"},
    "DatastreamBrief": {"type": "object"},
    "DatastreamDetailResponse": {"type": "object"},
    "Alpha": {"type": "object"},
    "Beta": {"type": "object"},
    "BetaSummary": {"type": "object"}
  }}
}`

func TestAnalyze_StructuralArrayFallback(t *testing.T) {
	t.Parallel()
	d := analyze(t, parse(t, structuralDoc), DefaultConventions(), "sensors")

	if got := d.SummaryResponse; got.Schema != "Sensor" || got.Via != Structural {
		t.Fatalf("summary: got %+v", got)
	}
	if got := d.DetailResponse; got.Schema != "Sensor" || got.Via != Structural {
		t.Fatalf("detail: got %+v", got)
	}
	if got := d.PatchBody.Type(); got != "Partial<"+schemaExpr("SensorCreate")+">" {
		t.Fatalf("patch body: got %q", got)
	}
	if d.PatchBody.Via != Derived {
		t.Fatalf("patch body via: got %q", d.PatchBody.Via)
	}
	if diff := cmp.Diff([]string{"name", "manufacturer"}, d.WritableKeys); diff != "" {
		t.Fatalf("writable keys mismatch (-want +got):\n%s", diff)
	}
	if got := d.DeleteBody.Type(); got != "never" {
		t.Fatalf("delete body: got %q", got)
	}
	if got := d.QueryParameters; got.Expr != "{}" || got.Via != Fallback {
		t.Fatalf("query: got %+v", got)
	}
}

func TestAnalyze_PagedAndUnionPick(t *testing.T) {
	t.Parallel()
	d := analyze(t, parse(t, structuralDoc), DefaultConventions(), "datastreams")

	if got := d.SummaryResponse.Schema; got != "DatastreamListItem" {
		t.Fatalf("summary: got %q", got)
	}
	// Token filter drops WorkspaceDetail; the Detail pattern beats DatastreamBrief.
	if got := d.DetailResponse.Schema; got != "DatastreamDetailResponse" {
		t.Fatalf("detail: got %q", got)
	}
	if got := d.PostBody.Type(); got != "never" {
		t.Fatalf("post body: got %q", got)
	}
	if got := d.PatchBody.Type(); got != "never" {
		t.Fatalf("patch body: got %q", got)
	}
	if d.WritableKeys == nil || len(d.WritableKeys) != 0 {
		t.Fatalf("expected empty writable keys, got %#v", d.WritableKeys)
	}
}

func TestAnalyze_UnionWithoutToken(t *testing.T) {
	t.Parallel()
	doc := parse(t, structuralDoc)

	// No name contains "Workspace"; the pattern picks among all refs.
	if got := analyze(t, doc, DefaultConventions(), "workspaces").SummaryResponse.Schema; got != "BetaSummary" {
		t.Fatalf("workspaces summary: got %q", got)
	}
	// Nothing matches either; first collected ref.
	if got := analyze(t, doc, DefaultConventions(), "tags").SummaryResponse.Schema; got != "Alpha" {
		t.Fatalf("tags summary: got %q", got)
	}
	// No item path and no 2xx response.
	d := analyze(t, doc, DefaultConventions(), "runs")
	if d.ItemPath != "" || d.SummaryResponse.Type() != "never" || d.DetailResponse.Type() != "never" {
		t.Fatalf("runs: got %+v", d)
	}
}

func TestAnalyze_DetailFromCollectionResponse(t *testing.T) {
	t.Parallel()
	doc := parse(t, `{
  "openapi": "3.0.3",
  "paths": {
    "/reports": {
      "get": {"responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"oneOf": [
        {"$ref": "#/components/schemas/ReportSummary"},
        {"$ref": "#/components/schemas/ReportDetail"}
      ]}}}}}}
    }
  },
  "components": {"schemas": {
    "ReportSummary": {"type": "object"},
    "ReportDetail": {"type": "object"}
  }}
}`)
	d := analyze(t, doc, DefaultConventions(), "reports")
	if d.ItemPath != "" {
		t.Fatalf("expected no item path, got %q", d.ItemPath)
	}
	if got := d.SummaryResponse.Schema; got != "ReportSummary" {
		t.Fatalf("summary: got %q", got)
	}
	want := TypeRef{Schema: "ReportDetail", Expr: schemaExpr("ReportDetail"), Via: Structural}
	if diff := cmp.Diff(want, d.DetailResponse); diff != "" {
		t.Fatalf("detail mismatch (-want +got):\n%s", diff)
	}

	// Neither ref looks like a detail; the first one is used.
	if got := analyze(t, parse(t, structuralDoc), DefaultConventions(), "workspaces").DetailResponse.Schema; got != "Alpha" {
		t.Fatalf("workspaces detail: got %q", got)
	}
}

func TestAnalyze_QueryFromOperation(t *testing.T) {
	t.Parallel()
	doc := parse(t, structuralDoc)
	conv := DefaultConventions()
	conv.QueryFromOperation = true

	// Without an operationId the fallback stays {}.
	if got := analyze(t, doc, conv, "sensors").QueryParameters.Expr; got != "{}" {
		t.Fatalf("sensors query: got %q", got)
	}

	withID := parse(t, `{"openapi": "3.0.3", "paths": {"/jobs": {"get": {"operationId": "list_jobs", "responses": {}}}}}`)
	got := analyze(t, withID, conv, "jobs").QueryParameters.Expr
	want := "([Data.operations['list_jobs']['parameters']['query']] extends [never] ? {} : NonNullable<Data.operations['list_jobs']['parameters']['query']>)"
	if got != want {
		t.Fatalf("jobs query:\n got %s\nwant %s", got, want)
	}

	// An exact schema still wins.
	if got := analyze(t, parse(t, thingsDoc), conv, "things").QueryParameters.Schema; got != "ThingQueryParameters" {
		t.Fatalf("things query: got %q", got)
	}
}

func TestAnalyze_CustomConventions(t *testing.T) {
	t.Parallel()
	conv := Conventions{TypesAlias: "Etl", SummarySuffix: "Summary"}
	doc := parse(t, `{"openapi": "3.0.3", "paths": {"/etl-jobs": {}}, "components": {"schemas": {"EtlJobSummary": {"type": "object"}}}}`)
	d := analyze(t, doc, conv, "etl-jobs")
	if got := d.SummaryResponse.Type(); got != "Etl.components['schemas']['EtlJobSummary']" {
		t.Fatalf("summary: got %q", got)
	}
}

func TestDiscoverResources(t *testing.T) {
	t.Parallel()
	got := DiscoverResources(parse(t, thingsDoc))
	if diff := cmp.Diff([]string{"tags", "things"}, got); diff != "" {
		t.Fatalf("resources mismatch (-want +got):\n%s", diff)
	}
	got = DiscoverResources(parse(t, structuralDoc))
	if diff := cmp.Diff([]string{"datastreams", "runs", "sensors", "tags", "workspaces"}, got); diff != "" {
		t.Fatalf("resources mismatch (-want +got):\n%s", diff)
	}
	if DiscoverResources(nil) != nil {
		t.Fatalf("expected nil for nil document")
	}
}
