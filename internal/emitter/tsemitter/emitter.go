// Package tsemitter renders resource descriptors as TypeScript contract
// modules and writes them to disk.
package tsemitter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-json-experiment/json"

	"github.com/hydroserver2/contractgen/internal/analyzer"
	"github.com/hydroserver2/contractgen/internal/naming"
)

const (
	DefaultFileSuffix      = ".contract.ts"
	DefaultNamespaceSuffix = "Contract"
	DefaultIndexFile       = "index.ts"
	DefaultTypesAlias      = "Data"
)

// Options controls how contracts are rendered and where they are written.
type Options struct {
	OutDir          string // required for writes
	TypesImport     string // module specifier of the raw schema types
	TypesAlias      string // defaults to Data
	Source          string // document label in the header comment
	FileSuffix      string // defaults to .contract.ts
	NamespaceSuffix string // defaults to Contract
	IndexFile       string // defaults to index.ts
}

func (o Options) withDefaults() Options {
	if o.TypesAlias == "" {
		o.TypesAlias = DefaultTypesAlias
	}
	if o.FileSuffix == "" {
		o.FileSuffix = DefaultFileSuffix
	}
	if o.NamespaceSuffix == "" {
		o.NamespaceSuffix = DefaultNamespaceSuffix
	}
	if o.IndexFile == "" {
		o.IndexFile = DefaultIndexFile
	}
	return o
}

// PlannedFile describes a file the emitter writes, or would write on a dry run.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// FileName returns the contract file name for resource.
func (o Options) FileName(resource string) string {
	return naming.ContractFileName(resource, o.withDefaults().FileSuffix)
}

// Index returns the index file name.
func (o Options) Index() string {
	return o.withDefaults().IndexFile
}

// funcs is the sprig map plus tsString, which escapes a TypeScript string
// literal. sprig's squote does not escape.
var funcs = func() template.FuncMap {
	m := sprig.TxtFuncMap()
	m["tsString"] = naming.StringLiteral
	return m
}()

var contractTmpl = template.Must(template.New("contract").Funcs(funcs).Parse(`/* AUTO-GENERATED. DO NOT EDIT.
   Generated from {{ .Source | replace "*/" "* /" }} */
import type * as {{ .Alias }} from {{ tsString .TypesImport }}

export namespace {{ .Namespace }} {
  export const route = {{ tsString .Route }} as const
  export type QueryParameters = {{ .Query }}
  export type SummaryResponse = {{ .Summary }}
  export type DetailResponse  = {{ .Detail }}
  export type PostBody        = {{ .Post }}
  export type PatchBody       = {{ .Patch }}
  export type DeleteBody      = {{ .Delete }}
  export const writableKeys = {{ .WritableKeys }} as const
  export declare const __types: {
    SummaryResponse: SummaryResponse
    DetailResponse: DetailResponse
    PostBody: PostBody
    PatchBody: PatchBody
    DeleteBody: DeleteBody
    QueryParameters: QueryParameters
  }
}
`))

var indexTmpl = template.Must(template.New("index").Funcs(funcs).Parse(
	`{{ range . }}export { {{ .Namespace }} } from {{ printf "./%s" .Module | tsString }}
{{ end }}`))

type contractData struct {
	Source       string
	Alias        string
	TypesImport  string
	Namespace    string
	Route        string
	Query        string
	Summary      string
	Detail       string
	Post         string
	Patch        string
	Delete       string
	WritableKeys string
}

// RenderContract formats d. It makes no decisions of its own: unresolved
// types were already left empty by the analyzer and render as never.
func RenderContract(d *analyzer.Descriptor, opts Options) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("tsemitter: nil descriptor")
	}
	opts = opts.withDefaults()
	keys := d.WritableKeys
	if keys == nil {
		keys = []string{}
	}
	wk, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("marshal writable keys for %s: %w", d.Resource, err)
	}
	data := contractData{
		Source:       opts.Source,
		Alias:        opts.TypesAlias,
		TypesImport:  opts.TypesImport,
		Namespace:    naming.Namespace(d.Resource, opts.NamespaceSuffix),
		Route:        d.Route,
		Query:        d.QueryParameters.Type(),
		Summary:      d.SummaryResponse.Type(),
		Detail:       d.DetailResponse.Type(),
		Post:         d.PostBody.Type(),
		Patch:        d.PatchBody.Type(),
		Delete:       d.DeleteBody.Type(),
		WritableKeys: string(wk),
	}
	var buf bytes.Buffer
	if err := contractTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render contract %s: %w", d.Resource, err)
	}
	return buf.Bytes(), nil
}

type indexEntry struct {
	Namespace string
	Module    string
}

// RenderIndex re-exports the namespace of every resource, in order.
func RenderIndex(resources []string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	entries := make([]indexEntry, 0, len(resources))
	for _, r := range resources {
		entries = append(entries, indexEntry{
			Namespace: naming.Namespace(r, opts.NamespaceSuffix),
			Module:    naming.ModuleName(naming.ContractFileName(r, opts.FileSuffix)),
		})
	}
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, entries); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	if buf.Len() == 0 {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// CleanStale creates outDir if needed and removes every regular file whose
// name ends with suffix. It returns the removed file names.
func CleanStale(outDir, suffix string) ([]string, error) {
	if strings.TrimSpace(outDir) == "" {
		return nil, fmt.Errorf("tsemitter: OutDir is required")
	}
	if suffix == "" {
		suffix = DefaultFileSuffix
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", outDir, err)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", outDir, err)
	}
	var removed []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if err := os.Remove(filepath.Join(outDir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove stale %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// WriteFile replaces path with data as a whole file, via a temp file and
// rename. It reports false without touching the file when the content is
// already identical.
func WriteFile(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return false, fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return false, fmt.Errorf("close temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return false, fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return false, fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
