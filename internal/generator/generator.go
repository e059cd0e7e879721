// Package generator runs one API surface end to end: load the document,
// clear stale contracts, analyze and emit each resource, then write the
// index.
package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hydroserver2/contractgen/internal/analyzer"
	"github.com/hydroserver2/contractgen/internal/emitter/tsemitter"
	"github.com/hydroserver2/contractgen/internal/spec"
)

// Options configures a single run.
type Options struct {
	Input       string   // OpenAPI document path
	OutDir      string   // contract output directory
	TypesImport string   // module specifier of the raw schema types
	Resources   []string // explicit resource list; empty means discover from paths

	Conventions analyzer.Conventions

	FileSuffix      string
	NamespaceSuffix string
	IndexFile       string

	DryRun bool

	// WorkDir is what the header's source path is made relative to.
	// Defaults to the process working directory.
	WorkDir string

	Logger *zerolog.Logger
}

// Skip is a resource that produced no contract.
type Skip struct {
	Resource string
	Reason   string
}

// Result summarizes a run.
type Result struct {
	Source      string
	Descriptors []*analyzer.Descriptor
	Files       []tsemitter.PlannedFile // contracts in resource order, then the index
	Skipped     []Skip
	Removed     []string // stale contracts deleted before emitting
}

// Run executes the batch. A document that cannot be loaded, or a filesystem
// failure, aborts the run. A resource that cannot be analyzed is logged and
// skipped.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.Input) == "" {
		return nil, fmt.Errorf("generator: Input is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("generator: OutDir is required")
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	doc, err := spec.Load(ctx, opts.Input)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("document", doc.Location).Int("paths", len(doc.Paths)).Int("schemas", len(doc.Schemas)).Msg("loaded document")

	res := &Result{Source: sourceLabel(opts.WorkDir, doc.Location)}
	emitOpts := tsemitter.Options{
		OutDir:          opts.OutDir,
		TypesImport:     opts.TypesImport,
		TypesAlias:      opts.Conventions.TypesAlias,
		Source:          res.Source,
		FileSuffix:      opts.FileSuffix,
		NamespaceSuffix: opts.NamespaceSuffix,
		IndexFile:       opts.IndexFile,
	}

	if !opts.DryRun {
		removed, err := tsemitter.CleanStale(opts.OutDir, opts.FileSuffix)
		if err != nil {
			return nil, err
		}
		for _, name := range removed {
			logger.Debug().Str("file", name).Msg("removed stale contract")
		}
		res.Removed = removed
	}

	resources := normalizeResources(opts.Resources)
	if len(resources) == 0 {
		resources = analyzer.DiscoverResources(doc)
		logger.Info().Strs("resources", resources).Msg("no resources given; discovered from paths")
	}

	an := analyzer.New(doc, opts.Conventions)
	var emitted []string
	for _, resource := range resources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := analyzeResource(an, resource)
		if err != nil {
			logger.Warn().Str("resource", resource).Err(err).Msg("skipping resource: could not analyze from OpenAPI")
			res.Skipped = append(res.Skipped, Skip{Resource: resource, Reason: err.Error()})
			continue
		}
		logger.Debug().
			Str("resource", resource).
			Str("collection", d.CollectionPath).
			Str("item", d.ItemPath).
			Str("summary", string(d.SummaryResponse.Via)).
			Str("detail", string(d.DetailResponse.Via)).
			Str("patch", string(d.PatchBody.Via)).
			Str("query", string(d.QueryParameters.Via)).
			Msg("analyzed resource")

		data, err := tsemitter.RenderContract(d, emitOpts)
		if err != nil {
			return nil, err
		}
		name := emitOpts.FileName(resource)
		if err := emit(logger, opts, name, data); err != nil {
			return nil, err
		}
		res.Descriptors = append(res.Descriptors, d)
		res.Files = append(res.Files, planned(name, data))
		emitted = append(emitted, resource)
	}

	index, err := tsemitter.RenderIndex(emitted, emitOpts)
	if err != nil {
		return nil, err
	}
	indexName := emitOpts.Index()
	if err := emit(logger, opts, indexName, index); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, planned(indexName, index))

	logger.Info().
		Int("contracts", len(emitted)).
		Int("skipped", len(res.Skipped)).
		Str("out", opts.OutDir).
		Bool("dry_run", opts.DryRun).
		Msg("contracts generated")
	return res, nil
}

func emit(logger zerolog.Logger, opts Options, name string, data []byte) error {
	if opts.DryRun {
		return nil
	}
	path := filepath.Join(opts.OutDir, name)
	changed, err := tsemitter.WriteFile(path, data)
	if err != nil {
		return err
	}
	if changed {
		logger.Info().Str("file", path).Msg("wrote")
	} else {
		logger.Debug().Str("file", path).Msg("unchanged")
	}
	return nil
}

// analyzeResource contains a panic from a malformed document to the one
// resource that triggered it.
func analyzeResource(an *analyzer.Analyzer, resource string) (d *analyzer.Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("analyze %s: panic: %v", resource, r)
		}
	}()
	return an.Analyze(resource)
}

func planned(name string, data []byte) tsemitter.PlannedFile {
	return tsemitter.PlannedFile{RelPath: filepath.ToSlash(name), Size: len(data), Mode: 0o644}
}

// normalizeResources trims names and drops empties and repeats, keeping the
// first occurrence.
func normalizeResources(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// sourceLabel renders location relative to workDir with forward slashes.
func sourceLabel(workDir, location string) string {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return filepath.ToSlash(location)
		}
		workDir = wd
	}
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	rel, err := filepath.Rel(workDir, location)
	if err != nil {
		return filepath.ToSlash(location)
	}
	return filepath.ToSlash(rel)
}
