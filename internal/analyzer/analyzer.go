// Package analyzer decides, per resource, the paths and TypeScript types a
// contract exposes. Exact schema-name conventions are tried first; structural
// inference over the operations is the fallback.
package analyzer

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hydroserver2/contractgen/internal/naming"
	"github.com/hydroserver2/contractgen/internal/spec"
)

// ErrNoCollectionPath means no path in the document ends with the resource.
var ErrNoCollectionPath = errors.New("no collection path")

const schemaRefPrefix = "#/components/schemas/"

// Resolution records how a type was decided.
type Resolution string

const (
	Unresolved Resolution = ""
	Exact      Resolution = "exact"
	Structural Resolution = "structural"
	Derived    Resolution = "derived"
	Fallback   Resolution = "fallback"
)

// TypeRef is a finalized TypeScript type expression. The zero value renders
// as never.
type TypeRef struct {
	Schema string // component schema name, when the type is one
	Expr   string
	Via    Resolution
}

// Type returns the expression to emit.
func (r TypeRef) Type() string {
	if r.Expr == "" {
		return "never"
	}
	return r.Expr
}

// Descriptor is the analysis result for one resource.
type Descriptor struct {
	Resource       string
	Route          string
	CollectionPath string
	ItemPath       string

	SummaryResponse TypeRef
	DetailResponse  TypeRef
	PostBody        TypeRef
	PatchBody       TypeRef
	DeleteBody      TypeRef
	QueryParameters TypeRef

	WritableKeys []string
}

type Analyzer struct {
	doc  *spec.Document
	conv Conventions
}

func New(doc *spec.Document, conv Conventions) *Analyzer {
	return &Analyzer{doc: doc, conv: conv.withDefaults()}
}

// Analyze builds the descriptor for resource, a kebab-case plural path
// segment such as "observed-properties". It fails only when the document has
// no collection path for the resource; unresolved types are left as never.
func (a *Analyzer) Analyze(resource string) (*Descriptor, error) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return nil, fmt.Errorf("analyze: empty resource name")
	}
	collection, ok := a.collectionPath(resource)
	if !ok {
		return nil, fmt.Errorf("analyze %s: %w", resource, ErrNoCollectionPath)
	}
	item, _ := a.itemPath(collection.Path)

	token := naming.SingularPascal(resource)
	d := &Descriptor{
		Resource:       resource,
		Route:          resource,
		CollectionPath: collection.Path,
		ItemPath:       item.Path,
	}

	colGet := collection.Operation(spec.GET)
	itemGet := item.Operation(spec.GET)

	d.SummaryResponse = a.exact(token + a.conv.SummarySuffix)
	if d.SummaryResponse.Expr == "" {
		d.SummaryResponse = a.structural(a.doc.ResponseSchema(colGet), token, a.conv.SummaryPattern, true)
	}
	d.DetailResponse = a.exact(token + a.conv.DetailSuffix)
	if d.DetailResponse.Expr == "" {
		if itemSchema := a.doc.ResponseSchema(itemGet); itemSchema != nil {
			d.DetailResponse = a.structural(itemSchema, token, a.conv.DetailPattern, false)
		} else if ref := pickRef(a.schemaRefs(a.doc.ResponseSchema(colGet)), token, a.conv.DetailPattern); ref != "" {
			// Without an item response, a detail-looking ref may still appear
			// in the collection response.
			d.DetailResponse = a.schemaRef(ref, Structural)
		}
	}

	postSchema := a.doc.RequestSchema(collection.Operation(spec.POST))
	patchSchema := a.doc.RequestSchema(firstOp(item.Operation(spec.PATCH), collection.Operation(spec.PATCH)))
	deleteSchema := a.doc.RequestSchema(firstOp(item.Operation(spec.DELETE), collection.Operation(spec.DELETE)))

	d.PostBody = a.direct(postSchema)
	d.PatchBody = a.direct(patchSchema)
	if d.PatchBody.Expr == "" && d.PostBody.Expr != "" {
		d.PatchBody = TypeRef{Expr: naming.Partial(d.PostBody.Expr), Via: Derived}
	}
	d.DeleteBody = a.direct(deleteSchema)

	writable := patchSchema
	if writable == nil {
		writable = postSchema
	}
	d.WritableKeys = a.doc.WritableKeys(writable)
	if d.WritableKeys == nil {
		d.WritableKeys = []string{}
	}

	d.QueryParameters = a.exact(token + a.conv.QuerySuffix)
	if d.QueryParameters.Expr == "" {
		d.QueryParameters = TypeRef{Expr: "{}", Via: Fallback}
		if a.conv.QueryFromOperation && colGet != nil && colGet.ID != "" {
			d.QueryParameters = TypeRef{
				Expr: naming.OperationQueryExpression(a.conv.TypesAlias, colGet.ID),
				Via:  Structural,
			}
		}
	}
	return d, nil
}

// collectionPath returns the first path, in document order, whose final
// segment is resource.
func (a *Analyzer) collectionPath(resource string) (spec.PathItem, bool) {
	for _, p := range a.doc.Paths {
		if lastSegment(p.Path) == resource {
			return p, true
		}
	}
	return spec.PathItem{}, false
}

// itemPath prefers "<collection>/{param}" and falls back to the first path
// below "<collection>/{".
func (a *Analyzer) itemPath(collection string) (spec.PathItem, bool) {
	prefix := strings.TrimSuffix(collection, "/") + "/{"
	var fallback *spec.PathItem
	for i, p := range a.doc.Paths {
		if !strings.HasPrefix(p.Path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p.Path, prefix[:len(prefix)-1])
		if !strings.Contains(rest, "/") && strings.HasSuffix(rest, "}") {
			return p, true
		}
		if fallback == nil {
			fallback = &a.doc.Paths[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return spec.PathItem{}, false
}

func (a *Analyzer) exact(name string) TypeRef {
	if _, ok := a.doc.Schemas[name]; !ok {
		return TypeRef{}
	}
	return TypeRef{Schema: name, Expr: naming.SchemaTypeExpression(a.conv.TypesAlias, name), Via: Exact}
}

func (a *Analyzer) schemaRef(ref string, via Resolution) TypeRef {
	return TypeRef{Schema: spec.RefName(ref), Expr: naming.RefToTypeExpression(a.conv.TypesAlias, ref), Via: via}
}

// direct returns the body type when the request schema is a plain ref.
func (a *Analyzer) direct(schema spec.Node) TypeRef {
	if r, ok := schema.(*spec.Ref); ok && strings.HasPrefix(r.Ref, schemaRefPrefix) {
		return a.schemaRef(r.Ref, Exact)
	}
	return TypeRef{}
}

// structural infers a response type from its schema. List shapes (a bare
// array, or a paged object with a results/items array) are only considered
// when list is set.
func (a *Analyzer) structural(schema spec.Node, token string, prefer *regexp.Regexp, list bool) TypeRef {
	if schema == nil {
		return TypeRef{}
	}
	if list {
		if ref := a.listItemRef(schema); ref != "" {
			return a.schemaRef(ref, Structural)
		}
	}
	if r, ok := schema.(*spec.Ref); ok && strings.HasPrefix(r.Ref, schemaRefPrefix) {
		return a.schemaRef(r.Ref, Structural)
	}
	if ref := pickRef(a.schemaRefs(schema), token, prefer); ref != "" {
		return a.schemaRef(ref, Structural)
	}
	return TypeRef{}
}

func (a *Analyzer) listItemRef(schema spec.Node) string {
	switch s := a.doc.Dereference(schema, nil).(type) {
	case *spec.Array:
		return itemRef(s)
	case *spec.Object:
		for _, key := range []string{"results", "items"} {
			if arr, ok := a.doc.Dereference(s.Property(key), nil).(*spec.Array); ok {
				if ref := itemRef(arr); ref != "" {
					return ref
				}
			}
		}
	}
	return ""
}

func itemRef(arr *spec.Array) string {
	if r, ok := arr.Items.(*spec.Ref); ok && strings.HasPrefix(r.Ref, schemaRefPrefix) {
		return r.Ref
	}
	return ""
}

// schemaRefs collects the distinct component-schema refs reachable from n.
func (a *Analyzer) schemaRefs(n spec.Node) []string {
	all := a.doc.CollectRefs(n, nil)
	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, r := range all {
		if !strings.HasPrefix(r, schemaRefPrefix) || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// pickRef narrows refs to names containing token (all refs when none do),
// then returns the first name matching prefer, else the first candidate.
func pickRef(refs []string, token string, prefer *regexp.Regexp) string {
	var candidates []string
	for _, r := range refs {
		if strings.Contains(spec.RefName(r), token) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		candidates = refs
	}
	for _, r := range candidates {
		if prefer != nil && prefer.MatchString(spec.RefName(r)) {
			return r
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

func firstOp(ops ...*spec.Operation) *spec.Operation {
	for _, op := range ops {
		if op != nil {
			return op
		}
	}
	return nil
}

func lastSegment(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	return segs[len(segs)-1]
}

// DiscoverResources lists the final non-parameter segment of every path,
// deduplicated and sorted. Used when no explicit resource list is given.
func DiscoverResources(doc *spec.Document) []string {
	if doc == nil {
		return nil
	}
	set := make(map[string]struct{})
	for _, p := range doc.Paths {
		seg := lastSegment(p.Path)
		if seg == "" || (strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")) {
			continue
		}
		set[seg] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
