package spec

import (
	"strings"
)

// Visited is an identity set of schema nodes used to stop recursion on
// cyclic reference graphs. A nil Visited is valid; each navigator call then
// starts from an empty set.
type Visited map[Node]struct{}

// add records n and reports whether it was not seen before.
func (v Visited) add(n Node) bool {
	if _, ok := v[n]; ok {
		return false
	}
	v[n] = struct{}{}
	return true
}

// RefName returns the final segment of a "$ref" pointer with JSON pointer
// escapes undone.
func RefName(ref string) string {
	name := ref
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		name = ref[i+1:]
	}
	name = strings.ReplaceAll(name, "~1", "/")
	return strings.ReplaceAll(name, "~0", "~")
}

// ResolveRef looks up the schema a ref points at. It returns nil when the
// target does not exist.
func (d *Document) ResolveRef(ref string) Node {
	if d == nil || ref == "" {
		return nil
	}
	return d.Schemas[RefName(ref)]
}

// ResolveResponse looks up a components.responses entry, following
// response-to-response refs.
func (d *Document) ResolveResponse(ref string) *Response {
	if d == nil || ref == "" {
		return nil
	}
	r := d.Responses[RefName(ref)]
	for hops := 0; r != nil && r.Ref != "" && len(r.Content) == 0 && hops < len(d.Responses); hops++ {
		r = d.Responses[RefName(r.Ref)]
	}
	return r
}

// ResolveRequestBody looks up a components.requestBodies entry, following
// body-to-body refs.
func (d *Document) ResolveRequestBody(ref string) *RequestBody {
	if d == nil || ref == "" {
		return nil
	}
	rb := d.RequestBodies[RefName(ref)]
	for hops := 0; rb != nil && rb.Ref != "" && len(rb.Content) == 0 && hops < len(d.RequestBodies); hops++ {
		rb = d.RequestBodies[RefName(rb.Ref)]
	}
	return rb
}

// Dereference follows a chain of refs starting at n. If the chain is cyclic
// or ends at a missing schema, n itself is returned.
func (d *Document) Dereference(n Node, seen Visited) Node {
	if seen == nil {
		seen = Visited{}
	}
	cur := n
	for {
		r, ok := cur.(*Ref)
		if !ok {
			return cur
		}
		if !seen.add(r) {
			return n
		}
		target := d.ResolveRef(r.Ref)
		if target == nil {
			return n
		}
		cur = target
	}
}

// CollectRefs returns every ref reachable from n in depth-first pre-order,
// walking items, additionalProperties, properties, composition branches and
// the targets of the refs themselves.
func (d *Document) CollectRefs(n Node, seen Visited) []string {
	if seen == nil {
		seen = Visited{}
	}
	var out []string
	d.collectRefs(n, &out, seen)
	return out
}

func (d *Document) collectRefs(n Node, out *[]string, seen Visited) {
	if n == nil || !seen.add(n) {
		return
	}
	switch n := n.(type) {
	case *Ref:
		*out = append(*out, n.Ref)
		d.collectRefs(d.ResolveRef(n.Ref), out, seen)
	case *Array:
		d.collectRefs(n.Items, out, seen)
	case *Object:
		d.collectRefs(n.AdditionalProperties, out, seen)
		for _, p := range n.Properties {
			d.collectRefs(p.Schema, out, seen)
		}
	case *Composition:
		d.collectRefs(n.Base, out, seen)
		for _, b := range n.Branches() {
			d.collectRefs(b, out, seen)
		}
	}
}

// PropertySet accumulates properties in first-insertion order. A later Set
// for an existing name replaces its read-only flag and schema but keeps its
// position.
type PropertySet struct {
	names   []string
	entries map[string]propertyEntry
}

type propertyEntry struct {
	readOnly bool
	schema   Node
}

func (s *PropertySet) Set(name string, readOnly bool, schema Node) {
	if s.entries == nil {
		s.entries = make(map[string]propertyEntry)
	}
	if _, ok := s.entries[name]; !ok {
		s.names = append(s.names, name)
	}
	s.entries[name] = propertyEntry{readOnly: readOnly, schema: schema}
}

// Writable returns the names whose final declaration is not read-only.
func (s *PropertySet) Writable() []string {
	out := make([]string, 0, len(s.names))
	for _, name := range s.names {
		if !s.entries[name].readOnly {
			out = append(out, name)
		}
	}
	return out
}

// Schema returns the last declared schema for name.
func (s *PropertySet) Schema(name string) Node {
	return s.entries[name].schema
}

// GatherWritable merges the properties of every object schema reachable from
// n through refs and allOf/oneOf/anyOf into props.
func (d *Document) GatherWritable(n Node, props *PropertySet, seen Visited) {
	if props == nil {
		return
	}
	if seen == nil {
		seen = Visited{}
	}
	d.gatherWritable(n, props, seen)
}

func (d *Document) gatherWritable(n Node, props *PropertySet, seen Visited) {
	if n == nil || !seen.add(n) {
		return
	}
	switch n := n.(type) {
	case *Ref:
		d.gatherWritable(d.ResolveRef(n.Ref), props, seen)
	case *Object:
		if n.Type != "object" {
			return
		}
		for _, p := range n.Properties {
			props.Set(p.Name, p.ReadOnly, p.Schema)
		}
	case *Composition:
		d.gatherWritable(n.Base, props, seen)
		for _, b := range n.Branches() {
			d.gatherWritable(b, props, seen)
		}
	}
}

// WritableKeys is GatherWritable with a fresh set.
func (d *Document) WritableKeys(n Node) []string {
	var props PropertySet
	d.GatherWritable(n, &props, nil)
	return props.Writable()
}

// ResponseSchema returns the schema of op's success response: status 200,
// else the first 2xx. Nil when there is none.
func (d *Document) ResponseSchema(op *Operation) Node {
	if op == nil {
		return nil
	}
	resp := successResponse(op.Responses)
	if resp == nil {
		return nil
	}
	content := resp.Content
	if resp.Ref != "" {
		if target := d.ResolveResponse(resp.Ref); target != nil && len(target.Content) > 0 {
			content = target.Content
		}
	}
	return pickMedia(content)
}

// RequestSchema returns the schema of op's request body, or nil.
func (d *Document) RequestSchema(op *Operation) Node {
	if op == nil || op.RequestBody == nil {
		return nil
	}
	content := op.RequestBody.Content
	if op.RequestBody.Ref != "" {
		if target := d.ResolveRequestBody(op.RequestBody.Ref); target != nil && len(target.Content) > 0 {
			content = target.Content
		}
	}
	return pickMedia(content)
}

func successResponse(responses []Response) *Response {
	for i := range responses {
		if responses[i].Status == "200" {
			return &responses[i]
		}
	}
	// Responses are sorted by status, so the first 2xx is the lowest.
	for i := range responses {
		if s := responses[i].Status; len(s) == 3 && s[0] == '2' {
			return &responses[i]
		}
	}
	return nil
}

func pickMedia(content []Media) Node {
	for _, m := range content {
		if strings.Contains(strings.ToLower(m.Mime), "json") {
			return m.Schema
		}
	}
	if len(content) > 0 {
		return content[0].Schema
	}
	return nil
}
