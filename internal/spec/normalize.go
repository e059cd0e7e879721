package spec

import (
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// BuildDocument converts a decoded OpenAPI v3 document into the normalized
// model. order supplies document key order for paths, properties and media
// types; it may be nil, in which case keys are sorted lexically.
//
// References are kept as *Ref nodes and are never followed here, so
// self-referential schemas normalize without special handling.
func BuildDocument(doc *openapi3.T, order *KeyOrder, location string) *Document {
	d := &Document{
		Location:      location,
		Schemas:       map[string]Node{},
		Responses:     map[string]*Response{},
		RequestBodies: map[string]*RequestBody{},
	}
	if doc == nil {
		return d
	}
	b := &builder{order: order}

	if doc.Components != nil {
		for name, ref := range doc.Components.Schemas {
			if n := b.node(ref, "/components/schemas/"+escapePointer(name)); n != nil {
				d.Schemas[name] = n
			}
		}
		for name, ref := range doc.Components.Responses {
			if ref == nil {
				continue
			}
			r := b.response(ref, "/components/responses/"+escapePointer(name))
			r.Status = name
			d.Responses[name] = r
		}
		for name, ref := range doc.Components.RequestBodies {
			if ref == nil {
				continue
			}
			d.RequestBodies[name] = b.requestBody(ref, "/components/requestBodies/"+escapePointer(name))
		}
	}

	for _, p := range sortedKeys(order, "/paths", doc.Paths) {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		d.Paths = append(d.Paths, b.pathItem(p, item))
	}
	return d
}

type builder struct {
	order *KeyOrder
}

func (b *builder) pathItem(p string, item *openapi3.PathItem) PathItem {
	ptr := "/paths/" + escapePointer(p)

	// Merge parameters: path-level first, overridden by op-level.
	baseParams := make(map[string]Parameter)
	for _, pref := range item.Parameters {
		if pm, ok := toParameter(pref); ok {
			baseParams[paramKey(pm.In, pm.Name)] = pm
		}
	}

	ops := []struct {
		m HttpMethod
		o *openapi3.Operation
	}{
		{GET, item.Get},
		{POST, item.Post},
		{PUT, item.Put},
		{DELETE, item.Delete},
		{PATCH, item.Patch},
		{HEAD, item.Head},
		{OPTIONS, item.Options},
		{TRACE, item.Trace},
	}

	pi := PathItem{Path: p, Operations: map[HttpMethod]*Operation{}}
	for _, pair := range ops {
		if pair.o == nil {
			continue
		}
		opPtr := ptr + "/" + string(pair.m)
		op := &Operation{
			ID:     strings.TrimSpace(pair.o.OperationID),
			Method: pair.m,
			Path:   p,
		}

		merged := make(map[string]Parameter, len(baseParams))
		for k, v := range baseParams {
			merged[k] = v
		}
		for _, pref := range pair.o.Parameters {
			if pm, ok := toParameter(pref); ok {
				merged[paramKey(pm.In, pm.Name)] = pm
			}
		}
		for _, v := range merged {
			op.Parameters = append(op.Parameters, v)
		}
		sort.Slice(op.Parameters, func(i, j int) bool {
			if op.Parameters[i].In == op.Parameters[j].In {
				return op.Parameters[i].Name < op.Parameters[j].Name
			}
			return op.Parameters[i].In < op.Parameters[j].In
		})

		if pair.o.RequestBody != nil {
			op.RequestBody = b.requestBody(pair.o.RequestBody, opPtr+"/requestBody")
		}

		codes := make([]string, 0, len(pair.o.Responses))
		for code := range pair.o.Responses {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			rref := pair.o.Responses[code]
			if rref == nil {
				continue
			}
			r := b.response(rref, opPtr+"/responses/"+escapePointer(code))
			r.Status = code
			op.Responses = append(op.Responses, *r)
		}

		pi.Operations[pair.m] = op
	}
	return pi
}

func (b *builder) response(ref *openapi3.ResponseRef, ptr string) *Response {
	r := &Response{Ref: ref.Ref}
	if ref.Value != nil {
		r.Content = b.media(ref.Value.Content, ptr+"/content")
	}
	return r
}

func (b *builder) requestBody(ref *openapi3.RequestBodyRef, ptr string) *RequestBody {
	rb := &RequestBody{Ref: ref.Ref}
	if ref.Value != nil {
		rb.Required = ref.Value.Required
		rb.Content = b.media(ref.Value.Content, ptr+"/content")
	}
	return rb
}

func (b *builder) media(content openapi3.Content, ptr string) []Media {
	if len(content) == 0 {
		return nil
	}
	out := make([]Media, 0, len(content))
	for _, mime := range sortedKeys(b.order, ptr, content) {
		mt := content[mime]
		if mt == nil {
			continue
		}
		out = append(out, Media{
			Mime:   mime,
			Schema: b.node(mt.Schema, ptr+"/"+escapePointer(mime)+"/schema"),
		})
	}
	return out
}

func (b *builder) node(ref *openapi3.SchemaRef, ptr string) Node {
	if ref == nil {
		return nil
	}
	if ref.Ref != "" {
		return &Ref{Ref: ref.Ref}
	}
	v := ref.Value
	if v == nil {
		return nil
	}
	base := b.shape(v, ptr)
	if len(v.AllOf) == 0 && len(v.OneOf) == 0 && len(v.AnyOf) == 0 {
		if base == nil {
			return &Scalar{}
		}
		return base
	}
	return &Composition{
		Base:  base,
		AllOf: b.nodes(v.AllOf, ptr+"/allOf"),
		OneOf: b.nodes(v.OneOf, ptr+"/oneOf"),
		AnyOf: b.nodes(v.AnyOf, ptr+"/anyOf"),
	}
}

// shape returns the schema's own structure, ignoring composition keywords.
func (b *builder) shape(v *openapi3.Schema, ptr string) Node {
	switch {
	case v.Type == "array" || v.Items != nil:
		return &Array{Items: b.node(v.Items, ptr+"/items")}
	case v.Type == "object" || len(v.Properties) > 0 || v.AdditionalProperties.Schema != nil:
		obj := &Object{Type: strings.TrimSpace(v.Type)}
		for _, name := range sortedKeys(b.order, ptr+"/properties", v.Properties) {
			p := v.Properties[name]
			propPtr := ptr + "/properties/" + escapePointer(name)
			readOnly := b.order.readOnlyRef(propPtr)
			if p != nil && p.Ref == "" && p.Value != nil && p.Value.ReadOnly {
				readOnly = true
			}
			obj.Properties = append(obj.Properties, Property{
				Name:     name,
				ReadOnly: p != nil && readOnly,
				Schema:   b.node(p, propPtr),
			})
		}
		obj.AdditionalProperties = b.node(v.AdditionalProperties.Schema, ptr+"/additionalProperties")
		return obj
	case v.Type != "" || v.Format != "" || len(v.Enum) > 0:
		return &Scalar{Type: v.Type, Format: v.Format, Enum: append([]any(nil), v.Enum...)}
	}
	return nil
}

func (b *builder) nodes(refs openapi3.SchemaRefs, ptr string) []Node {
	if len(refs) == 0 {
		return nil
	}
	out := make([]Node, 0, len(refs))
	for i, r := range refs {
		if n := b.node(r, ptr+"/"+strconv.Itoa(i)); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func toParameter(pref *openapi3.ParameterRef) (Parameter, bool) {
	if pref == nil || pref.Value == nil {
		return Parameter{}, false
	}
	p := pref.Value
	return Parameter{
		Name:     strings.TrimSpace(p.Name),
		In:       strings.TrimSpace(p.In),
		Required: p.Required,
	}, true
}

func paramKey(in, name string) string { return in + ":" + name }
