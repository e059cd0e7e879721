package spec

// Normalized document model consumed by the analyzer. Built once per run from
// the decoded OpenAPI document and never mutated afterwards.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// Document is the read-only view of an OpenAPI description.
type Document struct {
	Location      string
	Paths         []PathItem // document order
	Schemas       map[string]Node
	Responses     map[string]*Response
	RequestBodies map[string]*RequestBody
}

type PathItem struct {
	Path       string
	Operations map[HttpMethod]*Operation
}

// Operation returns the operation for method, or nil.
func (p PathItem) Operation(m HttpMethod) *Operation {
	if p.Operations == nil {
		return nil
	}
	return p.Operations[m]
}

type Operation struct {
	ID          string
	Method      HttpMethod
	Path        string
	Parameters  []Parameter
	RequestBody *RequestBody
	Responses   []Response // ordered by status code
}

type Parameter struct {
	Name     string
	In       string // path|query|header|cookie
	Required bool
}

// RequestBody is either inline (Content set) or a reference into
// components.requestBodies (Ref set).
type RequestBody struct {
	Ref      string
	Required bool
	Content  []Media
}

// Response is either inline or a reference into components.responses.
type Response struct {
	Status  string
	Ref     string
	Content []Media
}

type Media struct {
	Mime   string
	Schema Node
}

// Node is a schema node. The concrete types are *Ref, *Object, *Array,
// *Composition and *Scalar.
type Node interface {
	isNode()
}

// Ref is an unresolved "$ref" pointer.
type Ref struct {
	Ref string
}

// Object is an object schema. Properties keep document order.
type Object struct {
	Type                 string
	Properties           []Property
	AdditionalProperties Node
}

// Property returns the named property schema, or nil.
func (o *Object) Property(name string) Node {
	for _, p := range o.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

type Property struct {
	Name     string
	ReadOnly bool
	Schema   Node
}

type Array struct {
	Items Node
}

// Composition is a schema carrying allOf/oneOf/anyOf. Base holds the
// schema's own shape (properties, items) when it has one.
type Composition struct {
	Base  Node
	AllOf []Node
	OneOf []Node
	AnyOf []Node
}

// Branches returns allOf, oneOf and anyOf members in that order.
func (c *Composition) Branches() []Node {
	out := make([]Node, 0, len(c.AllOf)+len(c.OneOf)+len(c.AnyOf))
	out = append(out, c.AllOf...)
	out = append(out, c.OneOf...)
	out = append(out, c.AnyOf...)
	return out
}

type Scalar struct {
	Type   string
	Format string
	Enum   []any
}

func (*Ref) isNode()         {}
func (*Object) isNode()      {}
func (*Array) isNode()       {}
func (*Composition) isNode() {}
func (*Scalar) isNode()      {}
