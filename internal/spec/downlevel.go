package spec

import (
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// downlevel rewrites the OpenAPI 3.1 schema keyword shapes that the 3.0
// types of kin-openapi cannot decode:
//
//   - "type": ["string", "null"] becomes "type": "string" plus nullable
//   - a numeric exclusiveMinimum/exclusiveMaximum becomes the bound plus true
//
// It also returns the JSON pointers of "$ref" objects that carry a sibling
// readOnly: true, which kin-openapi discards when it decodes the ref.
// 3.0 documents pass through with their shapes unchanged.
func downlevel(data []byte) ([]byte, map[string]bool, error) {
	var root any
	if err := json.Unmarshal(data, &root,
		jsontext.AllowDuplicateNames(true),
		jsontext.AllowInvalidUTF8(true),
	); err != nil {
		return nil, nil, err
	}
	readOnlyRefs := make(map[string]bool)
	downlevelValue(root, "", readOnlyRefs, 0)
	out, err := json.Marshal(root, json.Deterministic(true), jsontext.AllowInvalidUTF8(true))
	if err != nil {
		return nil, nil, err
	}
	return out, readOnlyRefs, nil
}

var exclusiveBounds = [...]struct{ exclusive, bound string }{
	{"exclusiveMinimum", "minimum"},
	{"exclusiveMaximum", "maximum"},
}

func downlevelValue(v any, ptr string, readOnlyRefs map[string]bool, depth int) {
	if depth > maxIndexDepth {
		return
	}
	switch v := v.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok && ref != "" {
			if ro, _ := v["readOnly"].(bool); ro {
				readOnlyRefs[ptr] = true
			}
		}
		if types, ok := v["type"].([]any); ok {
			collapseTypes(v, types)
		}
		for _, kw := range exclusiveBounds {
			n, ok := v[kw.exclusive].(float64)
			if !ok {
				continue
			}
			if _, has := v[kw.bound]; !has {
				v[kw.bound] = n
			}
			v[kw.exclusive] = true
		}
		for k, child := range v {
			downlevelValue(child, ptr+"/"+escapePointer(k), readOnlyRefs, depth+1)
		}
	case []any:
		for i, child := range v {
			downlevelValue(child, ptr+"/"+strconv.Itoa(i), readOnlyRefs, depth+1)
		}
	}
}

// collapseTypes keeps the first non-null type of a type array. A listed
// "null" turns into nullable.
func collapseTypes(schema map[string]any, types []any) {
	var first string
	nullable := false
	for _, t := range types {
		s, _ := t.(string)
		switch {
		case s == "null":
			nullable = true
		case s != "" && first == "":
			first = s
		}
	}
	switch {
	case first != "":
		schema["type"] = first
	case nullable:
		schema["type"] = "null"
	default:
		delete(schema, "type")
	}
	if nullable {
		schema["nullable"] = true
	}
}
