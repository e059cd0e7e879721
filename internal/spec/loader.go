package spec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	invopopyaml "github.com/invopop/yaml"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	ParseError      ErrorCode = "ParseError"
	ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with the offending location.
type SpecError struct {
	Code     ErrorCode
	Message  string
	Location string // file path
	Cause    error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Load reads an OpenAPI document from a local file and normalizes it. Both
// JSON and YAML are accepted; Swagger 2.0 input is converted to OpenAPI 3 via
// kin-openapi openapi2conv, and OpenAPI 3.1 schema shapes are brought down to
// what the 3.0 decoder reads. The document is not validated.
//
// Any error returned here is fatal for the run: analysis never proceeds on a
// document that could not be read or decoded.
func Load(ctx context.Context, input string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	u, uerr := url.Parse(input)
	if uerr == nil && u.Scheme != "" && (u.Host != "" || strings.EqualFold(u.Scheme, "file")) {
		scheme := strings.ToLower(u.Scheme)
		switch scheme {
		case "file":
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are not supported; pass a filesystem path", Location: input}
		case "http", "https":
			return nil, &SpecError{Code: InputError, Message: "spec: remote documents are not supported; download the document first", Location: input}
		default:
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q", scheme), Location: input}
		}
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}

	raw, rerr := os.ReadFile(abs)
	if rerr != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, rerr), Location: abs, Cause: rerr}
	}

	return Parse(raw, abs)
}

// Parse decodes raw document bytes. location is only used for messages and
// Document.Location.
func Parse(raw []byte, location string) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &SpecError{Code: ParseError, Message: "spec: document is empty", Location: location}
	}

	version, err := detectSpecVersion(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}

	order, err := BuildKeyOrder(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse spec: %v", err), Location: location, Cause: err}
	}

	data, err := toJSON(raw)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse spec: %v", err), Location: location, Cause: err}
	}

	var doc *openapi3.T
	switch version {
	case 2:
		doc, err = convertV2ToV3(data)
		if err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
		}
		order.Alias("/components/schemas", "/definitions")
	default:
		shaped, readOnlyRefs, err := downlevel(data)
		if err != nil {
			return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse spec: %v", err), Location: location, Cause: err}
		}
		order.readOnlyRefs = readOnlyRefs
		doc = &openapi3.T{}
		if err := json.Unmarshal(shaped, doc); err != nil {
			return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("decode OpenAPI document: %v", err), Location: location, Cause: err}
		}
	}

	return BuildDocument(doc, order, location), nil
}

// detectSpecVersion returns 2 for Swagger v2 and 3 otherwise. Documents that
// carry neither key are treated as OpenAPI 3 so bare paths/components
// fixtures load. A syntactically broken document is an error.
func detectSpecVersion(data []byte) (int, error) {
	var root map[string]any
	if isJSON(data) {
		if err := json.Unmarshal(data, &root); err != nil {
			return 0, fmt.Errorf("parse spec: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("parse spec: %w", err)
	}
	if root == nil {
		return 0, fmt.Errorf("spec: document root must be an object")
	}
	if v, ok := root["openapi"]; ok {
		s, _ := v.(string)
		if !strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return 0, fmt.Errorf("spec: unsupported OpenAPI version %v (expected 3.x)", v)
		}
		return 3, nil
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return 2, nil
		}
		return 0, fmt.Errorf("spec: unsupported Swagger version %v (expected 2.0)", v)
	}
	return 3, nil
}

func toJSON(raw []byte) ([]byte, error) {
	if isJSON(raw) {
		return bytes.TrimSpace(raw), nil
	}
	return invopopyaml.YAMLToJSON(raw)
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}
