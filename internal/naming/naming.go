// Package naming holds the string transforms between resource path segments
// and emitted TypeScript identifiers.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hydroserver2/contractgen/internal/spec"
)

// ToPascalCase turns "observed-properties" into "ObservedProperties".
// Plurality is left alone.
func ToPascalCase(kebab string) string {
	var b strings.Builder
	for _, seg := range strings.Split(kebab, "-") {
		if seg == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(seg)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(seg[size:])
	}
	return b.String()
}

// SingularizeLastSegment singularizes only the final "-" segment:
// "ies" becomes "y", a trailing "s" (but not "ss") is dropped.
// Irregular plurals are not special-cased.
func SingularizeLastSegment(kebab string) string {
	segs := strings.Split(kebab, "-")
	last := len(segs) - 1
	segs[last] = singularize(segs[last])
	return strings.Join(segs, "-")
}

func singularize(word string) string {
	switch {
	case strings.HasSuffix(word, "ies"):
		return strings.TrimSuffix(word, "ies") + "y"
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return strings.TrimSuffix(word, "s")
	}
	return word
}

// SingularPascal is ToPascalCase(SingularizeLastSegment(resource)), the
// token every per-resource schema name is built from.
func SingularPascal(resource string) string {
	return ToPascalCase(SingularizeLastSegment(resource))
}

// Namespace returns the emitted namespace identifier, e.g. "ThingContract".
func Namespace(resource, suffix string) string {
	return SingularPascal(resource) + suffix
}

// ContractFileName returns "<resource><suffix>", e.g. "things.contract.ts".
func ContractFileName(resource, suffix string) string {
	return resource + suffix
}

// ModuleName strips the ".ts" extension for use in import specifiers.
func ModuleName(fileName string) string {
	return strings.TrimSuffix(fileName, ".ts")
}

// SchemaTypeExpression renders Data.components['schemas']['Name'].
func SchemaTypeExpression(alias, name string) string {
	return alias + ".components['schemas']['" + quote(name) + "']"
}

// RefToTypeExpression renders the schema lookup expression for a ref.
func RefToTypeExpression(alias, ref string) string {
	return SchemaTypeExpression(alias, spec.RefName(ref))
}

// Partial wraps a type expression in TypeScript's Partial<>.
func Partial(expr string) string {
	return "Partial<" + expr + ">"
}

// OperationQueryExpression renders the query-parameter type of an operation
// from the generated operations map, collapsing to {} when it has none.
func OperationQueryExpression(alias, operationID string) string {
	q := alias + ".operations['" + quote(operationID) + "']['parameters']['query']"
	return "([" + q + "] extends [never] ? {} : NonNullable<" + q + ">)"
}

// StringLiteral renders s as a single-quoted TypeScript string literal.
func StringLiteral(s string) string {
	return "'" + quote(s) + "'"
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, "'", `\'`, "\n", `\n`, "\r", `\r`)

func quote(s string) string {
	return quoteReplacer.Replace(s)
}
