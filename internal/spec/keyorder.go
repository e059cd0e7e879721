package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyOrder records the document order of mapping keys, indexed by JSON
// pointer ("" for the root, "/paths", "/components/schemas/Thing/properties").
// kin-openapi decodes objects into Go maps, so order is recovered from here.
type KeyOrder struct {
	keys    map[string][]string
	aliases [][2]string

	// readOnlyRefs holds pointers of "$ref" objects with a sibling
	// readOnly: true.
	readOnlyRefs map[string]bool
}

func (ko *KeyOrder) readOnlyRef(ptr string) bool {
	return ko != nil && ko.readOnlyRefs[ptr]
}

// BuildKeyOrder indexes every mapping in raw. JSON input is read as a token
// stream; YAML input goes through a yaml.Node tree.
func BuildKeyOrder(raw []byte) (*KeyOrder, error) {
	if isJSON(raw) {
		return buildJSONKeyOrder(raw)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	ko := &KeyOrder{keys: make(map[string][]string)}
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		ko.index("", root.Content[0], 0)
	}
	return ko, nil
}

// maxIndexDepth bounds recursion on pathological alias graphs.
const maxIndexDepth = 256

func (ko *KeyOrder) index(ptr string, n *yaml.Node, depth int) {
	if n == nil || depth > maxIndexDepth {
		return
	}
	if n.Kind == yaml.AliasNode {
		ko.index(ptr, n.Alias, depth+1)
		return
	}
	switch n.Kind {
	case yaml.MappingNode:
		keys := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			keys = append(keys, k)
			ko.index(ptr+"/"+escapePointer(k), n.Content[i+1], depth+1)
		}
		ko.keys[ptr] = keys
	case yaml.SequenceNode:
		for i, c := range n.Content {
			ko.index(ptr+"/"+strconv.Itoa(i), c, depth+1)
		}
	}
}

// Alias makes lookups under prefix `from` fall back to prefix `to`. Used for
// Swagger 2 documents whose schemas live under /definitions.
func (ko *KeyOrder) Alias(from, to string) {
	if ko == nil {
		return
	}
	ko.aliases = append(ko.aliases, [2]string{from, to})
}

// Sort orders names by their position in the mapping at ptr. Names the index
// does not know (or all of them, when ptr is unknown) follow in lexical order.
func (ko *KeyOrder) Sort(ptr string, names []string) []string {
	out := append([]string(nil), names...)
	pos := ko.positions(ptr)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := pos[out[i]]
		pj, jok := pos[out[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

func (ko *KeyOrder) positions(ptr string) map[string]int {
	if ko == nil {
		return nil
	}
	keys, ok := ko.keys[ptr]
	if !ok {
		for _, a := range ko.aliases {
			if strings.HasPrefix(ptr, a[0]) {
				if k, found := ko.keys[a[1]+strings.TrimPrefix(ptr, a[0])]; found {
					keys, ok = k, true
					break
				}
			}
		}
	}
	if !ok {
		return nil
	}
	pos := make(map[string]int, len(keys))
	for i, k := range keys {
		if _, dup := pos[k]; !dup {
			pos[k] = i
		}
	}
	return pos
}

func buildJSONKeyOrder(raw []byte) (*KeyOrder, error) {
	ko := &KeyOrder{keys: make(map[string][]string)}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := ko.walkJSON(dec, ""); err != nil {
		return nil, err
	}
	return ko, nil
}

func (ko *KeyOrder) walkJSON(dec *json.Decoder, ptr string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch delim {
	case '{':
		var keys []string
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return err
			}
			k, ok := kt.(string)
			if !ok {
				return fmt.Errorf("unexpected object key %v at %q", kt, ptr)
			}
			keys = append(keys, k)
			if err := ko.walkJSON(dec, ptr+"/"+escapePointer(k)); err != nil {
				return err
			}
		}
		ko.keys[ptr] = keys
	case '[':
		for i := 0; dec.More(); i++ {
			if err := ko.walkJSON(dec, ptr+"/"+strconv.Itoa(i)); err != nil {
				return err
			}
		}
	}
	// closing delimiter
	_, err = dec.Token()
	return err
}

func isJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// sortedKeys returns the keys of m in the document order recorded at ptr.
func sortedKeys[V any](ko *KeyOrder, ptr string, m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return ko.Sort(ptr, names)
}
