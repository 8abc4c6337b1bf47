// Package pytree flattens nested containers of tensors into flat leaf
// sequences and rebuilds them from a structural Spec.
//
// Recognised containers:
//   - nil                 -> none (no leaves)
//   - []any               -> list
//   - Tuple               -> tuple
//   - *Dict               -> dict with string keys, insertion ordered
//
// Anything else is a leaf. A Spec serialises to JSON so it can travel inside
// a compiled artifact and be used to unflatten results on the other side.
package pytree

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Kind tags a Spec node.
type Kind string

// Spec node kinds.
const (
	KindLeaf  Kind = "leaf"
	KindNone  Kind = "none"
	KindList  Kind = "list"
	KindTuple Kind = "tuple"
	KindDict  Kind = "dict"
)

// Tuple is a fixed-arity sequence. It is distinct from a list so that the
// two survive a round trip through a Spec.
type Tuple []any

// Dict is a string-keyed mapping that remembers insertion order.
type Dict struct {
	m *linkedhashmap.Map
}

// NewDict creates an empty Dict.
func NewDict() *Dict {
	return &Dict{m: linkedhashmap.New()}
}

// Set stores v under k and returns d so calls can be chained.
func (d *Dict) Set(k string, v any) *Dict {
	d.m.Put(k, v)
	return d
}

// Get returns the value stored under k.
func (d *Dict) Get(k string) (any, bool) {
	return d.m.Get(k)
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	keys := make([]string, 0, d.m.Size())
	for _, k := range d.m.Keys() {
		keys = append(keys, k.(string))
	}
	return keys
}

// Values returns the values in insertion order.
func (d *Dict) Values() []any {
	return d.m.Values()
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return d.m.Size()
}

// Spec describes the structure of a tree without its leaves.
type Spec struct {
	Kind     Kind     `json:"type"`
	Keys     []string `json:"keys,omitempty"`
	Children []*Spec  `json:"children,omitempty"`
}

// Leaf is the spec of a single leaf.
var Leaf = &Spec{Kind: KindLeaf}

// ErrStructureMismatch is returned when a tree does not match a Spec.
var ErrStructureMismatch = errors.New("tree structure mismatch")

// NumLeaves returns how many leaves the described tree holds.
func (s *Spec) NumLeaves() int {
	switch s.Kind {
	case KindLeaf:
		return 1
	case KindNone:
		return 0
	}
	n := 0
	for _, c := range s.Children {
		n += c.NumLeaves()
	}
	return n
}

// String renders a compact form, e.g. T(*,D(x:*,y:*)).
func (s *Spec) String() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s *Spec) write(b *strings.Builder) {
	switch s.Kind {
	case KindLeaf:
		b.WriteString("*")
		return
	case KindNone:
		b.WriteString("None")
		return
	case KindList:
		b.WriteString("L(")
	case KindTuple:
		b.WriteString("T(")
	case KindDict:
		b.WriteString("D(")
	}
	for i, c := range s.Children {
		if i > 0 {
			b.WriteByte(',')
		}
		if s.Kind == KindDict {
			b.WriteString(s.Keys[i])
			b.WriteByte(':')
		}
		c.write(b)
	}
	b.WriteByte(')')
}

// Equal reports whether two specs describe the same structure.
func (s *Spec) Equal(o *Spec) bool {
	if s.Kind != o.Kind || len(s.Children) != len(o.Children) || len(s.Keys) != len(o.Keys) {
		return false
	}
	for i := range s.Keys {
		if s.Keys[i] != o.Keys[i] {
			return false
		}
	}
	for i := range s.Children {
		if !s.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// Validate checks that a decoded spec is well formed.
func (s *Spec) Validate() error {
	switch s.Kind {
	case KindLeaf, KindNone:
		if len(s.Children) != 0 || len(s.Keys) != 0 {
			return fmt.Errorf("%s node must not have children", s.Kind)
		}
		return nil
	case KindList, KindTuple:
		if len(s.Keys) != 0 {
			return fmt.Errorf("%s node must not have keys", s.Kind)
		}
	case KindDict:
		if len(s.Keys) != len(s.Children) {
			return fmt.Errorf("dict node has %d keys but %d children", len(s.Keys), len(s.Children))
		}
		seen := make(map[string]bool, len(s.Keys))
		for _, k := range s.Keys {
			if seen[k] {
				return fmt.Errorf("dict node has duplicate key %q", k)
			}
			seen[k] = true
		}
	default:
		return fmt.Errorf("unknown node kind %q", s.Kind)
	}
	for _, c := range s.Children {
		if c == nil {
			return errors.New("nil child")
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Dumps serialises a spec to its JSON form.
func Dumps(s *Spec) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode tree spec: %w", err)
	}
	return string(b), nil
}

// Loads parses a spec produced by Dumps.
func Loads(data string) (*Spec, error) {
	var s Spec
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode tree spec: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tree spec: %w", err)
	}
	return &s, nil
}

// Flatten returns the leaves of tree in depth-first order and its Spec.
func Flatten(tree any) ([]any, *Spec) {
	var leaves []any
	spec := flatten(tree, &leaves)
	return leaves, spec
}

func flatten(tree any, leaves *[]any) *Spec {
	switch t := tree.(type) {
	case nil:
		return &Spec{Kind: KindNone}
	case []any:
		s := &Spec{Kind: KindList, Children: make([]*Spec, len(t))}
		for i, c := range t {
			s.Children[i] = flatten(c, leaves)
		}
		return s
	case Tuple:
		s := &Spec{Kind: KindTuple, Children: make([]*Spec, len(t))}
		for i, c := range t {
			s.Children[i] = flatten(c, leaves)
		}
		return s
	case *Dict:
		s := &Spec{Kind: KindDict, Keys: t.Keys(), Children: make([]*Spec, 0, t.Len())}
		for _, c := range t.Values() {
			s.Children = append(s.Children, flatten(c, leaves))
		}
		return s
	default:
		*leaves = append(*leaves, tree)
		return &Spec{Kind: KindLeaf}
	}
}

// Leaves returns only the leaves of tree.
func Leaves(tree any) []any {
	leaves, _ := Flatten(tree)
	return leaves
}

// FlattenSpec flattens tree following spec rather than the tree's own
// structure. Dict entries are read by the spec's keys, so a dict built in a
// different insertion order still flattens consistently. Extra or missing
// entries are errors.
func FlattenSpec(tree any, spec *Spec) ([]any, error) {
	leaves := make([]any, 0, spec.NumLeaves())
	if err := flattenSpec(tree, spec, "", &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func flattenSpec(tree any, spec *Spec, path string, leaves *[]any) error {
	mismatch := func(format string, args ...any) error {
		return fmt.Errorf("%w at %s: %s", ErrStructureMismatch, rootPath(path), fmt.Sprintf(format, args...))
	}

	switch spec.Kind {
	case KindLeaf:
		if isContainer(tree) {
			return mismatch("expected leaf, got %s", kindOf(tree))
		}
		*leaves = append(*leaves, tree)
		return nil
	case KindNone:
		if tree != nil {
			return mismatch("expected none, got %s", kindOf(tree))
		}
		return nil
	case KindList, KindTuple:
		var seq []any
		switch t := tree.(type) {
		case []any:
			if spec.Kind != KindList {
				return mismatch("expected tuple, got list")
			}
			seq = t
		case Tuple:
			if spec.Kind != KindTuple {
				return mismatch("expected list, got tuple")
			}
			seq = t
		default:
			return mismatch("expected %s, got %s", spec.Kind, kindOf(tree))
		}
		if len(seq) != len(spec.Children) {
			return mismatch("expected %d elements, got %d", len(spec.Children), len(seq))
		}
		for i, c := range spec.Children {
			if err := flattenSpec(seq[i], c, fmt.Sprintf("%s[%d]", path, i), leaves); err != nil {
				return err
			}
		}
		return nil
	case KindDict:
		d, ok := tree.(*Dict)
		if !ok {
			return mismatch("expected dict, got %s", kindOf(tree))
		}
		if d.Len() != len(spec.Keys) {
			return mismatch("expected %d keys, got %d", len(spec.Keys), d.Len())
		}
		for i, k := range spec.Keys {
			v, found := d.Get(k)
			if !found {
				return mismatch("missing key %q", k)
			}
			if err := flattenSpec(v, spec.Children[i], fmt.Sprintf("%s[%q]", path, k), leaves); err != nil {
				return err
			}
		}
		return nil
	default:
		return mismatch("unknown spec kind %q", spec.Kind)
	}
}

// LeafPaths returns the access path of every leaf in flatten order, for
// example root[1]["x"].
func LeafPaths(spec *Spec) []string {
	paths := make([]string, 0, spec.NumLeaves())
	var walk func(s *Spec, path string)
	walk = func(s *Spec, path string) {
		switch s.Kind {
		case KindLeaf:
			paths = append(paths, rootPath(path))
		case KindList, KindTuple:
			for i, c := range s.Children {
				walk(c, fmt.Sprintf("%s[%d]", path, i))
			}
		case KindDict:
			for i, c := range s.Children {
				walk(c, fmt.Sprintf("%s[%q]", path, s.Keys[i]))
			}
		}
	}
	walk(spec, "")
	return paths
}

// Unflatten rebuilds a tree from leaves following spec.
func Unflatten(leaves []any, spec *Spec) (any, error) {
	if n := spec.NumLeaves(); n != len(leaves) {
		return nil, fmt.Errorf("%w: spec %s needs %d leaves, got %d", ErrStructureMismatch, spec, n, len(leaves))
	}
	pos := 0
	return unflatten(leaves, spec, &pos), nil
}

func unflatten(leaves []any, spec *Spec, pos *int) any {
	switch spec.Kind {
	case KindLeaf:
		v := leaves[*pos]
		*pos++
		return v
	case KindList:
		out := make([]any, len(spec.Children))
		for i, c := range spec.Children {
			out[i] = unflatten(leaves, c, pos)
		}
		return out
	case KindTuple:
		out := make(Tuple, len(spec.Children))
		for i, c := range spec.Children {
			out[i] = unflatten(leaves, c, pos)
		}
		return out
	case KindDict:
		d := NewDict()
		for i, c := range spec.Children {
			d.Set(spec.Keys[i], unflatten(leaves, c, pos))
		}
		return d
	default:
		return nil
	}
}

// MapLeaves returns a copy of tree with f applied to every leaf.
func MapLeaves(tree any, f func(leaf any) (any, error)) (any, error) {
	leaves, spec := Flatten(tree)
	mapped := make([]any, len(leaves))
	for i, l := range leaves {
		v, err := f(l)
		if err != nil {
			return nil, err
		}
		mapped[i] = v
	}
	return Unflatten(mapped, spec)
}

func isContainer(v any) bool {
	switch v.(type) {
	case nil, []any, Tuple, *Dict:
		return true
	}
	return false
}

func kindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNone
	case []any:
		return KindList
	case Tuple:
		return KindTuple
	case *Dict:
		return KindDict
	}
	return KindLeaf
}

func rootPath(p string) string {
	if p == "" {
		return "root"
	}
	return "root" + p
}
