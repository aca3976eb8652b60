// Package predicate builds typed filter trees over the inspection record
// store and compiles them to SQL.
//
// Leaves that target the same to-many relation (ground truth or model
// annotations) inside one And are compiled into a single EXISTS subquery, so
// every constraint has to hold on the same related row.
package predicate

import (
	"fmt"
	"sort"
	"strings"
)

type Node interface {
	compile(c *compiler) (string, error)
}

type inNode struct {
	path   string
	values []any
}

type rangeNode struct {
	path   string
	lo, hi any
}

type andNode struct{ children []Node }
type orNode struct{ children []Node }
type notNode struct{ child Node }

// In matches rows whose field equals one of values. A nil value matches NULL.
// An empty value list matches nothing.
func In(path string, values ...any) Node { return inNode{path: path, values: values} }

// Range matches lo <= field <= hi. A nil bound is open.
func Range(path string, lo, hi any) Node { return rangeNode{path: path, lo: lo, hi: hi} }

func And(nodes ...Node) Node { return andNode{children: compact(nodes)} }
func Or(nodes ...Node) Node  { return orNode{children: compact(nodes)} }
func Not(n Node) Node        { return notNode{child: n} }

func compact(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Compile renders n as a SQL boolean expression with positional arguments.
// A nil node compiles to a tautology.
func Compile(n Node) (string, []any, error) {
	if n == nil {
		return "1=1", nil, nil
	}
	c := &compiler{}
	sql, err := n.compile(c)
	if err != nil {
		return "", nil, err
	}
	return sql, c.args, nil
}

type compiler struct {
	args []any
}

// leafSQL renders a leaf against its column without any relation wrapping.
func (c *compiler) leafSQL(n Node) (string, Field, error) {
	switch leaf := n.(type) {
	case inNode:
		f, err := Lookup(leaf.path)
		if err != nil {
			return "", Field{}, err
		}
		return c.inSQL(f.column(), leaf.values), f, nil
	case rangeNode:
		f, err := Lookup(leaf.path)
		if err != nil {
			return "", Field{}, err
		}
		if !f.Rangeable {
			return "", Field{}, fmt.Errorf("field %q does not support ranges", f.Path)
		}
		return c.rangeSQL(f.column(), leaf.lo, leaf.hi), f, nil
	}
	return "", Field{}, fmt.Errorf("not a leaf: %T", n)
}

func (c *compiler) inSQL(col string, values []any) string {
	if len(values) == 0 {
		return "1=0"
	}
	var placeholders []string
	hasNull := false
	for _, v := range values {
		if v == nil {
			hasNull = true
			continue
		}
		placeholders = append(placeholders, "?")
		c.args = append(c.args, v)
	}
	var parts []string
	if len(placeholders) > 0 {
		parts = append(parts, fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")))
	}
	if hasNull {
		parts = append(parts, col+" IS NULL")
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (c *compiler) rangeSQL(col string, lo, hi any) string {
	var parts []string
	if lo != nil {
		parts = append(parts, col+" >= ?")
		c.args = append(c.args, lo)
	}
	if hi != nil {
		parts = append(parts, col+" <= ?")
		c.args = append(c.args, hi)
	}
	if len(parts) == 0 {
		return "1=1"
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func (c *compiler) exists(rel Relation, conds []string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s AND %s)",
		rel.Table, rel.ExistsAlias, rel.Link, strings.Join(conds, " AND "))
}

func (n inNode) compile(c *compiler) (string, error)    { return compileLeaf(c, n) }
func (n rangeNode) compile(c *compiler) (string, error) { return compileLeaf(c, n) }

func compileLeaf(c *compiler, n Node) (string, error) {
	sql, f, err := c.leafSQL(n)
	if err != nil {
		return "", err
	}
	if f.Relation.Many {
		return c.exists(f.Relation, []string{sql}), nil
	}
	return sql, nil
}

// andSlot is either one ordinary child or every to-many leaf of one relation.
type andSlot struct {
	node   Node
	rel    Relation
	leaves []Node
}

func (n andNode) compile(c *compiler) (string, error) {
	children := flattenAnd(n.children)
	if len(children) == 0 {
		return "1=1", nil
	}

	var slots []*andSlot
	byRelation := map[string]*andSlot{}
	for _, child := range children {
		rel, ok := manyRelation(child)
		if !ok {
			slots = append(slots, &andSlot{node: child})
			continue
		}
		slot, seen := byRelation[rel.Name]
		if !seen {
			slot = &andSlot{rel: rel}
			byRelation[rel.Name] = slot
			slots = append(slots, slot)
		}
		slot.leaves = append(slot.leaves, child)
	}

	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		if slot.node != nil {
			sql, err := slot.node.compile(c)
			if err != nil {
				return "", err
			}
			out = append(out, sql)
			continue
		}
		conds := make([]string, 0, len(slot.leaves))
		for _, leaf := range slot.leaves {
			sql, _, err := c.leafSQL(leaf)
			if err != nil {
				return "", err
			}
			conds = append(conds, sql)
		}
		out = append(out, c.exists(slot.rel, conds))
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return "(" + strings.Join(out, " AND ") + ")", nil
}

func (n orNode) compile(c *compiler) (string, error) {
	if len(n.children) == 0 {
		return "1=0", nil
	}
	out := make([]string, 0, len(n.children))
	for _, child := range n.children {
		sql, err := child.compile(c)
		if err != nil {
			return "", err
		}
		out = append(out, sql)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return "(" + strings.Join(out, " OR ") + ")", nil
}

func (n notNode) compile(c *compiler) (string, error) {
	if n.child == nil {
		return "1=0", nil
	}
	sql, err := n.child.compile(c)
	if err != nil {
		return "", err
	}
	return "NOT (" + sql + ")", nil
}

func flattenAnd(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		if inner, ok := n.(andNode); ok {
			out = append(out, flattenAnd(inner.children)...)
			continue
		}
		out = append(out, n)
	}
	return out
}

// manyRelation reports the to-many relation a leaf targets. Unknown paths are
// left to the leaf's own compile step so the error surfaces there.
func manyRelation(n Node) (Relation, bool) {
	var path string
	switch leaf := n.(type) {
	case inNode:
		path = leaf.path
	case rangeNode:
		path = leaf.path
	default:
		return Relation{}, false
	}
	f, err := Lookup(path)
	if err != nil || !f.Relation.Many {
		return Relation{}, false
	}
	return f.Relation, true
}

// RangeSuffix marks a filter key as an inclusive [lo, hi] range.
const RangeSuffix = "__range"

// FromFilters turns the declarative field-path -> values mapping into an And
// of leaves. Keys are processed in sorted order so the compiled SQL is stable.
func FromFilters(filters map[string][]any) (Node, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]Node, 0, len(keys))
	for _, key := range keys {
		values := filters[key]
		if path, ok := strings.CutSuffix(key, RangeSuffix); ok {
			f, err := Lookup(path)
			if err != nil {
				return nil, err
			}
			if !f.Rangeable {
				return nil, fmt.Errorf("field %q does not support ranges", path)
			}
			if len(values) != 2 {
				return nil, fmt.Errorf("range filter %q needs exactly 2 values, got %d", key, len(values))
			}
			nodes = append(nodes, Range(path, values[0], values[1]))
			continue
		}
		if _, err := Lookup(key); err != nil {
			return nil, err
		}
		nodes = append(nodes, In(key, values...))
	}
	return And(nodes...), nil
}

// Relations returns the names of every relation referenced by n, sorted.
// Unknown paths are skipped; Compile reports them.
func Relations(n Node) []string {
	seen := map[string]bool{}
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case inNode:
			if f, err := Lookup(v.path); err == nil {
				seen[f.Relation.Name] = true
			}
		case rangeNode:
			if f, err := Lookup(v.path); err == nil {
				seen[f.Relation.Name] = true
			}
		case andNode:
			for _, c := range v.children {
				walk(c)
			}
		case orNode:
			for _, c := range v.children {
				walk(c)
			}
		case notNode:
			walk(v.child)
		}
	}
	if n != nil {
		walk(n)
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
