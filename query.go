package stagehand

import (
	"fmt"
	"strconv"
	"strings"
)

// Root names understood by the World's root lookup.
const (
	RootScene    = "#scene"
	RootCamera   = "#camera"
	RootRenderer = "#renderer"
)

// Target is anything a query can land on: *Node, *Geometry, *Material,
// *Template, *Clip, a Controller, a ControllerSet, or a material parameter
// value.
type Target any

// ControllerSet is the controllers map of one node, reached through the
// "controllers" path segment.
type ControllerSet map[string]Controller

// RootFunc resolves a root name such as "#scene" when a query has no start
// node.
type RootFunc func(name string) Target

type queryKind uint8

const (
	queryNone queryKind = iota
	queryPath
	querySteps
	querySelector
)

// Query addresses a node or sub-object in the tree. The zero Query resolves
// to nil.
type Query struct {
	kind  queryKind
	path  string
	steps []Step
	sel   Selector
}

type stepKind uint8

const (
	stepPath stepKind = iota
	stepIndex
	stepSelector
)

// Step is one element of a step-sequence query.
type Step struct {
	kind  stepKind
	path  string
	index int
	sel   Selector
}

// Selector picks a direct child. Only the first set field, in the order
// ByName, ByTag, ByUUID, ByType, ByIndex, is honored.
type Selector struct {
	ByName  *string
	ByTag   *string
	ByUUID  *string
	ByType  *string
	ByIndex *int
}

// Path builds a dotted-path query.
func Path(p string) Query {
	return Query{kind: queryPath, path: p}
}

// Steps builds a step-sequence query.
func Steps(steps ...Step) Query {
	return Query{kind: querySteps, steps: steps}
}

// Select builds a single-selector query.
func Select(sel Selector) Query {
	return Query{kind: querySelector, sel: sel}
}

// PathStep is a step resolved as a dotted path.
func PathStep(p string) Step { return Step{kind: stepPath, path: p} }

// IndexStep is a step selecting a child by position.
func IndexStep(i int) Step { return Step{kind: stepIndex, index: i} }

// SelectorStep is a step applying a selector.
func SelectorStep(s Selector) Step { return Step{kind: stepSelector, sel: s} }

// ByName, ByTag, ByUUID, ByType and ByIndex build one-key selectors.
func ByName(v string) Selector { return Selector{ByName: &v} }
func ByTag(v string) Selector { return Selector{ByTag: &v} }
func ByUUID(v string) Selector { return Selector{ByUUID: &v} }
func ByType(v string) Selector { return Selector{ByType: &v} }
func ByIndex(i int) Selector { return Selector{ByIndex: &i} }

// IsZero reports whether q is absent.
func (q Query) IsZero() bool {
	return q.kind == queryNone
}

func (q Query) String() string {
	switch q.kind {
	case queryPath:
		return q.path
	case querySteps:
		parts := make([]string, len(q.steps))
		for i, s := range q.steps {
			switch s.kind {
			case stepPath:
				parts[i] = strconv.Quote(s.path)
			case stepIndex:
				parts[i] = strconv.Itoa(s.index)
			default:
				parts[i] = s.sel.String()
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case querySelector:
		return q.sel.String()
	}
	return "null"
}

func (s Selector) String() string {
	switch {
	case s.ByName != nil:
		return fmt.Sprintf("{byName: %q}", *s.ByName)
	case s.ByTag != nil:
		return fmt.Sprintf("{byTag: %q}", *s.ByTag)
	case s.ByUUID != nil:
		return fmt.Sprintf("{byUUID: %q}", *s.ByUUID)
	case s.ByType != nil:
		return fmt.Sprintf("{byType: %q}", *s.ByType)
	case s.ByIndex != nil:
		return fmt.Sprintf("{byIndex: %d}", *s.ByIndex)
	}
	return "{}"
}

// ParseQuery converts a decoded descriptor into a Query: nil or "null" is
// absent, a string is a path, a list is a step sequence and a map is a
// selector.
func ParseQuery(v any) (Query, error) {
	switch d := v.(type) {
	case nil:
		return Query{}, nil
	case Query:
		return d, nil
	case string:
		if d == "null" {
			return Query{}, nil
		}
		return Path(d), nil
	case []any:
		steps := make([]Step, 0, len(d))
		for i, raw := range d {
			st, err := parseStep(raw)
			if err != nil {
				return Query{}, configErrorf("query step %d: %v", i, err)
			}
			steps = append(steps, st)
		}
		return Steps(steps...), nil
	case []string:
		steps := make([]Step, len(d))
		for i, p := range d {
			steps[i] = PathStep(p)
		}
		return Steps(steps...), nil
	case map[string]any:
		sel, err := parseSelector(d)
		if err != nil {
			return Query{}, err
		}
		return Select(sel), nil
	}
	return Query{}, configErrorf("query of type %T", v)
}

func parseStep(raw any) (Step, error) {
	switch d := raw.(type) {
	case string:
		return PathStep(d), nil
	case map[string]any:
		sel, err := parseSelector(d)
		if err != nil {
			return Step{}, err
		}
		return SelectorStep(sel), nil
	case map[any]any:
		m := make(map[string]any, len(d))
		for k, v := range d {
			m[fmt.Sprint(k)] = v
		}
		return parseStep(m)
	}
	if i, ok := asInt(raw); ok {
		return IndexStep(i), nil
	}
	return Step{}, fmt.Errorf("unsupported step of type %T", raw)
}

func parseSelector(m map[string]any) (Selector, error) {
	var sel Selector
	str := func(key string) *string {
		v, ok := m[key]
		if !ok || v == nil {
			return nil
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		return &s
	}
	sel.ByName = str("byName")
	sel.ByTag = str("byTag")
	sel.ByUUID = str("byUUID")
	sel.ByType = str("byType")
	if v, ok := m["byIndex"]; ok && v != nil {
		i, ok := asInt(v)
		if !ok {
			return Selector{}, configErrorf("byIndex must be an integer, got %T", v)
		}
		sel.ByIndex = &i
	}
	return sel, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case float32:
		if n != float32(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// Resolve evaluates q from start. With a nil start the first path segment
// names a root, looked up through roots. The result is nil unless every
// segment matched.
func Resolve(q Query, start *Node, roots RootFunc) Target {
	var from Target
	if start != nil {
		from = start
	}
	switch q.kind {
	case queryPath:
		return resolvePath(from, q.path, roots)
	case querySteps:
		cur := from
		for _, s := range q.steps {
			cur = resolveStep(cur, s, roots)
			if cur == nil {
				return nil
			}
		}
		return cur
	case querySelector:
		if q.sel.ByName != nil {
			return resolvePath(from, *q.sel.ByName, roots)
		}
		n, _ := from.(*Node)
		return nodeTarget(selectChild(n, q.sel))
	}
	return nil
}

func resolveStep(cur Target, s Step, roots RootFunc) Target {
	switch s.kind {
	case stepPath:
		return resolvePath(cur, s.path, roots)
	case stepIndex:
		n, _ := cur.(*Node)
		if n == nil {
			return nil
		}
		return nodeTarget(n.ChildAt(s.index))
	default:
		if s.sel.ByName != nil {
			return resolvePath(cur, *s.sel.ByName, roots)
		}
		n, _ := cur.(*Node)
		return nodeTarget(selectChild(n, s.sel))
	}
}

func resolvePath(start Target, path string, roots RootFunc) Target {
	if path == "" || path == "null" {
		return nil
	}
	parts := strings.Split(path, ".")
	cur := start
	if cur == nil {
		if roots == nil {
			return nil
		}
		cur = roots(parts[0])
		parts = parts[1:]
	}
	for _, seg := range parts {
		if cur == nil {
			return nil
		}
		cur = stepInto(cur, seg)
	}
	return cur
}

// stepInto applies one path segment to cur.
func stepInto(cur Target, seg string) Target {
	switch t := cur.(type) {
	case *Node:
		switch seg {
		case "geometry":
			if t.Geometry == nil {
				return nil
			}
			return t.Geometry
		case "material":
			if t.Material == nil {
				return nil
			}
			return t.Material
		case "controllers":
			if len(t.controllers) == 0 {
				return nil
			}
			return ControllerSet(t.controllers)
		case "template":
			if t.Template == nil {
				return nil
			}
			return t.Template
		}
		return nodeTarget(t.ChildByName(seg))
	case ControllerSet:
		if c, ok := t[seg]; ok {
			return c
		}
	case *Template:
		if c := t.Clip(seg); c != nil {
			return c
		}
	case *Material:
		if v, ok := t.Param(seg); ok {
			return v
		}
	}
	return nil
}

// selectChild applies the first present selector key other than ByName.
func selectChild(n *Node, sel Selector) *Node {
	if n == nil {
		return nil
	}
	switch {
	case sel.ByTag != nil:
		for _, c := range n.children {
			if c.Tag != "" && c.Tag == *sel.ByTag {
				return c
			}
		}
	case sel.ByUUID != nil:
		for _, c := range n.children {
			if c.UUID == *sel.ByUUID {
				return c
			}
		}
	case sel.ByType != nil:
		for _, c := range n.children {
			if c.Type.String() == *sel.ByType {
				return c
			}
		}
	case sel.ByIndex != nil:
		return n.ChildAt(*sel.ByIndex)
	}
	return nil
}

// nodeTarget keeps a nil *Node from becoming a non-nil Target.
func nodeTarget(n *Node) Target {
	if n == nil {
		return nil
	}
	return n
}
