// Package filter implements the closed-set tagged expression AST profiles
// use to decide which source features they care about, per SPEC_FULL.md
// §9 ("profile-as-coroutine" and ad hoc predicate functions are replaced
// by a data structure the pipeline can introspect and simplify, rather
// than an opaque closure).
package filter

import "github.com/planetiler/planetiler-go/render"

// Kind tags which variant of Expr a node is.
type Kind uint8

const (
	KindConst Kind = iota
	KindAnd
	KindOr
	KindNot
	KindMatchAny
	KindMatchField
	KindMatchSource
	KindMatchSourceLayer
	KindMatchGeometryType
)

// Expr is a closed sum type: exactly one of the Kind-tagged fields below
// is meaningful for any given node, selected by Kind.
type Expr struct {
	Kind Kind

	// KindConst
	BoolValue bool

	// KindAnd, KindOr
	Children []Expr

	// KindNot
	Operand *Expr

	// KindMatchField
	Field  string
	Values []interface{} // empty means "field is present, any value"

	// KindMatchSource
	SourceName string

	// KindMatchSourceLayer
	SourceLayerName string

	// KindMatchGeometryType
	GeometryKind render.GeometryKind
}

// Input is the evaluation context a compiled Expr is matched against.
type Input struct {
	SourceName  string
	SourceLayer string
	Geometry    render.GeometryKind
	Tags        map[string]interface{}
}

// Const builds a constant true/false leaf.
func Const(b bool) Expr { return Expr{Kind: KindConst, BoolValue: b} }

// MatchAny matches every input.
func MatchAny() Expr { return Expr{Kind: KindMatchAny} }

// MatchField matches inputs whose Tags[field] is present and, if values is
// non-empty, equal to one of them.
func MatchField(field string, values ...interface{}) Expr {
	return Expr{Kind: KindMatchField, Field: field, Values: values}
}

// MatchSource matches inputs whose SourceName equals name.
func MatchSource(name string) Expr {
	return Expr{Kind: KindMatchSource, SourceName: name}
}

// MatchSourceLayer matches inputs whose SourceLayer equals name.
func MatchSourceLayer(name string) Expr {
	return Expr{Kind: KindMatchSourceLayer, SourceLayerName: name}
}

// MatchGeometryType matches inputs of the given geometry kind.
func MatchGeometryType(k render.GeometryKind) Expr {
	return Expr{Kind: KindMatchGeometryType, GeometryKind: k}
}

// And builds a conjunction, flattening nested And nodes.
func And(exprs ...Expr) Expr {
	var children []Expr
	for _, e := range exprs {
		if e.Kind == KindAnd {
			children = append(children, e.Children...)
		} else {
			children = append(children, e)
		}
	}
	return Expr{Kind: KindAnd, Children: children}
}

// Or builds a disjunction, flattening nested Or nodes.
func Or(exprs ...Expr) Expr {
	var children []Expr
	for _, e := range exprs {
		if e.Kind == KindOr {
			children = append(children, e.Children...)
		} else {
			children = append(children, e)
		}
	}
	return Expr{Kind: KindOr, Children: children}
}

// Not negates operand.
func Not(operand Expr) Expr {
	return Expr{Kind: KindNot, Operand: &operand}
}

// Evaluate walks the expression against in, recording every field name a
// MatchField node consulted into matchedKeys (nil-safe: pass nil to skip
// tracking). matchedKeys lets a caller compute the narrowest "these are
// the only tags this profile could possibly need" set without evaluating
// twice.
func Evaluate(e Expr, in Input, matchedKeys map[string]struct{}) bool {
	switch e.Kind {
	case KindConst:
		return e.BoolValue
	case KindMatchAny:
		return true
	case KindAnd:
		for _, c := range e.Children {
			if !Evaluate(c, in, matchedKeys) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range e.Children {
			if Evaluate(c, in, matchedKeys) {
				return true
			}
		}
		return false
	case KindNot:
		return !Evaluate(*e.Operand, in, matchedKeys)
	case KindMatchField:
		if matchedKeys != nil {
			matchedKeys[e.Field] = struct{}{}
		}
		v, ok := in.Tags[e.Field]
		if !ok {
			return false
		}
		if len(e.Values) == 0 {
			return true
		}
		for _, want := range e.Values {
			if want == v {
				return true
			}
		}
		return false
	case KindMatchSource:
		return in.SourceName == e.SourceName
	case KindMatchSourceLayer:
		return in.SourceLayer == e.SourceLayerName
	case KindMatchGeometryType:
		return in.Geometry == e.GeometryKind
	default:
		return false
	}
}
