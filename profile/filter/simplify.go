package filter

// Simplify applies constant folding, De Morgan's laws, and absorption
// until the expression stops changing, so a profile can build filters
// compositionally (e.g. `And(MatchSource("osm"), Or(...))`) without
// paying evaluation cost for redundant structure at pipeline run time.
func Simplify(e Expr) Expr {
	for {
		next := simplifyOnce(e)
		if exprEqual(next, e) {
			return next
		}
		e = next
	}
}

func simplifyOnce(e Expr) Expr {
	switch e.Kind {
	case KindNot:
		return simplifyNot(simplifyOnce(*e.Operand))
	case KindAnd:
		return simplifyAnd(simplifyChildren(e.Children))
	case KindOr:
		return simplifyOr(simplifyChildren(e.Children))
	default:
		return e
	}
}

func simplifyChildren(children []Expr) []Expr {
	out := make([]Expr, len(children))
	for i, c := range children {
		out[i] = simplifyOnce(c)
	}
	return out
}

// simplifyNot applies De Morgan's laws and double-negation elimination.
func simplifyNot(operand Expr) Expr {
	switch operand.Kind {
	case KindConst:
		return Const(!operand.BoolValue)
	case KindNot:
		return *operand.Operand
	case KindAnd:
		negated := make([]Expr, len(operand.Children))
		for i, c := range operand.Children {
			negated[i] = simplifyNot(c)
		}
		return Or(negated...)
	case KindOr:
		negated := make([]Expr, len(operand.Children))
		for i, c := range operand.Children {
			negated[i] = simplifyNot(c)
		}
		return And(negated...)
	default:
		return Not(operand)
	}
}

// simplifyAnd folds constants, absorbs MatchAny leaves, and applies
// absorption (A ∧ (A∨B) = A): an Or child redundant with a sibling is
// dropped since that sibling already forces the And's truth value. An And
// with no surviving children is vacuously true.
func simplifyAnd(children []Expr) Expr {
	var kept []Expr
	for _, c := range children {
		if c.Kind == KindConst {
			if !c.BoolValue {
				return Const(false)
			}
			continue // true is absorbed
		}
		if c.Kind == KindMatchAny {
			continue
		}
		kept = append(kept, c)
	}
	kept = absorbRedundant(kept, KindOr)
	if len(kept) == 0 {
		return Const(true)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return And(kept...)
}

// simplifyOr folds constants, absorbs MatchAny leaves, and applies
// absorption (A ∨ (A∧B) = A): an And child redundant with a sibling is
// dropped since that sibling already forces the Or's truth value. An Or
// containing a MatchAny child is always true.
func simplifyOr(children []Expr) Expr {
	var kept []Expr
	for _, c := range children {
		if c.Kind == KindConst {
			if c.BoolValue {
				return Const(true)
			}
			continue // false is absorbed
		}
		if c.Kind == KindMatchAny {
			return Const(true)
		}
		kept = append(kept, c)
	}
	kept = absorbRedundant(kept, KindAnd)
	if len(kept) == 0 {
		return Const(false)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return Or(kept...)
}

// absorbRedundant drops any child of kind innerKind whose own children
// include another sibling verbatim, per the absorption laws A∧(A∨B)=A and
// A∨(A∧B)=A: that sibling already pins the whole expression's value, so
// the inner disjunction/conjunction contributes nothing.
func absorbRedundant(children []Expr, innerKind Kind) []Expr {
	var out []Expr
	for i, c := range children {
		if c.Kind == innerKind && hasMatchingSibling(c, children, i) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func hasMatchingSibling(inner Expr, siblings []Expr, skip int) bool {
	for i, sib := range siblings {
		if i == skip {
			continue
		}
		for _, ic := range inner.Children {
			if exprEqual(ic, sib) {
				return true
			}
		}
	}
	return false
}

func exprEqual(a, b Expr) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindConst:
		return a.BoolValue == b.BoolValue
	case KindAnd, KindOr:
		if len(a.Children) != len(b.Children) {
			return false
		}
		for i := range a.Children {
			if !exprEqual(a.Children[i], b.Children[i]) {
				return false
			}
		}
		return true
	case KindNot:
		return exprEqual(*a.Operand, *b.Operand)
	case KindMatchField:
		if a.Field != b.Field || len(a.Values) != len(b.Values) {
			return false
		}
		for i := range a.Values {
			if a.Values[i] != b.Values[i] {
				return false
			}
		}
		return true
	case KindMatchSource:
		return a.SourceName == b.SourceName
	case KindMatchSourceLayer:
		return a.SourceLayerName == b.SourceLayerName
	case KindMatchGeometryType:
		return a.GeometryKind == b.GeometryKind
	case KindMatchAny:
		return true
	default:
		return false
	}
}
