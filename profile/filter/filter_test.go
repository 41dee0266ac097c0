package filter

import (
	"testing"

	"github.com/planetiler/planetiler-go/render"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateMatchField(t *testing.T) {
	e := MatchField("highway")
	in := Input{Tags: map[string]interface{}{"highway": "residential"}}
	assert.True(t, Evaluate(e, in, nil))
	assert.False(t, Evaluate(e, Input{Tags: map[string]interface{}{}}, nil))
}

func TestEvaluateMatchFieldValues(t *testing.T) {
	e := MatchField("highway", "motorway", "trunk")
	assert.True(t, Evaluate(e, Input{Tags: map[string]interface{}{"highway": "trunk"}}, nil))
	assert.False(t, Evaluate(e, Input{Tags: map[string]interface{}{"highway": "residential"}}, nil))
}

func TestEvaluateMatchFieldTracksKeys(t *testing.T) {
	e := And(MatchField("highway"), MatchField("name"))
	keys := make(map[string]struct{})
	Evaluate(e, Input{Tags: map[string]interface{}{"highway": "x", "name": "y"}}, keys)
	assert.Contains(t, keys, "highway")
	assert.Contains(t, keys, "name")
}

func TestEvaluateAndOrNot(t *testing.T) {
	e := And(MatchSource("osm"), Or(MatchField("highway"), MatchField("railway")))
	in := Input{SourceName: "osm", Tags: map[string]interface{}{"railway": "rail"}}
	assert.True(t, Evaluate(e, in, nil))

	neg := Not(e)
	assert.False(t, Evaluate(neg, in, nil))
}

func TestEvaluateMatchGeometryAndSourceLayer(t *testing.T) {
	e := And(MatchGeometryType(render.KindLine), MatchSourceLayer("roads"))
	in := Input{Geometry: render.KindLine, SourceLayer: "roads"}
	assert.True(t, Evaluate(e, in, nil))
	in.Geometry = render.KindPoint
	assert.False(t, Evaluate(e, in, nil))
}

func TestSimplifyConstantFolding(t *testing.T) {
	e := And(Const(true), MatchSource("osm"), Const(true))
	got := Simplify(e)
	assert.Equal(t, MatchSource("osm"), got)

	allFalse := Or(Const(false), Const(false))
	assert.Equal(t, Const(false), Simplify(allFalse))

	shortCircuit := And(Const(false), MatchSource("osm"))
	assert.Equal(t, Const(false), Simplify(shortCircuit))
}

func TestSimplifyMatchAnyAbsorption(t *testing.T) {
	andWithAny := And(MatchAny(), MatchSource("osm"))
	assert.Equal(t, MatchSource("osm"), Simplify(andWithAny))

	orWithAny := Or(MatchAny(), MatchSource("osm"))
	assert.Equal(t, Const(true), Simplify(orWithAny))
}

func TestSimplifyDeMorgan(t *testing.T) {
	e := Not(And(MatchSource("a"), MatchSource("b")))
	got := Simplify(e)
	assert.Equal(t, Or(Not(MatchSource("a")), Not(MatchSource("b"))), got)

	e2 := Not(Or(MatchSource("a"), MatchSource("b")))
	got2 := Simplify(e2)
	assert.Equal(t, And(Not(MatchSource("a")), Not(MatchSource("b"))), got2)
}

func TestSimplifyDoubleNegation(t *testing.T) {
	e := Not(Not(MatchSource("osm")))
	assert.Equal(t, MatchSource("osm"), Simplify(e))
}

func TestSimplifySingleChildCollapses(t *testing.T) {
	e := And(MatchSource("osm"))
	assert.Equal(t, MatchSource("osm"), Simplify(e))
}

func TestSimplifyAbsorption(t *testing.T) {
	// A ∧ (A∨B) = A
	andOr := And(MatchSource("a"), Or(MatchSource("a"), MatchSource("b")))
	assert.Equal(t, MatchSource("a"), Simplify(andOr))

	// A ∨ (A∧B) = A
	orAnd := Or(MatchSource("a"), And(MatchSource("a"), MatchSource("b")))
	assert.Equal(t, MatchSource("a"), Simplify(orAnd))
}
