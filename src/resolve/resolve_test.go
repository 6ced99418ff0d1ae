package resolve

import (
	"testing"

	"github.com/kilnbuild/kiln/src/core"
	"github.com/stretchr/testify/assert"
)

func mustAddTarget(t *testing.T, g *core.Graph, target *core.Target) {
	t.Helper()
	assert.NoError(t, g.AddTarget(target))
}

func TestResolveSimpleChain(t *testing.T) {
	g := core.NewGraph()
	leaf := core.NewTarget(core.NewLabel("pkg", "leaf"), "copy")
	mid := core.NewTarget(core.NewLabel("pkg", "mid"), "copy")
	mid.Deps = []core.Label{leaf.Label}
	root := core.NewTarget(core.NewLabel("pkg", "root"), "copy")
	root.Deps = []core.Label{mid.Label}
	mustAddTarget(t, g, leaf)
	mustAddTarget(t, g, mid)
	mustAddTarget(t, g, root)

	result, err := Resolve(g, []core.Label{root.Label})
	assert.NoError(t, err)
	assert.Len(t, result.Targets, 3)
	assert.Equal(t, []core.Label{mid.Label}, result.Edges[root.Label])

	order := TopoOrder(result)
	assert.Equal(t, leaf.Label, order[0])
	assert.Equal(t, root.Label, order[len(order)-1])
}

func TestResolveDetectsCycle(t *testing.T) {
	g := core.NewGraph()
	a := core.NewTarget(core.NewLabel("pkg", "a"), "copy")
	b := core.NewTarget(core.NewLabel("pkg", "b"), "copy")
	a.Deps = []core.Label{b.Label}
	b.Deps = []core.Label{a.Label}
	mustAddTarget(t, g, a)
	mustAddTarget(t, g, b)

	_, err := Resolve(g, []core.Label{a.Label})
	assert.Error(t, err)
	var cycleErr *CyclicDependencyError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestResolveUndeclaredDirectoryDependency(t *testing.T) {
	g := core.NewGraph()
	producer := core.NewTarget(core.NewLabel("pkg", "gen"), "gen")
	producer.OutputIsDirectory = true
	assert.NoError(t, producer.AddOutput("/out/gen"))
	consumer := core.NewTarget(core.NewLabel("pkg", "consumer"), "copy")
	consumer.Sources = &core.GeneratedDirPathSet{Producer: producer.Label}
	mustAddTarget(t, g, producer)
	mustAddTarget(t, g, consumer)

	_, err := Resolve(g, []core.Label{consumer.Label})
	assert.Error(t, err)
	var undeclared *UndeclaredDirectoryDependencyError
	assert.ErrorAs(t, err, &undeclared)
}

func TestResolveAllowsDeclaredDirectoryDependency(t *testing.T) {
	g := core.NewGraph()
	producer := core.NewTarget(core.NewLabel("pkg", "gen"), "gen")
	producer.OutputIsDirectory = true
	assert.NoError(t, producer.AddOutput("/out/gen"))
	consumer := core.NewTarget(core.NewLabel("pkg", "consumer"), "copy")
	consumer.Sources = &core.GeneratedDirPathSet{Producer: producer.Label}
	consumer.Deps = []core.Label{producer.Label}
	mustAddTarget(t, g, producer)
	mustAddTarget(t, g, consumer)

	result, err := Resolve(g, []core.Label{consumer.Label})
	assert.NoError(t, err)
	assert.Len(t, result.Targets, 2)
}

func TestResolveUnknownTargetErrors(t *testing.T) {
	g := core.NewGraph()
	_, err := Resolve(g, []core.Label{core.NewLabel("pkg", "missing")})
	assert.Error(t, err)
}

func TestResolveUnknownDependencyErrors(t *testing.T) {
	g := core.NewGraph()
	root := core.NewTarget(core.NewLabel("pkg", "root"), "copy")
	root.Deps = []core.Label{core.NewLabel("pkg", "missing")}
	mustAddTarget(t, g, root)

	_, err := Resolve(g, []core.Label{root.Label})
	assert.Error(t, err)
}
