package terrain

import (
	"image/color"
	"testing"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/scene"
	"github.com/spaghettifunk/vesta/engine/systems/systemstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTile(t *testing.T, dir string, suffix string) Maps {
	t.Helper()
	systemstest.WritePNG(t, dir, "height"+suffix+".png", 4, 4, color.RGBA{128, 128, 128, 255})
	systemstest.WritePNG(t, dir, "normal"+suffix+".png", 4, 4, color.RGBA{128, 128, 255, 255})
	systemstest.WritePNG(t, dir, "albedo"+suffix+".png", 4, 4, color.RGBA{20, 160, 40, 255})
	return Maps{Height: "height" + suffix + ".png", Normal: "normal" + suffix + ".png", Albedo: "albedo" + suffix + ".png"}
}

func TestLoadSingle(t *testing.T) {
	sm, _ := systemstest.NewSceneManager(t, systemstest.Config())
	dir := t.TempDir()
	maps := writeTile(t, dir, "")

	tr := New()
	require.NoError(t, tr.Init(sm))
	aabb := math.NewAABB(math.NewVec3(-50, 0, -50), math.NewVec3(50, 20, 50))
	tile, err := tr.LoadSingle(dir, maps, aabb, Options{NumVertexX: 4, NumVertexY: 4, SeaLevelRatio: 0.25})
	require.NoError(t, err)
	require.Len(t, tr.Tiles(), 1)

	assert.Equal(t, scene.MaterialTerrain, tile.Material.Type())
	assert.Equal(t, scene.TextureID(1), tile.Material.HeightTex())
	assert.Equal(t, scene.TextureID(2), tile.Material.NormalTex())
	assert.Equal(t, scene.TextureID(3), tile.Material.ColorTex())

	queues := sm.Buffers().DrawQueue
	assert.Equal(t, uint32(1), queues.Count(scene.Terrain))
	assert.Equal(t, uint32(1), queues.Count(scene.TransparentTriangles), "sea box")

	grid := sm.Graph().Primitive(1)
	assert.Equal(t, scene.Patches, grid.Topology())
	assert.Equal(t, aabb, grid.AABB())
	assert.Equal(t, DefaultTesselationLevel, grid.TesselationLevel())
	assert.Equal(t, uint32(4*4*4), grid.Index().Size, "four control points per cell")

	horizon := sm.Graph().Material(1)
	assert.Equal(t, scene.MaterialTranslucent, horizon.Type())
	assert.Equal(t, HorizonColor, horizon.ColorFactor())
}

func TestLoadSingleErrors(t *testing.T) {
	tr := New()
	_, err := tr.LoadSingle("", Maps{}, math.NewAABBEmpty(), Options{NumVertexX: 1, NumVertexY: 1})
	assert.ErrorIs(t, err, core.ErrInvariantViolation, "used before Init")

	sm, _ := systemstest.NewSceneManager(t, systemstest.Config())
	require.NoError(t, tr.Init(sm))
	_, err = tr.LoadSingle(t.TempDir(), Maps{}, math.NewAABBEmpty(), Options{})
	assert.ErrorIs(t, err, core.ErrInvariantViolation, "empty grid")

	_, err = tr.LoadSingle(t.TempDir(), Maps{Height: "missing.png"}, math.NewAABBEmpty(), Options{NumVertexX: 2, NumVertexY: 2})
	assert.ErrorIs(t, err, core.ErrExternalResource)
	assert.Zero(t, sm.Graph().Stats().Meshes, "nothing spawned for a missing map")
}

func TestLoadPatches(t *testing.T) {
	sm, _ := systemstest.NewSceneManager(t, systemstest.Config())
	dir := t.TempDir()
	for _, s := range []string{"_0_0", "_0_1", "_1_0", "_1_1"} {
		writeTile(t, dir, s)
	}
	tr := New()
	require.NoError(t, tr.Init(sm))
	aabb := math.NewAABB(math.NewVec3(0, 0, 0), math.NewVec3(200, 10, 100))
	prefixes := Maps{Height: "height", Normal: "normal", Albedo: "albedo"}
	require.NoError(t, tr.LoadPatches(dir, prefixes, 2, 2, aabb, Options{NumVertexX: 2, NumVertexY: 2}))

	require.Len(t, tr.Tiles(), 4)
	merged := math.NewAABBEmpty()
	for _, tile := range tr.Tiles() {
		merged = merged.Merge(tile.AABB)
	}
	assert.Equal(t, aabb, merged, "tiles cover the whole terrain")
	assert.Equal(t, uint32(4), sm.Buffers().DrawQueue.Count(scene.Terrain))

	assert.ErrorIs(t, tr.LoadPatches(dir, prefixes, 0, 2, aabb, Options{}), core.ErrInvariantViolation)
}

func TestPatchBounds(t *testing.T) {
	aabb := math.NewAABB(math.NewVec3(0, -5, 0), math.NewVec3(100, 5, 50))
	b := PatchBounds(aabb, 2, 2, 1, 0)
	assert.Equal(t, math.NewVec3(50, -5, 25), b.Min)
	assert.Equal(t, math.NewVec3(100, 5, 50), b.Max)
}
