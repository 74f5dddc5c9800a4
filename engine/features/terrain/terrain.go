// Package terrain builds tessellated height-map terrain out of tiled map
// exports, each tile with a translucent sea box around its base.
package terrain

import (
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/renderer/vulkan"
	"github.com/spaghettifunk/vesta/engine/scene"
	"github.com/spaghettifunk/vesta/engine/systems"
)

// HorizonColor tints the sea box of every tile.
var HorizonColor = math.NewVec4(39.0/255.0, 93.0/255.0, 121.0/255.0, 0.5)

const (
	DefaultTesselationLevel float32 = 64
	horizonPanning          float32 = 1
)

// Maps names the three images of one tile, relative to the terrain folder.
type Maps struct {
	Height string
	Normal string
	Albedo string
}

/**
 * @brief Grid settings of one tile. Tiles exported with shared edge
 * vertices line up without seams.
 */
type Options struct {
	NumVertexX       uint32
	NumVertexY       uint32
	SeaLevelRatio    float32
	TesselationLevel float32
}

func (o Options) withDefaults() Options {
	if o.TesselationLevel == 0 {
		o.TesselationLevel = DefaultTesselationLevel
	}
	return o
}

type Tile struct {
	Grid     *scene.ModelInstance
	Horizon  *scene.ModelInstance
	Material *scene.Material
	AABB     math.AABB
}

type Terrain struct {
	sm    *systems.SceneManager
	tiles []*Tile
}

func New() *Terrain {
	return &Terrain{}
}

func (t *Terrain) Name() string { return "terrain" }

func (t *Terrain) Init(sm *systems.SceneManager) error {
	t.sm = sm
	return nil
}

func (t *Terrain) Update(cb vulkan.CommandRecorder, frame uint32, elapsed float32) error {
	return nil
}

func (t *Terrain) Resize(width, height uint32) error {
	return nil
}

// Destroy forgets the tiles. Their entities belong to the scene graph.
func (t *Terrain) Destroy() {
	t.tiles = nil
}

func (t *Terrain) Tiles() []*Tile {
	return t.tiles
}

// LoadSingle creates one tile covering aabb from the images in folder.
func (t *Terrain) LoadSingle(folder string, maps Maps, aabb math.AABB, opts Options) (*Tile, error) {
	if t.sm == nil {
		return nil, fmt.Errorf("terrain used before Init: %w", core.ErrInvariantViolation)
	}
	opts = opts.withDefaults()
	if opts.NumVertexX == 0 || opts.NumVertexY == 0 {
		return nil, fmt.Errorf("terrain grid of %dx%d vertices: %w", opts.NumVertexX, opts.NumVertexY, core.ErrInvariantViolation)
	}
	height, err := loaders.LoadImage(filepath.Join(folder, maps.Height), loaders.ImageParams{Gray: true})
	if err != nil {
		return nil, err
	}

	tile, err := t.newTile(aabb, opts)
	if err != nil {
		return nil, err
	}
	heightTex, err := t.sm.NewGrayTexture(height.Width, height.Height, height.Levels[0], nil)
	if err != nil {
		return nil, err
	}
	normalTex, err := t.sm.NewTexture(filepath.Join(folder, maps.Normal), false, nil)
	if err != nil {
		return nil, err
	}
	albedoTex, err := t.sm.NewTexture(filepath.Join(folder, maps.Albedo), true, nil)
	if err != nil {
		return nil, err
	}
	tile.Material.SetColorTex(albedoTex).SetNormalTex(normalTex).SetHeightTex(heightTex)
	t.tiles = append(t.tiles, tile)
	core.LogDebug("Terrain tile %s loaded.", maps.Height)
	return tile, nil
}

// newTile spawns the sea box and the patch grid of a tile. The grid spans
// the tile footprint at height zero; the height map lifts it in the
// tessellation shaders up to aabb.Max.Y.
func (t *Terrain) newTile(aabb math.AABB, opts Options) (*Tile, error) {
	center := aabb.Center()
	half := aabb.HalfRange()
	size := aabb.Max.Sub(aabb.Min)
	seaLevel := math.Clamp(opts.SeaLevelRatio, 0, 1) * size.Y
	seaCenter := aabb.Min.Y + seaLevel/2

	b := scene.NewPrimitiveBuilder().
		Box(math.NewVec3(center.X, seaCenter-horizonPanning, center.Z),
			math.NewVec3(0, 0, half.Z), math.NewVec3(half.X, 0, 0), seaLevel/2+horizonPanning).
		NewPrimitive(scene.Triangles, scene.Static).
		GridPatch(opts.NumVertexX, opts.NumVertexY, math.NewVec3(center.X, 0, center.Z),
			math.NewVec3(0, 0, 1), math.NewVec3(1, 0, 0),
			size.Z/float32(opts.NumVertexX), size.X/float32(opts.NumVertexY)).
		NewPrimitive(scene.Patches, scene.Static)
	prims, err := t.sm.NewPrimitives(b)
	if err != nil {
		return nil, err
	}
	horizonPrim, gridPrim := prims[0], prims[1]
	gridPrim.SetAABB(aabb)
	gridPrim.SetTesselationLevel(opts.TesselationLevel)

	horizonMat, err := t.sm.NewMaterial(scene.MaterialTranslucent)
	if err != nil {
		return nil, err
	}
	horizonMat.SetColorFactor(HorizonColor)
	horizon, err := t.sm.SpawnMesh(horizonPrim, horizonMat, "terrain-horizon", math.TransformCreate())
	if err != nil {
		return nil, err
	}

	gridMat, err := t.sm.NewMaterial(scene.MaterialTerrain)
	if err != nil {
		return nil, err
	}
	grid, err := t.sm.SpawnMesh(gridPrim, gridMat, "terrain-grid", math.TransformCreate())
	if err != nil {
		return nil, err
	}
	return &Tile{Grid: grid, Horizon: horizon, Material: gridMat, AABB: aabb}, nil
}

/**
 * @brief Loads a patchNumX by patchNumY tiled export. Tile (x, y) reads
 * "<prefix>_x_y.png" for each map and covers one cell of aabb.
 */
func (t *Terrain) LoadPatches(folder string, prefixes Maps, patchNumX, patchNumY uint32, aabb math.AABB, opts Options) error {
	if patchNumX == 0 || patchNumY == 0 {
		return fmt.Errorf("terrain of %dx%d patches: %w", patchNumX, patchNumY, core.ErrInvariantViolation)
	}
	for nx := uint32(0); nx < patchNumX; nx++ {
		for ny := uint32(0); ny < patchNumY; ny++ {
			name := func(prefix string) string {
				return fmt.Sprintf("%s_%d_%d.png", prefix, nx, ny)
			}
			maps := Maps{Height: name(prefixes.Height), Normal: name(prefixes.Normal), Albedo: name(prefixes.Albedo)}
			if _, err := t.LoadSingle(folder, maps, PatchBounds(aabb, patchNumX, patchNumY, nx, ny), opts); err != nil {
				return err
			}
		}
	}
	return nil
}

// PatchBounds is the box of tile (nx, ny). Columns advance along +X and
// rows from the +Z edge towards -Z, the order of the exported tiles.
func PatchBounds(aabb math.AABB, patchNumX, patchNumY, nx, ny uint32) math.AABB {
	size := aabb.Max.Sub(aabb.Min)
	unitX := size.X / float32(patchNumX)
	unitZ := size.Z / float32(patchNumY)
	return math.NewAABB(
		math.NewVec3(aabb.Min.X+float32(nx)*unitX, aabb.Min.Y, aabb.Max.Z-float32(ny+1)*unitZ),
		math.NewVec3(aabb.Min.X+float32(nx+1)*unitX, aabb.Max.Y, aabb.Max.Z-float32(ny)*unitZ),
	)
}
