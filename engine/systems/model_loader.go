package systems

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/vesta/engine/assets/loaders"
	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
	"github.com/spaghettifunk/vesta/engine/scene"
)

// ModelLoader turns a model file into graph entities through the scene
// manager's factories.
type ModelLoader interface {
	LoadModel(sm *SceneManager, path string) (*scene.Model, error)
}

/**
 * @brief Loads Wavefront OBJ files. Every OBJ mesh becomes a child node of
 * one root node. A mesh using material "m" takes it from "m.vmt" next to
 * the model file, or the default material when that file doesn't exist.
 */
type OBJModelLoader struct {
	loader loaders.ModelLoader
}

func (l *OBJModelLoader) LoadModel(sm *SceneManager, path string) (*scene.Model, error) {
	res, err := l.loader.Load(path, loaders.ResourceTypeModel, nil)
	if err != nil {
		return nil, err
	}
	defer l.loader.Unload(res)
	data := res.Data.(*loaders.ModelData)

	root, err := sm.NewNode(math.TransformCreate(), data.Name)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	materials := make(map[string]*scene.Material)
	for _, m := range data.Meshes {
		material, err := l.material(sm, dir, m.Material, materials)
		if err != nil {
			return nil, err
		}
		aabb := math.NewAABBEmpty()
		for _, p := range m.Positions {
			aabb = aabb.MergePoint(p)
		}
		prim, err := sm.NewPrimitive(scene.VertexData{
			Positions: m.Positions,
			Normals:   m.Normals,
			UVs:       m.UVs,
			Indices:   m.Indices,
		}, aabb, scene.Triangles, scene.Static)
		if err != nil {
			return nil, err
		}
		mesh, err := sm.NewMesh(prim, material)
		if err != nil {
			return nil, err
		}
		node, err := sm.NewNode(math.TransformCreate(), m.Name)
		if err != nil {
			return nil, err
		}
		if err := node.AddMesh(mesh.ID()); err != nil {
			return nil, err
		}
		if err := root.AddChild(node.ID()); err != nil {
			return nil, err
		}
	}
	core.LogDebug("Loaded model %s with %d meshes.", data.Name, len(data.Meshes))
	return sm.NewModel([]scene.NodeID{root.ID()}, nil)
}

func (l *OBJModelLoader) material(sm *SceneManager, dir, name string, cache map[string]*scene.Material) (*scene.Material, error) {
	if m, ok := cache[name]; ok {
		return m, nil
	}
	m := sm.graph.Material(0)
	if name != "" {
		path := filepath.Join(dir, name+".vmt")
		if _, err := os.Stat(path); err == nil {
			if m, err = sm.LoadMaterial(path); err != nil {
				return nil, err
			}
		} else {
			core.LogWarn("Material %s not found, using the default material.", path)
		}
	}
	cache[name] = m
	return m, nil
}

// SetJobSystem lets material loading decode its maps on js.
func (sm *SceneManager) SetJobSystem(js *JobSystem) {
	sm.jobs = js
}

// RunJobs runs CPU work on the job system, or inline when none is set.
func (sm *SceneManager) RunJobs(jobs ...Job) error {
	return runJobs(sm.jobs, jobs...)
}

type materialMap struct {
	path  string
	gray  bool
	image *loaders.ImageData
	set   func(scene.TextureID) *scene.Material
}

// LoadMaterial reads a .vmt description and uploads the maps it names.
// Map paths are relative to the material file.
func (sm *SceneManager) LoadMaterial(path string) (*scene.Material, error) {
	var loader loaders.MaterialLoader
	res, err := loader.Load(path, loaders.ResourceTypeMaterial, nil)
	if err != nil {
		return nil, err
	}
	cfg := res.Data.(*loaders.MaterialConfig)
	t, err := scene.ParseMaterialType(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("material %s: %w", path, err)
	}

	var maps []*materialMap
	dir := filepath.Dir(path)
	add := func(file string, gray bool) *materialMap {
		if file == "" {
			return nil
		}
		m := &materialMap{path: filepath.Join(dir, file), gray: gray}
		maps = append(maps, m)
		return m
	}
	color := add(cfg.Maps.Color, false)
	pbr := add(cfg.Maps.PBR, false)
	normal := add(cfg.Maps.Normal, false)
	occlusion := add(cfg.Maps.Occlusion, false)
	emissive := add(cfg.Maps.Emissive, false)
	height := add(cfg.Maps.Height, true)
	if err := sm.ensureTextures(len(maps)); err != nil {
		return nil, err
	}

	jobs := make([]Job, len(maps))
	for i, m := range maps {
		jobs[i] = func() error {
			var err error
			m.image, err = loaders.LoadImage(m.path, loaders.ImageParams{Gray: m.gray, Mipmaps: !m.gray})
			return err
		}
	}
	if err := runJobs(sm.jobs, jobs...); err != nil {
		return nil, fmt.Errorf("material %s: %w", path, err)
	}

	material, err := sm.NewMaterial(t)
	if err != nil {
		return nil, err
	}
	material.SetColorFactor(cfg.Color()).
		SetPbrFactor(cfg.PBR()).
		SetEmissiveFactor(cfg.Emissive()).
		SetOcclusionStrength(cfg.OcclusionStrength).
		SetAlphaCutoff(cfg.AlphaCutoff)
	bind := func(m *materialMap, set func(scene.TextureID) *scene.Material) {
		if m != nil {
			m.set = set
		}
	}
	bind(color, material.SetColorTex)
	bind(pbr, material.SetPbrTex)
	bind(normal, material.SetNormalTex)
	bind(occlusion, material.SetOcclusionTex)
	bind(emissive, material.SetEmissiveTex)
	bind(height, material.SetHeightTex)

	for _, m := range maps {
		var id scene.TextureID
		if m.gray {
			id, err = sm.NewGrayTexture(m.image.Width, m.image.Height, m.image.Levels[0], nil)
		} else {
			id, err = sm.NewTextureFromImage(m.image, nil)
		}
		if err != nil {
			return nil, err
		}
		m.set(id)
	}
	core.LogDebug("Loaded material %s (%s, %d maps).", cfg.Name, t, len(maps))
	return material, nil
}
