package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/spaghettifunk/vesta/engine/math"
)

// MeshData is one indexed triangle list. Material names the usemtl entry
// the faces were declared under.
type MeshData struct {
	Name      string
	Material  string
	Positions []math.Vec3
	Normals   []math.Vec3
	UVs       []math.Vec2
	Indices   []uint32
}

type ModelData struct {
	Name   string
	Meshes []MeshData
}

type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, assetType ResourceType, params any) (*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model %s: %v: %w", path, err, core.ErrExternalResource)
	}
	defer f.Close()

	model, err := ParseOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	model.Name = baseName(path)
	var size uint64
	for _, m := range model.Meshes {
		size += uint64(len(m.Positions)*12*2 + len(m.UVs)*8 + len(m.Indices)*4)
	}
	return &Resource{
		Name:     model.Name,
		FullPath: path,
		Type:     ResourceTypeModel,
		DataSize: size,
		Data:     model,
	}, nil
}

func (ml *ModelLoader) Unload(*Resource) error {
	return nil
}

type objVertex struct {
	v, vt, vn int
}

type objMesh struct {
	mesh    MeshData
	lookup  map[objVertex]uint32
	normals bool
}

// ParseOBJ reads Wavefront geometry. Every o, g or usemtl statement starts a
// new mesh; polygons are fanned into triangles. Meshes without vertex
// normals get smooth normals averaged from their faces.
func ParseOBJ(r io.Reader) (*ModelData, error) {
	var (
		positions []math.Vec3
		normals   []math.Vec3
		uvs       []math.Vec2
		meshes    []*objMesh
		current   *objMesh
		name      = "default"
		material  string
	)
	start := func() {
		current = &objMesh{mesh: MeshData{Name: name, Material: material}, lookup: make(map[objVertex]uint32)}
		meshes = append(meshes, current)
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, objError(line, err)
			}
			positions = append(positions, math.NewVec3(v[0], v[1], v[2]))
		case "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, objError(line, err)
			}
			normals = append(normals, math.NewVec3(v[0], v[1], v[2]))
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, objError(line, err)
			}
			uvs = append(uvs, math.NewVec2(v[0], 1-v[1]))
		case "o", "g":
			if len(fields) > 1 {
				name = strings.Join(fields[1:], " ")
			}
			current = nil
		case "usemtl":
			if len(fields) > 1 {
				material = fields[1]
			}
			current = nil
		case "f":
			if len(fields) < 4 {
				return nil, objError(line, fmt.Errorf("face with %d vertices", len(fields)-1))
			}
			if current == nil {
				start()
			}
			face := make([]uint32, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				key, err := parseFaceVertex(ref, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, objError(line, err)
				}
				face = append(face, current.vertex(key, positions, uvs, normals))
			}
			for i := 1; i+1 < len(face); i++ {
				current.mesh.Indices = append(current.mesh.Indices, face[0], face[i], face[i+1])
			}
		}
		// mtllib, s and the rest are ignored; materials come from .vmt files.
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read obj: %v: %w", err, core.ErrExternalResource)
	}

	model := &ModelData{}
	for _, m := range meshes {
		if len(m.mesh.Indices) == 0 {
			continue
		}
		if !m.normals {
			smoothNormals(&m.mesh)
		}
		model.Meshes = append(model.Meshes, m.mesh)
	}
	if len(model.Meshes) == 0 {
		return nil, fmt.Errorf("obj has no faces: %w", core.ErrExternalResource)
	}
	return model, nil
}

func (m *objMesh) vertex(key objVertex, positions []math.Vec3, uvs []math.Vec2, normals []math.Vec3) uint32 {
	if idx, ok := m.lookup[key]; ok {
		return idx
	}
	idx := uint32(len(m.mesh.Positions))
	m.mesh.Positions = append(m.mesh.Positions, positions[key.v])
	uv := math.Vec2{}
	if key.vt >= 0 {
		uv = uvs[key.vt]
	}
	m.mesh.UVs = append(m.mesh.UVs, uv)
	n := math.Vec3{}
	if key.vn >= 0 {
		n = normals[key.vn]
		m.normals = true
	}
	m.mesh.Normals = append(m.mesh.Normals, n)
	m.lookup[key] = idx
	return idx
}

func smoothNormals(m *MeshData) {
	acc := make([]math.Vec3, len(m.Positions))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		n := m.Positions[b].Sub(m.Positions[a]).Cross(m.Positions[c].Sub(m.Positions[a]))
		acc[a], acc[b], acc[c] = acc[a].Add(n), acc[b].Add(n), acc[c].Add(n)
	}
	for i, n := range acc {
		if n.Length() > 0 {
			m.Normals[i] = n.Normalize()
		}
	}
}

// parseFaceVertex resolves "v", "v/vt", "v//vn" and "v/vt/vn" references,
// including negative (relative) indices, to zero-based indices. Missing
// parts are -1.
func parseFaceVertex(ref string, nv, nvt, nvn int) (objVertex, error) {
	parts := strings.Split(ref, "/")
	key := objVertex{v: -1, vt: -1, vn: -1}
	dst := []*int{&key.v, &key.vt, &key.vn}
	limits := []int{nv, nvt, nvn}
	for i, p := range parts {
		if i >= 3 {
			return key, fmt.Errorf("bad face vertex %q", ref)
		}
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return key, fmt.Errorf("bad face vertex %q", ref)
		}
		if n < 0 {
			n = limits[i] + n
		} else {
			n--
		}
		if n < 0 || n >= limits[i] {
			return key, fmt.Errorf("face vertex %q out of range", ref)
		}
		*dst[i] = n
	}
	if key.v < 0 {
		return key, fmt.Errorf("face vertex %q has no position", ref)
	}
	return key, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", fields[i])
		}
		out[i] = float32(f)
	}
	return out, nil
}

func objError(line int, err error) error {
	return fmt.Errorf("obj line %d: %v: %w", line, err, core.ErrExternalResource)
}
