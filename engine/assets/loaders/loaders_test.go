package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/spaghettifunk/vesta/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, fill func(x, y int) color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImageRGBA(t *testing.T) {
	data := encodePNG(t, 3, 2, func(x, y int) color.RGBA { return color.RGBA{R: uint8(x), G: uint8(y), A: 255} })
	img, err := DecodeImage(bytes.NewReader(data), ImageParams{})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Equal(t, uint8(4), img.Channels)
	require.Len(t, img.Levels, 1)
	assert.Len(t, img.Levels[0], 3*2*4)
	// texel (2, 1)
	assert.Equal(t, []byte{2, 1, 0, 255}, img.Levels[0][(1*3+2)*4:(1*3+2)*4+4])
}

func TestDecodeImageFlipY(t *testing.T) {
	data := encodePNG(t, 1, 2, func(x, y int) color.RGBA { return color.RGBA{R: uint8(10 * y), A: 255} })
	img, err := DecodeImage(bytes.NewReader(data), ImageParams{FlipY: true})
	require.NoError(t, err)
	assert.Equal(t, byte(10), img.Levels[0][0])
	assert.Equal(t, byte(0), img.Levels[0][4])
}

func TestDecodeImageMipmapsResizeToPowerOfTwo(t *testing.T) {
	data := encodePNG(t, 5, 3, func(x, y int) color.RGBA { return color.RGBA{R: 200, G: 100, B: 50, A: 255} })
	img, err := DecodeImage(bytes.NewReader(data), ImageParams{Mipmaps: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(8), img.Width)
	assert.Equal(t, uint32(4), img.Height)
	// 8x4, 4x2, 2x1, 1x1
	require.Len(t, img.Levels, 4)
	assert.Len(t, img.Levels[1], 4*2*4)
	assert.Len(t, img.Levels[3], 4)
	assert.InDelta(t, 200, int(img.Levels[3][0]), 2)
}

func TestDecodeImageGray(t *testing.T) {
	data := encodePNG(t, 2, 2, func(x, y int) color.RGBA { return color.RGBA{R: 255, G: 255, B: 255, A: 255} })
	img, err := DecodeImage(bytes.NewReader(data), ImageParams{Gray: true})
	require.NoError(t, err)
	assert.Equal(t, uint8(1), img.Channels)
	assert.Equal(t, []byte{255, 255, 255, 255}, img.Levels[0])
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, err := DecodeImage(strings.NewReader("not an image"), ImageParams{})
	assert.ErrorIs(t, err, core.ErrExternalResource)
}

func TestParseMaterial(t *testing.T) {
	cfg, err := ParseMaterial([]byte(`
name = "brick"
type = "translucent"
color_factor = [0.5, 0.5, 0.5, 0.25]

[maps]
color = "brick.png"
normal = "brick_n.png"
`))
	require.NoError(t, err)
	assert.Equal(t, "brick", cfg.Name)
	assert.Equal(t, "translucent", cfg.Type)
	assert.Equal(t, float32(0.25), cfg.Color().W)
	assert.Equal(t, float32(1), cfg.PBR().Y, "defaults survive")
	assert.Equal(t, float32(1), cfg.OcclusionStrength)
	assert.Equal(t, "brick_n.png", cfg.Maps.Normal)
	assert.Empty(t, cfg.Maps.Height)
}

func TestParseMaterialValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing name", `type = "brdf"`},
		{"colour out of range", "name = \"x\"\ncolor_factor = [2, 0, 0, 1]"},
		{"negative occlusion", "name = \"x\"\nocclusion_strength = -1.0"},
		{"broken toml", "name = "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMaterial([]byte(tt.data))
			assert.ErrorIs(t, err, core.ErrExternalResource)
		})
	}
}

const quadOBJ = `
# a unit quad and a triangle
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
o tri
v 0 0 1
v 1 0 1
v 0 1 1
f -3 -2 -1
`

func TestParseOBJ(t *testing.T) {
	model, err := ParseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)
	require.Len(t, model.Meshes, 2)

	quad := model.Meshes[0]
	assert.Equal(t, "quad", quad.Name)
	assert.Equal(t, "red", quad.Material)
	assert.Len(t, quad.Positions, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, quad.Indices)
	assert.Equal(t, float32(1), quad.Normals[0].Z)
	assert.Equal(t, float32(1), quad.UVs[0].Y, "v is flipped")

	tri := model.Meshes[1]
	assert.Equal(t, "tri", tri.Name)
	assert.Equal(t, []uint32{0, 1, 2}, tri.Indices)
	assert.InDelta(t, 1, tri.Normals[0].Z, 1e-6, "normals are generated")
	assert.Equal(t, float32(1), tri.Positions[0].Z)
}

func TestParseOBJErrors(t *testing.T) {
	tests := map[string]string{
		"no faces":         "v 0 0 0\n",
		"index range":      "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n",
		"degenerate face":  "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"bad float":        "v 0 x 0\n",
		"bad face element": "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1/a 2 3\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(src))
			assert.ErrorIs(t, err, core.ErrExternalResource)
		})
	}
}

func TestFloatTable(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(-2))
	values, err := FloatTable(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, values)

	_, err = FloatTable(buf, 3)
	assert.ErrorIs(t, err, core.ErrExternalResource)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ResourceTypeImage, TypeOf("textures/a.webp"))
	assert.Equal(t, ResourceTypeShader, TypeOf("shaders/gbuffer.vert.spv"))
	assert.Equal(t, ResourceTypeMaterial, TypeOf("a.vmt"))
	assert.Equal(t, ResourceTypeModel, TypeOf("a.obj"))
	assert.Equal(t, ResourceTypeNone, TypeOf("README"))
}
