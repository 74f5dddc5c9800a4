package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/spaghettifunk/vesta/engine/core"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageParams controls how an image is turned into texture data.
type ImageParams struct {
	FlipY bool
	// Gray keeps a single 8-bit channel instead of RGBA8.
	Gray bool
	// Mipmaps resizes to power-of-two sides and builds a full mip chain.
	Mipmaps bool
}

// ImageData is a decoded image. Levels[0] has Width x Height texels, every
// next level halves both sides down to 1.
type ImageData struct {
	Width    uint32
	Height   uint32
	Channels uint8
	Levels   [][]byte
}

type ImageLoader struct{}

func (il *ImageLoader) Load(path string, assetType ResourceType, params any) (*Resource, error) {
	p, _ := params.(*ImageParams)
	if p == nil {
		p = &ImageParams{}
	}
	data, err := LoadImage(path, *p)
	if err != nil {
		return nil, err
	}
	var size uint64
	for _, l := range data.Levels {
		size += uint64(len(l))
	}
	return &Resource{
		Name:     baseName(path),
		FullPath: path,
		Type:     ResourceTypeImage,
		DataSize: size,
		Data:     data,
	}, nil
}

func (il *ImageLoader) Unload(*Resource) error {
	return nil
}

// LoadImage opens and decodes the image at path.
func LoadImage(path string, params ImageParams) (*ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %v: %w", path, err, core.ErrExternalResource)
	}
	defer f.Close()
	return DecodeImage(f, params)
}

// DecodeImage decodes any registered format into 8-bit texels.
func DecodeImage(r io.Reader, params ImageParams) (*ImageData, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v: %w", err, core.ErrExternalResource)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%s image is empty: %w", format, core.ErrExternalResource)
	}

	w, h := b.Dx(), b.Dy()
	if params.Mipmaps {
		w, h = nextPowerOfTwo(w), nextPowerOfTwo(h)
	}
	base := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(base, base.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(base, base.Bounds(), src, b, draw.Src, nil)
	}
	if params.FlipY {
		flipRows(base.Pix, base.Stride, h)
	}

	levels := []*image.RGBA{base}
	if params.Mipmaps {
		levels = mipChain(base)
	}
	data := &ImageData{Width: uint32(w), Height: uint32(h), Channels: 4}
	if params.Gray {
		data.Channels = 1
	}
	for _, level := range levels {
		if params.Gray {
			data.Levels = append(data.Levels, grayPixels(level))
		} else {
			data.Levels = append(data.Levels, level.Pix)
		}
	}
	return data, nil
}

// mipChain halves img with a bilinear filter until both sides reach 1.
func mipChain(img *image.RGBA) []*image.RGBA {
	chain := []*image.RGBA{img}
	for {
		prev := chain[len(chain)-1]
		w, h := prev.Bounds().Dx(), prev.Bounds().Dy()
		if w == 1 && h == 1 {
			return chain
		}
		w, h = max(w/2, 1), max(h/2, 1)
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		chain = append(chain, next)
	}
}

func grayPixels(img *image.RGBA) []byte {
	g := image.NewGray(img.Bounds())
	draw.Draw(g, g.Bounds(), img, image.Point{}, draw.Src)
	return g.Pix
}

func flipRows(pix []byte, stride, rows int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// LoadCube decodes six square faces of equal size, ordered +X, -X, +Y, -Y,
// +Z, -Z, and packs them back to back as RGBA8.
func LoadCube(paths [6]string) (size uint32, faces []byte, err error) {
	for i, path := range paths {
		face, err := LoadImage(path, ImageParams{})
		if err != nil {
			return 0, nil, err
		}
		if face.Width != face.Height {
			return 0, nil, fmt.Errorf("cube face %s is %dx%d, not square: %w", path, face.Width, face.Height, core.ErrExternalResource)
		}
		if i == 0 {
			size = face.Width
			faces = make([]byte, 0, int(size*size*4*6))
		} else if face.Width != size {
			return 0, nil, fmt.Errorf("cube face %s is %d wide, want %d: %w", path, face.Width, size, core.ErrExternalResource)
		}
		faces = append(faces, face.Levels[0]...)
	}
	return size, faces, nil
}
