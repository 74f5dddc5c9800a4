package loaders

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/spaghettifunk/vesta/engine/core"
)

type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, assetType ResourceType, params any) (*Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v: %w", path, err, core.ErrExternalResource)
	}
	return &Resource{
		Name:     baseName(path),
		FullPath: path,
		Type:     ResourceTypeBinary,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(*Resource) error {
	return nil
}

// LoadFloatTable reads a little-endian float32 table of exactly count values.
func LoadFloatTable(path string, count int) ([]float32, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v: %w", path, err, core.ErrExternalResource)
	}
	return FloatTable(buf, count)
}

// FloatTable decodes little-endian float32 values.
func FloatTable(buf []byte, count int) ([]float32, error) {
	if len(buf) != count*4 {
		return nil, fmt.Errorf("table holds %d bytes, want %d: %w", len(buf), count*4, core.ErrExternalResource)
	}
	out := make([]float32, count)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}
