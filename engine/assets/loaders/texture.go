package loaders

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Decoders register themselves with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/renderer/metadata"
)

// TextureLoader decodes an image file into tightly packed RGBA8 pixels.
type TextureLoader struct {
	// Flip rows so the first row is the bottom of the image.
	FlipY bool
}

func (tl *TextureLoader) Load(path string) (*metadata.Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", path, err, core.ErrInvalidArgument)
	}
	data := ToTextureData(img, tl.FlipY)
	data.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	core.LogDebug("Loaded %s image '%s' (%dx%d).", format, data.Name, data.Width, data.Height)

	return &metadata.Resource{
		Name:     data.Name,
		FullPath: path,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

func (tl *TextureLoader) Unload(*metadata.Resource) error {
	return nil
}

// ToTextureData converts any decoded image to RGBA8.
func ToTextureData(img image.Image, flipY bool) metadata.TextureData {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	if flipY {
		rowSize := rgba.Stride
		tmp := make([]uint8, rowSize)
		h := bounds.Dy()
		for y := 0; y < h/2; y++ {
			top := rgba.Pix[y*rowSize : (y+1)*rowSize]
			bottom := rgba.Pix[(h-1-y)*rowSize : (h-y)*rowSize]
			copy(tmp, top)
			copy(top, bottom)
			copy(bottom, tmp)
		}
	}

	return metadata.TextureData{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}
}
