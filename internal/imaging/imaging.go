package imaging

import (
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultThreshold splits gray levels into black and white
const DefaultThreshold uint8 = 128

// Bitmap is a packed 1-bit image ready for a GS v 0 raster command
type Bitmap struct {
	WidthBytes int
	Height     int
	Data       []byte
}

// LoadImage loads an image from file
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// ToMonochrome scales img to widthDots (keeping aspect ratio, never upscaling)
// and packs it MSB first, 1 = black. Transparent pixels print as white.
func ToMonochrome(img image.Image, widthDots int, threshold uint8) Bitmap {
	scaled := scaleToWidth(img, widthDots)
	b := scaled.Bounds()
	width, height := b.Dx(), b.Dy()

	widthBytes := (width + 7) / 8
	data := make([]byte, widthBytes*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if rgbToGray(scaled.At(b.Min.X+x, b.Min.Y+y)) >= threshold {
				continue
			}
			byteIdx := y*widthBytes + x/8
			bitIdx := 7 - (x % 8)
			data[byteIdx] |= 1 << bitIdx
		}
	}

	return Bitmap{WidthBytes: widthBytes, Height: height, Data: data}
}

// rgbToGray converts a color to grayscale, compositing alpha over white
func rgbToGray(c color.Color) uint8 {
	r, g, b, a := c.RGBA()
	white := float64(0xffff - a)
	gray := (0.299*(float64(r)+white) + 0.587*(float64(g)+white) + 0.114*(float64(b)+white)) / 256
	if gray > 255 {
		gray = 255
	}
	return uint8(gray)
}

// scaleToWidth fits img into maxW dots wide
func scaleToWidth(img image.Image, maxW int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= maxW || srcW == 0 {
		dst := image.NewRGBA(image.Rect(0, 0, srcW, srcH))
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst
	}

	scale := float64(maxW) / float64(srcW)
	newH := int(float64(srcH) * scale)
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxW, newH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
