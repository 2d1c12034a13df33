package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// PrinterDPI is the resolution of common 58mm thermal heads
const PrinterDPI = 203

// bannerPadding is the vertical margin above and below the text, in dots
const bannerPadding = 4

// RenderBanner renders text as a black-on-white image widthDots wide,
// centered and word-wrapped, using the Go Regular font.
func RenderBanner(text string, widthDots int, fontSize float64) (image.Image, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}

	face := truetype.NewFace(f, &truetype.Options{Size: fontSize, DPI: PrinterDPI})
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	lines := wrapWords(text, face, widthDots)
	height := len(lines)*lineHeight + 2*bannerPadding

	img := image.NewRGBA(image.Rect(0, 0, widthDots, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(PrinterDPI)
	c.SetFont(f)
	c.SetFontSize(fontSize)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(&image.Uniform{color.Black})
	c.SetHinting(font.HintingFull)

	y := bannerPadding + metrics.Ascent.Ceil()
	for _, line := range lines {
		x := (widthDots - measureString(face, line)) / 2
		if x < 0 {
			x = 0
		}
		if _, err := c.DrawString(line, freetype.Pt(x, y)); err != nil {
			return nil, err
		}
		y += lineHeight
	}

	return img, nil
}

// wrapWords splits text into lines that fit within maxWidth, breaking at
// spaces and falling back to mid-word breaks for words wider than a line
func wrapWords(text string, face font.Face, maxWidth int) []string {
	var lines []string

	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if measureString(face, candidate) <= maxWidth {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			if measureString(face, word) > maxWidth {
				current = breakLongWord(word, face, maxWidth, &lines)
			} else {
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}

	return lines
}

// breakLongWord breaks a single word that's too long to fit
func breakLongWord(word string, face font.Face, maxWidth int, lines *[]string) string {
	var currentPart string
	for _, char := range word {
		testPart := currentPart + string(char)
		if measureString(face, testPart) > maxWidth && currentPart != "" {
			*lines = append(*lines, currentPart)
			currentPart = string(char)
		} else {
			currentPart = testPart
		}
	}
	return currentPart
}

// measureString returns the width of a string in pixels
func measureString(face font.Face, s string) int {
	var width fixed.Int26_6
	for _, r := range s {
		adv, ok := face.GlyphAdvance(r)
		if ok {
			width += adv
		}
	}
	return width.Ceil()
}
