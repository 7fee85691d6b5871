package onnxdet

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/cyclopcam/fieldsight/pkg/nn"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box colors, indexed by class
var classColors = []color.RGBA{
	{G: 200, A: 255},        // civilian
	{R: 230, G: 30, A: 255}, // soldier
	{R: 40, G: 120, B: 255, A: 255},
}

func classColor(class int) color.RGBA {
	return classColors[class%len(classColors)]
}

// Annotate returns a copy of img with a box and a "name confidence" caption drawn for every detection
func Annotate(img image.Image, objects []nn.ObjectDetection, classNames []string) *image.RGBA {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, img.Bounds(), img, img.Bounds().Min, draw.Src)

	face := basicfont.Face7x13
	for _, obj := range objects {
		c := classColor(obj.Class)
		box := image.Rect(obj.Box.X, obj.Box.Y, obj.Box.X2(), obj.Box.Y2()).Add(img.Bounds().Min)
		imageutil.DrawThickRectOutline(dst, box, c, 3)

		name := nn.Class(obj.Class).String()
		if obj.Class >= 0 && obj.Class < len(classNames) {
			name = classNames[obj.Class]
		}
		caption := fmt.Sprintf("%v %.2f", name, obj.Confidence)

		// Caption sits on a filled bar above the box, or inside it at the top edge of the image
		w := font.MeasureString(face, caption).Ceil() + 4
		h := face.Metrics().Height.Ceil() + 2
		top := box.Min.Y - h
		if top < dst.Bounds().Min.Y {
			top = box.Min.Y
		}
		bar := image.Rect(box.Min.X, top, box.Min.X+w, top+h)
		draw.Draw(dst, bar, image.NewUniform(c), image.Point{}, draw.Src)
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.White),
			Face: face,
			Dot:  fixed.P(bar.Min.X+2, bar.Max.Y-3),
		}
		d.DrawString(caption)
	}
	return dst
}
