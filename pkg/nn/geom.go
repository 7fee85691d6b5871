package nn

import (
	"github.com/chewxy/math32"
)

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) X2() int {
	return r.X + r.Width
}

func (r Rect) Y2() int {
	return r.Y + r.Height
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X, b.X)
	y1 := max(r.Y, b.Y)
	x2 := min(r.X2(), b.X2())
	y2 := min(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	intersection := r.Intersection(b)
	union := r.Area() + b.Area() - intersection.Area()
	if union <= 0 {
		return 0
	}
	return float32(intersection.Area()) / float32(union)
}

// Clip the rectangle so that it lies inside [0,0,width,height]
func (r Rect) Clip(width, height int) Rect {
	x1 := max(0, min(r.X, width))
	y1 := max(0, min(r.Y, height))
	x2 := max(0, min(r.X2(), width))
	y2 := max(0, min(r.Y2(), height))
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// ToYOLO returns the normalized (cx, cy, w, h) geometry of an annotation line,
// for an image of the given dimensions.
func (r Rect) ToYOLO(imgWidth, imgHeight int) [4]float32 {
	iw := float32(imgWidth)
	ih := float32(imgHeight)
	return [4]float32{
		(float32(r.X) + float32(r.Width)/2) / iw,
		(float32(r.Y) + float32(r.Height)/2) / ih,
		float32(r.Width) / iw,
		float32(r.Height) / ih,
	}
}

// RectFromYOLO is the inverse of ToYOLO
func RectFromYOLO(g [4]float32, imgWidth, imgHeight int) Rect {
	iw := float32(imgWidth)
	ih := float32(imgHeight)
	w := g[2] * iw
	h := g[3] * ih
	x := g[0]*iw - w/2
	y := g[1]*ih - h/2
	return Rect{
		X:      int(math32.Round(x)),
		Y:      int(math32.Round(y)),
		Width:  int(math32.Round(w)),
		Height: int(math32.Round(h)),
	}
}
