package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/fieldsight/pkg/iox"
	"github.com/cyclopcam/fieldsight/pkg/nn"
)

// Box returns the normalized (cx, cy, w, h) bounding box of the record.
// A polygon (x1 y1 x2 y2 ...) is reduced to the box that encloses it.
func (r Record) Box() ([4]float32, error) {
	values := make([]float32, len(r.Geometry))
	for i, g := range r.Geometry {
		v, err := strconv.ParseFloat(g, 32)
		if err != nil {
			return [4]float32{}, fmt.Errorf("%w: invalid coordinate '%v'", ErrMalformed, g)
		}
		values[i] = float32(v)
	}
	if len(values) == 4 {
		return [4]float32{values[0], values[1], values[2], values[3]}, nil
	}
	if len(values)%2 != 0 || len(values) < 6 {
		return [4]float32{}, fmt.Errorf("%w: %v coordinates is neither a box nor a polygon", ErrMalformed, len(values))
	}
	x1, y1 := math32.Inf(1), math32.Inf(1)
	x2, y2 := math32.Inf(-1), math32.Inf(-1)
	for i := 0; i < len(values); i += 2 {
		x1 = min(x1, values[i])
		x2 = max(x2, values[i])
		y1 = min(y1, values[i+1])
		y2 = max(y2, values[i+1])
	}
	return [4]float32{(x1 + x2) / 2, (y1 + y2) / 2, x2 - x1, y2 - y1}, nil
}

// ReadAnnotations converts the records of an annotation file into pixel-space objects,
// for an image of the given size. Malformed lines are skipped.
// The confidence of ground truth objects is 1.
func ReadAnnotations(r io.Reader, imgWidth, imgHeight int) ([]nn.ObjectDetection, error) {
	objects := []nn.ObjectDetection{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		rec, err := ParseRecord(scanner.Text())
		if err != nil {
			continue
		}
		box, err := rec.Box()
		if err != nil {
			continue
		}
		objects = append(objects, nn.ObjectDetection{
			Class:      rec.ClassID,
			Confidence: 1,
			Box:        nn.RectFromYOLO(box, imgWidth, imgHeight),
		})
	}
	return objects, scanner.Err()
}

func ReadAnnotationFile(filename string, imgWidth, imgHeight int) ([]nn.ObjectDetection, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAnnotations(f, imgWidth, imgHeight)
}

// WriteAnnotations writes objects as annotation records, so that detections can be
// used as labels for training (or reviewed in a labelling tool).
func WriteAnnotations(w io.Writer, objects []nn.ObjectDetection, imgWidth, imgHeight int) error {
	if imgWidth <= 0 || imgHeight <= 0 {
		return fmt.Errorf("Invalid image size %v x %v", imgWidth, imgHeight)
	}
	for _, obj := range objects {
		g := obj.Box.ToYOLO(imgWidth, imgHeight)
		if _, err := fmt.Fprintf(w, "%d %.6f %.6f %.6f %.6f\n", obj.Class, g[0], g[1], g[2], g[3]); err != nil {
			return err
		}
	}
	return nil
}

// WriteAnnotationFile writes the annotation file of one image atomically
func WriteAnnotationFile(filename string, labels *nn.ImageLabels) error {
	var buf bytes.Buffer
	if err := WriteAnnotations(&buf, labels.Objects, labels.Width, labels.Height); err != nil {
		return err
	}
	return iox.WriteStreamToFile(filename, &buf)
}
