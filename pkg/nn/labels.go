package nn

// VideoLabels contains labels for each frame of a video, or of a directory of frames
type VideoLabels struct {
	Classes []string       `json:"classes"`
	Frames  []*ImageLabels `json:"frames"`
}

// ImageLabels contains the objects found in a single image
type ImageLabels struct {
	Frame   int               `json:"frame,omitempty"` // For video, this is the frame number
	Image   string            `json:"image,omitempty"`
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	Objects []ObjectDetection `json:"objects"`
}

// ObjectDetection is an object that a neural network has found in an image
type ObjectDetection struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}
