package types

import "time"

// Frame is a single captured camera frame, JPEG-encoded.
// Index is 1-based and strictly increasing within a session.
type Frame struct {
	Index int
	TS    time.Time
	Data  []byte
}

// FaceResult matches the JSON structure coming back from the Python encoder
type FaceResult struct {
	Loc []int     `json:"loc"` // [top, right, bottom, left]
	Vec []float64 `json:"vec"` // 128-d face encoding
}

// Accessors for the encoder's [top, right, bottom, left] box order.

func (f FaceResult) Top() int    { return f.Loc[0] }
func (f FaceResult) Right() int  { return f.Loc[1] }
func (f FaceResult) Bottom() int { return f.Loc[2] }
func (f FaceResult) Left() int   { return f.Loc[3] }

// Area is the bounding box area in pixels, used to pick the dominant face
// when an image contains several.
func (f FaceResult) Area() int {
	return (f.Bottom() - f.Top()) * (f.Right() - f.Left())
}

// ErrorResult captures the error object returned by Python on failure
type ErrorResult struct {
	Error string `json:"error"`
}

// FrameError is a per-frame encoder failure reported by the sidecar: the
// frame was undecodable or detection failed on it. The watch loop skips the
// frame and keeps running; any other worker error is fatal to the session.
type FrameError struct {
	Msg string
}

func (e *FrameError) Error() string {
	return "frame encode failed: " + e.Msg
}
