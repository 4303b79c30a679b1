package codec

import (
	"fmt"

	"gocv.io/x/gocv"
)

// OpenCV decodes buffers with gocv, matching the decode behavior the
// classifier sidecar applies to the same bytes.
type OpenCV struct{}

// NewOpenCV returns the gocv-backed decoder.
func NewOpenCV() *OpenCV {
	return &OpenCV{}
}

// Decode decodes the buffer as a color image.
func (OpenCV) Decode(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrUndecodable
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return Image{}, ErrUndecodable
	}
	return Image{Width: mat.Cols(), Height: mat.Rows()}, nil
}
