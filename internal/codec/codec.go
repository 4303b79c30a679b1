// Package codec abstracts decoding a compressed image buffer into pixels.
package codec

import "errors"

// ErrUndecodable reports a buffer that no decoder recognized — malformed,
// truncated, or empty.
var ErrUndecodable = errors.New("image buffer could not be decoded")

// Image describes the decoded pixel grid. The ingestion pipeline only needs
// to know that decoding succeeded and what the dimensions are; pixels stay
// inside the decoder implementation.
type Image struct {
	Width  int
	Height int
}

// Decoder decodes a compressed byte buffer. Failures are reported, never
// swallowed.
type Decoder interface {
	Decode(data []byte) (Image, error)
}
