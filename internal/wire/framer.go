// Package wire builds and sends the minimal multipart upload used between the
// capture device and the ingestion service. The device class this targets has
// no HTTP client library, so the request is framed by hand over a raw TCP
// connection.
package wire

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FieldName is the multipart part name the ingestion service extracts.
const FieldName = "file"

// fileName is the advertised name of the uploaded part. The service keys on
// the part name, not the file name.
const fileName = "image.jpg"

// NewBoundary returns a randomized boundary token. Boundary-like byte
// sequences inside a compressed image are not escaped or detected; a long
// random token makes a collision negligible and that residual risk is
// accepted.
func NewBoundary() string {
	return "emovision" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Preamble returns the multipart header block that precedes the image bytes.
func Preamble(boundary string) []byte {
	return []byte("--" + boundary + "\r\n" +
		`Content-Disposition: form-data; name="` + FieldName + `"; filename="` + fileName + `"` + "\r\n" +
		"Content-Type: image/jpeg\r\n\r\n")
}

// Terminator returns the closing boundary sequence.
func Terminator(boundary string) []byte {
	return []byte("\r\n--" + boundary + "--\r\n")
}

// Encode serializes one frame into a single-part multipart/form-data body.
// Given the same frame and boundary it always produces identical bytes.
func Encode(frame []byte, boundary string) []byte {
	preamble := Preamble(boundary)
	terminator := Terminator(boundary)

	body := make([]byte, 0, len(preamble)+len(frame)+len(terminator))
	body = append(body, preamble...)
	body = append(body, frame...)
	body = append(body, terminator...)
	return body
}

// RequestHead renders the status line and header block for an upload whose
// serialized body is contentLength bytes long. The connection is advertised
// as single-use.
func RequestHead(host, path, boundary string, contentLength int) []byte {
	return []byte(fmt.Sprintf(
		"POST %s HTTP/1.1\r\n"+
			"Host: %s\r\n"+
			"Content-Type: multipart/form-data; boundary=%s\r\n"+
			"Content-Length: %d\r\n"+
			"Connection: close\r\n\r\n",
		path, host, boundary, contentLength))
}
