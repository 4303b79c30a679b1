// Package device implements the capture-side lifecycle: attach to the
// network, arm the camera, then capture and upload one frame per tick.
package device

// Resolution is a camera frame-size profile. Codes follow the ESP-class
// sensor's framesize table.
type Resolution struct {
	Code   int
	Width  int
	Height int
}

var (
	Res96x96   = Resolution{Code: 0, Width: 96, Height: 96}
	Res160x120 = Resolution{Code: 1, Width: 160, Height: 120}
	Res240x240 = Resolution{Code: 4, Width: 240, Height: 240}
	Res320x240 = Resolution{Code: 5, Width: 320, Height: 240}
	Res640x480 = Resolution{Code: 8, Width: 640, Height: 480}
)

// Camera is the capture hardware collaborator. Arm is called once before the
// capture loop starts; Capture produces one compressed frame per call.
type Camera interface {
	Arm(profile Resolution) error
	Capture() ([]byte, error)
}

// NetworkAttacher is the network collaborator. Connect starts an attachment
// attempt with the supplied credentials; the agent polls IsConnected until
// the attachment completes. IPAddr reports the assigned address once
// attached.
type NetworkAttacher interface {
	Connect(ssid, password string) error
	IsConnected() bool
	IPAddr() (string, error)
}
