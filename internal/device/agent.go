package device

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/example/emovision/internal/logging"
)

// State is the agent's lifecycle position. The first three values double as
// the network connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateCapturing
	StateUploading
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateCapturing:
		return "capturing"
	case StateUploading:
		return "uploading"
	case StateIdle:
		return "idle"
	}
	return "unknown"
}

// ErrAttachTimeout reports that the network attachment retry budget ran out.
var ErrAttachTimeout = errors.New("network attachment attempts exhausted")

// Uploader delivers one framed image and returns the raw reply bytes.
type Uploader interface {
	Post(ctx context.Context, frame []byte) ([]byte, error)
}

// Config holds everything the agent needs at startup. There is no implicit
// process state; credentials and intervals all arrive here.
type Config struct {
	SSID     string
	Password string

	// AttachPollInterval is how often attachment status is polled while
	// connecting. AttachMaxAttempts bounds the polls; zero retries forever,
	// matching the reference device behavior.
	AttachPollInterval time.Duration
	AttachMaxAttempts  int

	// CaptureInterval separates capture ticks.
	CaptureInterval time.Duration

	Resolution Resolution
}

// Agent owns the device lifecycle. It is single-threaded by design: the
// camera is the only hardware resource, so capture, upload, and reply
// consumption run strictly in sequence and at most one frame is ever in
// flight.
type Agent struct {
	cfg      Config
	camera   Camera
	network  NetworkAttacher
	uploader Uploader
	logger   *zap.Logger

	state atomic.Int32
}

// NewAgent wires the agent to its collaborators.
func NewAgent(cfg Config, cam Camera, network NetworkAttacher, uploader Uploader, logger *zap.Logger) *Agent {
	if cfg.AttachPollInterval <= 0 {
		cfg.AttachPollInterval = time.Second
	}
	if cfg.CaptureInterval <= 0 {
		cfg.CaptureInterval = 5 * time.Second
	}
	return &Agent{
		cfg:      cfg,
		camera:   cam,
		network:  network,
		uploader: uploader,
		logger:   logging.WithComponent(logger, "capture_agent"),
	}
}

// State reports the agent's current lifecycle position.
func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
}

// Run drives the full lifecycle and blocks until the context is cancelled or
// attachment terminally fails. The capture loop itself has no exit
// condition; stopping it is the caller's concern.
func (a *Agent) Run(ctx context.Context) error {
	addr, err := a.attach(ctx)
	if err != nil {
		a.setState(StateDisconnected)
		return err
	}
	a.setState(StateConnected)
	a.logger.Info("network attached", zap.String("ip", addr))

	// Arm failure is tolerated: individual captures carry their own errors
	// and the loop skips failed ticks anyway.
	if err := a.camera.Arm(a.cfg.Resolution); err != nil {
		a.logger.Warn("camera arm failed, continuing",
			zap.Error(err),
			zap.Int("framesize", a.cfg.Resolution.Code))
	} else {
		a.logger.Info("camera armed",
			zap.Int("width", a.cfg.Resolution.Width),
			zap.Int("height", a.cfg.Resolution.Height))
	}

	a.setState(StateIdle)
	ticker := time.NewTicker(a.cfg.CaptureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("capture loop stopping")
			a.setState(StateDisconnected)
			return nil
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

// attach starts an attachment attempt and polls until it completes or the
// retry budget is spent. A failed attachment request is never terminal on its
// own; it burns an attempt and the request is reissued on the next poll.
func (a *Agent) attach(ctx context.Context) (string, error) {
	a.setState(StateConnecting)
	a.logger.Info("connecting to network", zap.String("ssid", a.cfg.SSID))

	requested := false
	for attempt := 1; ; attempt++ {
		if !requested {
			if err := a.network.Connect(a.cfg.SSID, a.cfg.Password); err != nil {
				a.logger.Warn("attachment request failed",
					zap.Error(err),
					zap.Int("attempt", attempt))
			} else {
				requested = true
			}
		}

		if requested && a.network.IsConnected() {
			addr, err := a.network.IPAddr()
			if err != nil {
				// The address is informational only.
				a.logger.Warn("attached but address unknown", zap.Error(err))
				return "", nil
			}
			return addr, nil
		}

		a.logger.Info("attachment pending", zap.Int("attempt", attempt))
		if a.cfg.AttachMaxAttempts > 0 && attempt >= a.cfg.AttachMaxAttempts {
			return "", ErrAttachTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.cfg.AttachPollInterval):
		}
	}
}

// cycle runs one capture-upload-consume pass. A failed capture abandons the
// tick without touching the network; a failed delivery waits for the next
// scheduled tick rather than retrying inline.
func (a *Agent) cycle(ctx context.Context) {
	defer a.setState(StateIdle)

	a.setState(StateCapturing)
	frame, err := a.camera.Capture()
	if err != nil {
		a.logger.Warn("capture failed, skipping tick", zap.Error(err))
		return
	}
	if len(frame) == 0 {
		a.logger.Warn("camera returned no data, skipping tick")
		return
	}
	a.logger.Info("frame captured", zap.Int("bytes", len(frame)))

	a.setState(StateUploading)
	reply, err := a.uploader.Post(ctx, frame)
	if err != nil {
		a.logger.Error("delivery failed", zap.Error(err))
		return
	}
	a.logger.Info("reply received",
		zap.Int("bytes", len(reply)),
		zap.ByteString("body", replyBody(reply)))
}

// replyBody strips the HTTP head from a raw reply for logging. The reply is
// consumed as-is; this only keeps log lines readable.
func replyBody(reply []byte) []byte {
	if i := bytes.Index(reply, []byte("\r\n\r\n")); i >= 0 {
		return bytes.TrimSpace(reply[i+4:])
	}
	return bytes.TrimSpace(reply)
}
