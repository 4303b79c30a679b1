package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/emovision/internal/config"
	"github.com/example/emovision/internal/device"
	"github.com/example/emovision/internal/logging"
	"github.com/example/emovision/internal/wire"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml configuration")
	flag.Parse()

	if os.Getenv("RUN_TIME_ENV") == "dev" {
		_ = godotenv.Load()
	}

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	camera := device.NewFileCamera(cfg.Device.FramesDir)
	attacher := device.NewProbeAttacher(cfg.Device.ServerHost, 2*time.Second)
	uploader := wire.NewClient(
		cfg.Device.ServerHost,
		cfg.Device.ServerPort,
		cfg.Device.ServerPath,
		cfg.Device.UploadTimeout(),
	)

	agent := device.NewAgent(device.Config{
		SSID:               cfg.Device.SSID,
		Password:           cfg.Device.Password,
		AttachPollInterval: cfg.Device.AttachPollInterval(),
		AttachMaxAttempts:  cfg.Device.AttachMaxAttempts,
		CaptureInterval:    cfg.Device.CaptureInterval(),
		Resolution:         resolutionFor(cfg.Device.Framesize),
	}, camera, attacher, uploader, logger)

	logger.Info("capture agent starting",
		zap.String("server", uploader.Addr()),
		zap.String("frames_dir", cfg.Device.FramesDir))

	if err := agent.Run(ctx); err != nil {
		logger.Fatal("capture agent stopped", zap.Error(err))
	}
	logger.Info("capture agent stopped cleanly")
}

func resolutionFor(code int) device.Resolution {
	for _, r := range []device.Resolution{
		device.Res96x96,
		device.Res160x120,
		device.Res240x240,
		device.Res320x240,
		device.Res640x480,
	} {
		if r.Code == code {
			return r
		}
	}
	return device.Res240x240
}
