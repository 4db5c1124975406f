// Command ema-vision serves the streaming assistant. Clients connect to /ws
// and stream microphone audio and screen images; spoken answers are played
// on the configured output device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-vision/core/audio/miniaudio"
	"github.com/koscakluka/ema-vision/internal/config"
	"github.com/koscakluka/ema-vision/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	local := flag.Bool("local", false, "Capture the local microphone into a single shared session")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *local {
		cfg.Audio.Capture = true
	}

	logger := newLogger(os.Stderr, cfg.Logging)
	slog.SetDefault(logger)
	installLogBridge(logger.Handler())

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deviceOptions := []miniaudio.ClientOption{
		miniaudio.WithOutputDevice(cfg.Audio.OutputDevice),
		miniaudio.WithOutputSampleRate(cfg.Audio.OutputSampleRate),
	}
	if cfg.Audio.Capture {
		deviceOptions = append(deviceOptions,
			miniaudio.WithCapture(cfg.Audio.InputDevice),
			miniaudio.WithInputSampleRate(cfg.Audio.InputSampleRate))
	}
	output, err := miniaudio.NewClient(deviceOptions...)
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	defer output.Close()

	var appMetrics *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.Server.Metrics {
		appMetrics = metrics.New("")
		metricsHandler = appMetrics.Handler()
	}

	sessions := &sessions{cfg: cfg, metrics: appMetrics, output: output, logger: logger}
	openSession := sessions.open
	if cfg.Audio.Capture {
		local, stopLocal, err := startLocal(context.WithoutCancel(ctx), sessions.open, output, logger)
		if err != nil {
			return err
		}
		defer stopLocal()
		openSession = func(context.Context) (session, error) {
			return sharedSession{local}, nil
		}
		logger.Info("capturing local microphone", "device", cfg.Audio.InputDevice)
	}
	srv := newServer(openSession, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.routes(metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address,
			"llm", cfg.Providers.LLM,
			"speech_to_text", cfg.Providers.SpeechToText,
			"text_to_speech", cfg.Providers.TextToSpeech,
			"captions", cfg.Captions.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = httpServer.Shutdown(shutdownCtx)
	srv.closeConnections()
	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
