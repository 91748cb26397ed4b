// Command vadctl is a file/stdin-driven CLI around the streaming VAD core:
// it decodes an input WAV (or raw s16le PCM) file, drives StreamVAD over it,
// and writes every emitted speech segment back out as a WAV file. It follows
// the teacher adapter's lifecycle shape — bind a health listener before any
// model initialization, resolve an "auto" engine choice, flip to SERVING
// once the pipeline is ready, shut down gracefully on signal — even though
// this CLI's real work (decode → stream → encode) finishes synchronously.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nupi-ai/vad-streamcore/internal/config"
	"github.com/nupi-ai/vad-streamcore/internal/model"
	"github.com/nupi-ai/vad-streamcore/internal/stream"
	"github.com/nupi-ai/vad-streamcore/internal/vad"
	"github.com/nupi-ai/vad-streamcore/internal/wavio"
)

// version is set at build time via -ldflags.
var version = "dev"

// processChunkSamples bounds how many samples are handed to StreamVAD per
// ProcessAudio call — large enough to avoid per-call overhead dominating,
// small enough that a single call never holds the instance lock for long.
const processChunkSamples = 4096

func main() {
	inputPath := flag.String("input", "", "path to a WAV file (default: read raw s16le PCM from stdin)")
	outputDir := flag.String("output-dir", ".", "directory to write emitted speech segments (segment-NNN.wav)")
	pcmSampleRate := flag.Int("pcm-sample-rate", 16000, "sample rate of raw PCM input read from stdin (ignored for WAV input)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	logger.Info("starting vadctl",
		"version", version,
		"engine_config", cfg.Engine,
		"model_variant", cfg.ModelVariant,
		"frame_samples", cfg.FrameSamples,
	)

	// STEP 1: bind the health listener before any model initialization.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind health listener", "error", err)
		os.Exit(1)
	}
	defer lis.Close()
	logger.Info("health listener bound", "addr", lis.Addr().String())

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)

	serverErr := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serverErr <- err
		}
	}()

	// STEP 2: resolve the engine and build the VAD pipeline. Raw stdin PCM
	// carries no sample-rate header, so --pcm-sample-rate overrides the
	// configured native rate for that input path.
	if *inputPath == "" {
		cfg.SampleRate = *pcmSampleRate
	}
	vadCfg, err := cfg.ToVADConfig()
	if err != nil {
		logger.Error("invalid VAD configuration", "error", err)
		os.Exit(1)
	}

	mdl, resolvedEngine, err := resolveModel(logger, cfg, vadCfg.ModelVariant)
	if err != nil {
		logger.Error("failed to initialize model", "error", err)
		os.Exit(1)
	}
	if closer, ok := mdl.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	segmentCount := 0
	sink := func(e vad.Event) {
		switch e.Kind {
		case vad.SpeechStart:
			logger.Info("speech start")
		case vad.SpeechRealStart:
			logger.Info("speech confirmed")
		case vad.VADMisfire:
			logger.Info("vad misfire (segment discarded, too short)")
		case vad.SpeechEnd:
			segmentCount++
			path := filepath.Join(*outputDir, fmt.Sprintf("segment-%03d.wav", segmentCount))
			if err := writeSegment(path, e.Audio, vad.DefaultSampleRate); err != nil {
				logger.Error("failed to write segment", "path", path, "error", err)
				return
			}
			logger.Info("speech end", "path", path, "samples", len(e.Audio))
		}
	}

	sv, err := stream.New(mdl, vadCfg, stream.WithSink(sink))
	if err != nil {
		logger.Error("failed to construct stream", "error", err)
		os.Exit(1)
	}

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_SERVING)
	logger.Info("pipeline ready", "engine", resolvedEngine)

	// STEP 3: run the pipeline over the input, in the background so signals
	// during a long decode still trigger graceful health-server shutdown.
	runDone := make(chan error, 1)
	go func() {
		runDone <- run(sv, *inputPath)
	}()

	shutdown := func() {
		healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			logger.Warn("graceful stop timed out, forcing stop")
			grpcServer.Stop()
		}
	}

	select {
	case err := <-runDone:
		shutdown()
		if err != nil {
			logger.Error("processing failed", "error", err)
			os.Exit(1)
		}
		logger.Info("processing complete", "segments", segmentCount)
	case err := <-serverErr:
		logger.Error("health server terminated with error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutdown requested")
		shutdown()
	}
}

// resolveModel implements the "auto" engine resolution: silero if compiled
// in, else stub — mirroring the teacher's NativeAvailable() probe.
func resolveModel(logger *slog.Logger, cfg config.Config, variant vad.ModelVariant) (model.Model, string, error) {
	resolved := cfg.Engine
	if resolved == "auto" {
		if model.NativeAvailable() {
			resolved = "silero"
		} else {
			resolved = "stub"
			logger.Warn("auto-detected engine: stub (build with -tags silero for production)")
		}
	}

	switch resolved {
	case "silero":
		if !model.NativeAvailable() {
			return nil, "", fmt.Errorf("engine %q requested but native backend not compiled in (build with -tags silero)", resolved)
		}
		m, err := model.NewSilero(variant)
		if err != nil {
			return nil, "", fmt.Errorf("silero model init: %w", err)
		}
		return m, resolved, nil
	case "stub":
		logger.Warn("using stub engine — VAD results are deterministic and NOT based on audio content")
		return model.NewStub(), resolved, nil
	default:
		return nil, "", fmt.Errorf("unknown engine %q", resolved)
	}
}

// run decodes inputPath (or stdin raw PCM if empty) and drives sv to
// completion, flushing at EOF.
func run(sv *stream.StreamVAD, inputPath string) error {
	if err := sv.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	var samples []float32
	if inputPath == "" {
		decoded, err := decodeRawPCM(os.Stdin)
		if err != nil {
			return fmt.Errorf("decode stdin PCM: %w", err)
		}
		samples = decoded
	} else {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", inputPath, err)
		}
		defer f.Close()
		decoded, _, err := wavio.DecodeWAV(f)
		if err != nil {
			return fmt.Errorf("decode %s: %w", inputPath, err)
		}
		samples = decoded
	}

	for offset := 0; offset < len(samples); offset += processChunkSamples {
		end := offset + processChunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		if _, err := sv.ProcessAudio(samples[offset:end]); err != nil {
			return fmt.Errorf("process audio: %w", err)
		}
	}
	if _, err := sv.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// decodeRawPCM reads signed 16-bit little-endian PCM samples and normalizes
// them to [-1,+1].
func decodeRawPCM(r io.Reader) ([]float32, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768
	}
	return samples, nil
}

func writeSegment(path string, audio []float32, sampleRate int) error {
	data, err := wavio.EncodeWAV(audio, sampleRate)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
