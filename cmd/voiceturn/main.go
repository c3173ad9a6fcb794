package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dubya-devlab/voiceturn/internal/audio"
	"github.com/dubya-devlab/voiceturn/internal/config"
	"github.com/dubya-devlab/voiceturn/internal/controller"
	"github.com/dubya-devlab/voiceturn/internal/dialog"
	"github.com/dubya-devlab/voiceturn/internal/httpserver"
	"github.com/dubya-devlab/voiceturn/internal/playback"
	"github.com/dubya-devlab/voiceturn/internal/sidechannel"
	"github.com/dubya-devlab/voiceturn/internal/submit"
	"github.com/dubya-devlab/voiceturn/internal/turn"
	"github.com/dubya-devlab/voiceturn/internal/vad"
)

// playbackRate is the PCM rate of backend reply audio.
const playbackRate = 48000

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	history := turn.NewHistory()
	backend := dialog.NewClient(cfg.BackendURL, cfg.BackendAPIKey)
	ser := submit.NewSerializer(backend, history)

	var sink playback.Sink
	if out, err := audio.NewOtoSink(playbackRate); err != nil {
		log.Printf("Warning: audio output unavailable (%v) - replies will be silent", err)
	} else {
		sink = out
		defer out.Close()
	}
	channel := playback.NewChannel(sink)

	gate := audio.NewCaptureGate()
	bridge := httpserver.NewBridge()

	var side controller.Notifier
	if cfg.SideChannelURL != "" {
		side = sidechannel.NewNotifier(cfg.SideChannelURL)
	}

	hooks := controller.Hooks{
		OnState:       func(s controller.State) { bridge.State(s.String()) },
		OnSpeechStart: bridge.SpeechStart,
		OnTranscript:  bridge.Transcript,
		OnReply:       bridge.Reply,
		OnAnswers:     bridge.Answers,
		OnError: func(err error) {
			if errors.Is(err, dialog.ErrRateLimited) {
				bridge.Error("The assistant is rate limited right now - try again shortly.")
				return
			}
			bridge.Error(err.Error())
		},
	}

	ctrl := controller.New(controller.Config{
		CaptureAndPlaybackExclusive: cfg.CaptureAndPlaybackExclusive,
		Decode:                      audio.DecodeStream,
	}, ser, channel, gate, side, hooks)

	go ser.Run(ctx)
	go ctrl.Run(ctx)

	// Microphone -> segmenter -> controller events
	segCfg := vad.DefaultConfig()
	segCfg.SampleRate = cfg.SampleRate
	segCfg.Threshold = cfg.VADThreshold
	seg := vad.NewSegmenter(segCfg, vad.Events{
		OnSpeechStart: func() { ctrl.Post(controller.SpeechStarted{}) },
		OnSpeechEnd:   func(wav []byte) { ctrl.Post(controller.SpeechEnded{WAV: wav}) },
	})
	if capture, err := audio.StartCapture(cfg.SampleRate, gate, seg.Feed); err != nil {
		log.Printf("Warning: microphone unavailable (%v) - typed submissions only", err)
	} else {
		defer capture.Close()
	}

	srv := httpserver.New(ctrl, history, bridge)

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- srv.Echo.Start(cfg.HTTPAddress)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Echo.Shutdown(shutCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = srv.Echo.Close()
	}
}
