package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress    string
	BackendURL     string
	BackendAPIKey  string
	SideChannelURL string

	// CaptureAndPlaybackExclusive marks platforms where simultaneous
	// microphone capture and audio output are not reliably supported.
	// The hosting shell decides this; the engine never sniffs it.
	CaptureAndPlaybackExclusive bool

	SampleRate   int
	VADThreshold float64
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		log.Println("Warning: BACKEND_URL not set - submissions will fail")
	}
	backendKey := os.Getenv("BACKEND_API_KEY")

	sideURL := os.Getenv("SIDECHANNEL_URL")
	if sideURL == "" {
		log.Println("Warning: SIDECHANNEL_URL not set - side-channel lookups disabled")
	}

	exclusive := false
	if v := os.Getenv("CAPTURE_PLAYBACK_EXCLUSIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("Warning: invalid CAPTURE_PLAYBACK_EXCLUSIVE=%q, defaulting to false", v)
		}
		exclusive = b
	}

	sampleRate := 16000
	if v := os.Getenv("SAMPLE_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Printf("Warning: invalid SAMPLE_RATE=%q, using %d", v, sampleRate)
		} else {
			sampleRate = n
		}
	}

	threshold := 300.0
	if v := os.Getenv("VAD_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			log.Printf("Warning: invalid VAD_THRESHOLD=%q, using %.0f", v, threshold)
		} else {
			threshold = f
		}
	}

	log.Printf("config: HTTP_ADDRESS=%s capture_playback_exclusive=%v", addr, exclusive)
	return Config{
		HTTPAddress:                 addr,
		BackendURL:                  backendURL,
		BackendAPIKey:               backendKey,
		SideChannelURL:              sideURL,
		CaptureAndPlaybackExclusive: exclusive,
		SampleRate:                  sampleRate,
		VADThreshold:                threshold,
	}
}
