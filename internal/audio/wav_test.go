package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func TestEncodeWAV_Header(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767}
	wav := EncodeWAV(samples, 16000)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("unexpected wav size %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[12:16]) != "fmt " {
		t.Fatalf("bad container magic")
	}
	if binary.LittleEndian.Uint16(wav[20:22]) != 1 {
		t.Fatalf("expected PCM format tag")
	}
	if binary.LittleEndian.Uint32(wav[24:28]) != 16000 {
		t.Fatalf("sample rate mismatch")
	}
	if binary.LittleEndian.Uint32(wav[28:32]) != 32000 {
		t.Fatalf("byte rate mismatch")
	}
	if binary.LittleEndian.Uint32(wav[40:44]) != uint32(len(samples)*2) {
		t.Fatalf("data chunk length mismatch")
	}
	if int16(binary.LittleEndian.Uint16(wav[46:48])) != 1000 {
		t.Fatalf("sample payload mismatch")
	}
}

func TestDecodeStream_WavStripsHeader(t *testing.T) {
	wav := EncodeWAV([]int16{100, 200}, 16000)
	r, err := DecodeStream("audio/wav", bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pcm, _ := io.ReadAll(r)
	if len(pcm) != 4 {
		t.Fatalf("expected 4 PCM bytes after header strip, got %d", len(pcm))
	}
	if int16(binary.LittleEndian.Uint16(pcm[0:2])) != 100 {
		t.Fatalf("payload corrupted")
	}
}

func TestDecodeStream_UnknownTypePassesThrough(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	r, err := DecodeStream("application/octet-stream", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, _ := io.ReadAll(r)
	if !bytes.Equal(got, raw) {
		t.Fatalf("pass-through mangled stream")
	}
}

func TestCaptureGate_Toggles(t *testing.T) {
	g := NewCaptureGate()
	if !g.Active() || g.Paused() {
		t.Fatalf("gate must start active")
	}
	g.SetPaused(true)
	if g.Active() || !g.Paused() {
		t.Fatalf("gate did not pause")
	}
	g.SetPaused(false)
	if !g.Active() {
		t.Fatalf("gate did not resume")
	}
}
