package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

const wavHeaderSize = 44

// EncodeWAV wraps mono PCM16LE samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	out := make([]byte, wavHeaderSize+dataLen)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1) // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(out[32:34], 2)
	binary.LittleEndian.PutUint16(out[34:36], 16)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[wavHeaderSize+i*2:], uint16(s))
	}
	return out
}

// DecodeStream adapts a reply audio stream to raw PCM based on its declared
// content type: mp3 is decoded, WAV has its header stripped, anything else is
// passed through untouched.
func DecodeStream(contentType string, r io.Reader) (io.Reader, error) {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		dec, err := mp3.NewDecoder(r)
		if err != nil {
			return nil, fmt.Errorf("audio: mp3 decode: %w", err)
		}
		return dec, nil
	case "audio/wav", "audio/x-wav", "audio/wave":
		if _, err := io.CopyN(io.Discard, r, wavHeaderSize); err != nil {
			return nil, fmt.Errorf("audio: wav header: %w", err)
		}
		return r, nil
	default:
		return r, nil
	}
}
