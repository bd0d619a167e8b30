// Package audiodecode implements the AudioDecoder boundary: turning
// container bytes into a mono f64 sample stream at a known rate. It is
// the only place in the engine that touches an audio container format —
// everything downstream works in terms of audiodecode.Buffer.
package audiodecode

import (
	"bytes"
	"fmt"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Codec identifies the wire encoding of the bytes passed to Decode.
type Codec string

const (
	CodecWAV      Codec = "wav"
	CodecPCM16    Codec = "pcm_s16le"
	CodecG711Ulaw Codec = "g711_ulaw"
	CodecG711Alaw Codec = "g711_alaw"
)

// Buffer is an ordered sequence of finite f64 samples, mono, with a
// sample rate in Hz.
type Buffer struct {
	Samples []float64
	SampleRate int
}

// Validate enforces the AudioBuffer invariant: samples finite, sr > 0.
func (b Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("audiodecode: invalid sample rate %d", b.SampleRate)
	}
	for i, s := range b.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("audiodecode: non-finite sample at index %d", i)
		}
	}
	return nil
}

// Decode converts encoded audio bytes into a mono Buffer. For CodecPCM16/
// G711 codecs sampleRateHint supplies the rate (G711 is always 8kHz and
// the hint is ignored); for CodecWAV the rate is read from the container
// and any hint is ignored.
func Decode(data []byte, codec Codec, sampleRateHint int) (Buffer, error) {
	switch codec {
	case CodecWAV:
		return decodeWAV(data)
	case CodecPCM16:
		return Buffer{Samples: decodePCM16(data), SampleRate: sampleRateHint}, nil
	case CodecG711Ulaw:
		return Buffer{Samples: decodeG711Ulaw(data), SampleRate: 8000}, nil
	case CodecG711Alaw:
		return Buffer{Samples: decodeG711Alaw(data), SampleRate: 8000}, nil
	default:
		return Buffer{}, fmt.Errorf("audiodecode: unsupported codec %q", codec)
	}
}

func decodeWAV(data []byte) (Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("audiodecode: wav decode: %w", err)
	}
	mono := toMono(buf)
	return Buffer{Samples: mono, SampleRate: int(dec.SampleRate)}, nil
}

// toMono downmixes an arbitrary-channel IntBuffer to f64 mono samples
// scaled to [-1, 1] by the buffer's reported source bit depth.
func toMono(buf *goaudio.IntBuffer) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := float64(int(1) << (buf.SourceBitDepth - 1))
	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = (sum / float64(channels)) / scale
	}
	return out
}

func decodePCM16(data []byte) []float64 {
	n := len(data) / 2
	samples := make([]float64, n)
	for i := range n {
		s := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		samples[i] = float64(s) / math.MaxInt16
	}
	return samples
}
