package transport

import (
	"encoding/base64"
	"math"
)

// Volume envelope tuning. The exponential filter keeps any visual
// driven by AgentVolume from jittering frame to frame; the decay factor
// lets the envelope fall gracefully when frames stop or arrive broken.
const (
	volumeCarry = 0.7
	volumeBlend = 0.3
	volumeDecay = 0.9

	// Minimum bytes for one 16-bit sample.
	minFrameBytes = 2
)

// frameVolume computes the normalized RMS amplitude of a base64-encoded
// PCM16 little-endian frame, clamped to [0,1]. ok is false for frames
// that cannot be decoded or are too short to carry a sample.
func frameVolume(frameBase64 string) (float64, bool) {
	raw, err := base64.StdEncoding.DecodeString(frameBase64)
	if err != nil || len(raw) < minFrameBytes {
		return 0, false
	}

	n := len(raw) / 2
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		f := float64(s)
		sum += f * f
	}

	rms := math.Sqrt(sum / float64(n))
	norm := rms / 32768.0
	if norm > 1 {
		norm = 1
	}
	return norm, true
}

// smoothVolume advances the envelope toward target without overshoot.
func smoothVolume(prev, target float64) float64 {
	return volumeCarry*prev + volumeBlend*target
}
