package transport

import (
	"encoding/base64"
	"math"
	"testing"
)

// pcmFrame builds a base64 PCM16 frame of n samples at the given
// constant amplitude.
func pcmFrame(amp int16, n int) string {
	raw := make([]byte, n*2)
	for i := 0; i < n; i++ {
		raw[i*2] = byte(amp)
		raw[i*2+1] = byte(amp >> 8)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestFrameVolume(t *testing.T) {
	t.Run("constant amplitude normalizes to rms", func(t *testing.T) {
		norm, ok := frameVolume(pcmFrame(16384, 160))
		if !ok {
			t.Fatal("expected valid frame")
		}
		if math.Abs(norm-0.5) > 0.001 {
			t.Errorf("expected ~0.5, got %f", norm)
		}
	})

	t.Run("silence is zero", func(t *testing.T) {
		norm, ok := frameVolume(pcmFrame(0, 160))
		if !ok {
			t.Fatal("expected valid frame")
		}
		if norm != 0 {
			t.Errorf("expected 0, got %f", norm)
		}
	})

	t.Run("full scale clamps to one", func(t *testing.T) {
		norm, ok := frameVolume(pcmFrame(-32768, 160))
		if !ok {
			t.Fatal("expected valid frame")
		}
		if norm > 1 {
			t.Errorf("expected clamp to 1, got %f", norm)
		}
	})

	t.Run("invalid base64 rejected", func(t *testing.T) {
		if _, ok := frameVolume("not base64!!!"); ok {
			t.Error("expected rejection")
		}
	})

	t.Run("too-short frame rejected", func(t *testing.T) {
		if _, ok := frameVolume(base64.StdEncoding.EncodeToString([]byte{1})); ok {
			t.Error("expected rejection")
		}
	})

	t.Run("empty frame rejected", func(t *testing.T) {
		if _, ok := frameVolume(""); ok {
			t.Error("expected rejection")
		}
	})
}

func TestSmoothVolume(t *testing.T) {
	t.Run("approaches target monotonically without overshoot", func(t *testing.T) {
		const target = 0.5
		v := 0.0
		for i := 0; i < 50; i++ {
			next := smoothVolume(v, target)
			if next <= v && v < target {
				t.Fatalf("iteration %d: envelope stalled at %f", i, v)
			}
			if next > target+1e-9 {
				t.Fatalf("iteration %d: envelope overshot to %f", i, next)
			}
			v = next
		}
		if math.Abs(v-target) > 0.01 {
			t.Errorf("expected convergence near %f, got %f", target, v)
		}
	})

	t.Run("decays toward lower target", func(t *testing.T) {
		v := smoothVolume(1.0, 0.0)
		if v >= 1.0 || v <= 0 {
			t.Errorf("expected decay into (0,1), got %f", v)
		}
	})
}
