package audio

import (
	"bytes"
	"math"
	"testing"
)

func TestBase64RoundTrip(t *testing.T) {
	in := []byte{0x00, 0xff, 0x10, 0x80, 0x7f}
	got, err := DecodeBase64(EncodeBase64(in))
	if err != nil {
		t.Fatalf("DecodeBase64: %v", err)
	}
	if !bytes.Equal(got, in) {
		t.Fatalf("round trip = %v, want %v", got, in)
	}

	if _, err := DecodeBase64("not base64!"); err == nil {
		t.Fatalf("expected error for invalid input")
	}
}

func TestPCM16ToFloat32(t *testing.T) {
	pcm := []byte{
		0x00, 0x00, // 0
		0x00, 0x80, // -32768
		0xff, 0x7f, // 32767
		0x00, 0x40, // 16384
		0x01, // trailing odd byte
	}
	got := PCM16ToFloat32(pcm)
	want := []float32{0, -1, 32767.0 / 32768.0, 0.5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFloat32ToPCM16_ScalingAndClamp(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full positive", 1, 32767},
		{"full negative", -1, -32768},
		{"over range", 1.5, 32767},
		{"under range", -2, -32768},
		{"half positive truncates", 0.5, 16383},
		{"quarter negative", -0.25, -8192},
		{"half negative", -0.5, -16384},
		{"nan", float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := Float32ToPCM16([]float32{tt.in})
			got := int16(uint16(pcm[0]) | uint16(pcm[1])<<8)
			if got != tt.want {
				t.Fatalf("Float32ToPCM16(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestPCMRoundTripWithinOneStep(t *testing.T) {
	// Positive samples scale by 32767 on encode and 32768 on decode, so the
	// round trip can lose up to two quantization steps at the top of range.
	const tol = 2.0 / 32768.0
	for i := -1000; i <= 1000; i++ {
		x := float32(i) / 1000
		got := PCM16ToFloat32(Float32ToPCM16([]float32{x}))[0]
		if d := math.Abs(float64(got - x)); d > tol {
			t.Fatalf("round trip of %v = %v (diff %v)", x, got, d)
		}
	}
}

func TestEncodeFrameDecodeChunk(t *testing.T) {
	frame := []float32{0, 0.25, -0.25, 0.75}
	buf, err := DecodeChunk(EncodeFrame(frame), OutputSampleRate)
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if buf.SampleRate != OutputSampleRate || buf.Channels != 1 {
		t.Fatalf("buffer format = %d/%d", buf.SampleRate, buf.Channels)
	}
	if len(buf.Samples) != len(frame) {
		t.Fatalf("samples = %d, want %d", len(buf.Samples), len(frame))
	}
}
