package audio

import "time"

// Buffer holds interleaved float32 samples.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (b Buffer) Frames() int {
	ch := b.Channels
	if ch <= 0 {
		ch = 1
	}
	return len(b.Samples) / ch
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Framer slices a continuous capture stream into fixed-size frames.
// It is not safe for concurrent use.
type Framer struct {
	size    int
	pending []float32
}

// NewFramer returns a Framer emitting frames of size samples.
// A non-positive size selects CaptureFrameSize.
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = CaptureFrameSize
	}
	return &Framer{size: size, pending: make([]float32, 0, size)}
}

// Write appends samples and returns every complete frame, in order.
func (f *Framer) Write(samples []float32) [][]float32 {
	var frames [][]float32
	for len(samples) > 0 {
		n := f.size - len(f.pending)
		if n > len(samples) {
			n = len(samples)
		}
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]
		if len(f.pending) == f.size {
			frame := make([]float32, f.size)
			copy(frame, f.pending)
			frames = append(frames, frame)
			f.pending = f.pending[:0]
		}
	}
	return frames
}

// Pending returns the number of buffered samples not yet emitted.
func (f *Framer) Pending() int { return len(f.pending) }
