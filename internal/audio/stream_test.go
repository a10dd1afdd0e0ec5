package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

type rampSource struct{ next float32 }

func (s *rampSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = s.next
		s.next += 0.25
	}
}

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	p := make([]byte, 8*3+5)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 24 {
		t.Fatalf("expected whole frames only, read %d bytes", n)
	}
	for i := 0; i < 6; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i)*0.25 {
			t.Fatalf("sample %d = %v", i, got)
		}
	}
	if n, err := r.Read(make([]byte, 7)); n != 0 || err != nil {
		t.Fatalf("short read should return nothing, got %d %v", n, err)
	}
}
