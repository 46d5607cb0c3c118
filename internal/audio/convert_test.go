package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestToInt16(t *testing.T) {
	tests := []struct {
		name     string
		in       []int
		bitDepth int
		want     []int16
	}{
		{"16 bit passthrough", []int{0, 1000, -1000}, 16, []int16{0, 1000, -1000}},
		{"24 bit", []int{1 << 16, -(1 << 16)}, 24, []int16{256, -256}},
		{"8 bit unsigned", []int{128, 255, 0}, 8, []int16{0, 127 << 8, -128 << 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToInt16(tt.in, tt.bitDepth)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("index %d: expected %d, got %d", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestPCMBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 1000, math.MaxInt16, math.MinInt16}
	b := PCMBytes(samples)
	if len(b) != 2*len(samples) {
		t.Fatalf("length mismatch: expected %d, got %d", 2*len(samples), len(b))
	}
	for i, s := range samples {
		if got := int16(binary.LittleEndian.Uint16(b[2*i:])); got != s {
			t.Errorf("index %d: expected %d, got %d", i, s, got)
		}
	}
}

func writeTestWAV(t *testing.T, sampleRate, frames int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, frames)
	for i := range data {
		data[i] = (i % 100) * 100
	}
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestReadWAVInfo(t *testing.T) {
	data := writeTestWAV(t, 16000, 8000)

	info, err := ReadWAVInfo(data)
	if err != nil {
		t.Fatalf("ReadWAVInfo failed: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Errorf("unexpected format: %+v", info)
	}
	if info.Duration != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", info.Duration)
	}
}

func TestDecodePCM16(t *testing.T) {
	data := writeTestWAV(t, 8000, 800)

	samples, info, err := DecodePCM16(data)
	if err != nil {
		t.Fatalf("DecodePCM16 failed: %v", err)
	}
	if len(samples) != 800 {
		t.Fatalf("expected 800 samples, got %d", len(samples))
	}
	if samples[1] != 100 || samples[99] != 9900 {
		t.Errorf("unexpected sample values: %d, %d", samples[1], samples[99])
	}
	if info.Duration != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", info.Duration)
	}
}

func TestReadWAVInfo_Invalid(t *testing.T) {
	if _, err := ReadWAVInfo([]byte("not a wav file at all")); err == nil {
		t.Fatal("expected error for invalid data")
	}
}
