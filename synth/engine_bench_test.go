package synth

import (
	"fmt"
	"testing"
)

func BenchmarkRenderBlock(b *testing.B) {
	for _, voices := range []int{4, 16, 64} {
		for _, wave := range []Waveform{WaveSine, WaveTable, WaveFM} {
			b.Run(fmt.Sprintf("voices_%d/%s", voices, wave), func(b *testing.B) {
				e := newTestEngine(b, func(c *Config) {
					c.VoiceCount = voices
					c.Waveform = wave
				})
				for i := 0; i < voices; i++ {
					e.NoteOn(36+i, 0.8)
				}
				buf := make([]float32, 128)
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					e.RenderBlock(buf, len(buf))
				}
			})
		}
	}
}
