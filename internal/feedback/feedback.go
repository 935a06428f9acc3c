// Package feedback produces the audible error tone played when a scan is
// rejected. Tones are synthesized as raw PCM so the host can route them to
// whatever audio sink it has; the default sink just counts them.
package feedback

import (
	"encoding/binary"
	"log"
	"math"
	"time"
)

// Player consumes one synthesized tone. Implementations must not block;
// the scan path fires tones inline.
type Player interface {
	Play(pcm []byte, sampleRate int)
}

// Discard drops tones. Used headless and in tests.
type Discard struct{}

func (Discard) Play([]byte, int) {}

// Tone describes a square-wave beep.
type Tone struct {
	Frequency  float64
	Duration   time.Duration
	SampleRate int
}

// DefaultTone is the scanner error beep.
var DefaultTone = Tone{Frequency: 880, Duration: 120 * time.Millisecond, SampleRate: 44100}

// PCM renders the tone as 16-bit little-endian signed mono samples.
func (t Tone) PCM() []byte {
	if t.Frequency <= 0 {
		t.Frequency = DefaultTone.Frequency
	}
	if t.Duration <= 0 {
		t.Duration = DefaultTone.Duration
	}
	if t.SampleRate <= 0 {
		t.SampleRate = DefaultTone.SampleRate
	}

	n := int(float64(t.SampleRate) * t.Duration.Seconds())
	out := make([]byte, 2*n)
	amplitude := 0.6 * float64(math.MaxInt16)
	period := float64(t.SampleRate) / t.Frequency
	for i := 0; i < n; i++ {
		v := int16(amplitude)
		if math.Mod(float64(i), period) >= period/2 {
			v = -v
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

// Beeper plays the error tone through a Player. The zero value is unusable;
// use NewBeeper.
type Beeper struct {
	player Player
	tone   Tone
	pcm    []byte
}

// NewBeeper pre-renders the tone once. A nil player discards.
func NewBeeper(player Player, tone Tone) *Beeper {
	if player == nil {
		player = Discard{}
	}
	if tone.Frequency <= 0 {
		tone.Frequency = DefaultTone.Frequency
	}
	if tone.Duration <= 0 {
		tone.Duration = DefaultTone.Duration
	}
	if tone.SampleRate <= 0 {
		tone.SampleRate = DefaultTone.SampleRate
	}
	return &Beeper{player: player, tone: tone, pcm: tone.PCM()}
}

// Beep plays the pre-rendered error tone.
func (b *Beeper) Beep() {
	log.Printf("feedback: error beep %.0fHz", b.tone.Frequency)
	b.player.Play(b.pcm, b.tone.SampleRate)
}
