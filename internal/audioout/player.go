package audioout

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Player owns the oto context and the player reading from a Stream.
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	stream *Stream

	mu      sync.Mutex
	started bool
}

// NewPlayer opens the audio device. bufferSize is the device buffer length;
// zero leaves the choice to oto.
func NewPlayer(sampleRate int, stream *Stream, bufferSize time.Duration) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: stream.Channels(),
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("audioout: %w", err)
	}
	<-ready

	return &Player{
		ctx:    ctx,
		player: ctx.NewPlayer(stream),
		stream: stream,
	}, nil
}

// Stream returns the stream the device reads from.
func (p *Player) Stream() *Stream { return p.stream }

func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started && p.player != nil {
		p.player.Play()
		p.started = true
	}
}

func (p *Player) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Close stops playback and releases the player.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = false
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	return err
}
