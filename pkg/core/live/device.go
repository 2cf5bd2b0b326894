package live

import (
	"context"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Microphone grants access to an input device.
type Microphone interface {
	// Open starts capturing mono float samples at sampleRate. A denied or
	// missing device should be reported as a permission error.
	Open(ctx context.Context, sampleRate int) (Capture, error)
}

// Capture is an open microphone stream.
type Capture interface {
	// Frames delivers captured samples in order. Block sizes are arbitrary;
	// the controller re-frames them. The channel is closed when capture ends.
	Frames() <-chan []float32
	Close() error
}

// Speaker grants access to an output device.
type Speaker interface {
	Open(ctx context.Context, sampleRate int) (Output, error)
}

// Output is an audio output with its own clock.
type Output interface {
	// Now is the current position of the output clock.
	Now() time.Duration

	// Schedule queues buf to start at the given clock position. onEnded is
	// called asynchronously when playback of buf finishes; it is not called
	// for buffers that were stopped.
	Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (Handle, error)

	Close() error
}

// Handle controls one scheduled buffer.
type Handle interface {
	Stop()
}

// Connector opens the remote live session.
type Connector interface {
	Connect(ctx context.Context, cfg *types.LiveConfig) (core.LiveConn, error)
}

// ConnectorFunc adapts a function to a Connector.
type ConnectorFunc func(ctx context.Context, cfg *types.LiveConfig) (core.LiveConn, error)

func (f ConnectorFunc) Connect(ctx context.Context, cfg *types.LiveConfig) (core.LiveConn, error) {
	return f(ctx, cfg)
}

// RouterConnector opens live sessions through the router using a snapshot
// of the provider configuration. Later changes to the caller's
// configuration do not affect it.
func RouterConnector(router *core.Router, cfg types.ProviderConfig) Connector {
	return ConnectorFunc(func(ctx context.Context, live *types.LiveConfig) (core.LiveConn, error) {
		return router.OpenLiveSession(ctx, cfg, live)
	})
}
