package engine

import (
	"sync"

	"github.com/google/uuid"
)

// Client is the transport-neutral handle a game actor uses to reach a
// subscriber. It lets the actor deliver frames without depending on the
// session or TUI layers.
type Client interface {
	// ID uniquely identifies this client connection. Two joins by the
	// same player from different terminals carry different IDs.
	ID() string

	// Deliver hands a frame to the client. Must be non-blocking; a slow
	// or dead client must never stall the game actor.
	Deliver(Frame)

	// Done returns a channel that closes when the client goes away. The
	// actor installs a monitor on it.
	Done() <-chan struct{}
}

// ChannelClient is a Client backed by a buffered Go channel. Sessions
// read frames from Frames(); when the buffer fills, the oldest frame is
// dropped so delivery stays best-effort.
type ChannelClient struct {
	id       string
	frames   chan Frame
	done     chan struct{}
	doneOnce sync.Once
}

// NewChannelClient creates a channel-backed client handle with a fresh
// identity. frameBufferSize controls how many frames can queue before
// old ones are dropped.
func NewChannelClient(frameBufferSize int) *ChannelClient {
	if frameBufferSize < 1 {
		frameBufferSize = 16
	}
	return &ChannelClient{
		id:     uuid.NewString(),
		frames: make(chan Frame, frameBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the client identity.
func (c *ChannelClient) ID() string {
	return c.id
}

// Deliver queues a frame for the client. If the buffer is full the
// oldest frame is dropped; a stale frame is worthless anyway because
// consumers drop anything older than what they have seen.
func (c *ChannelClient) Deliver(f Frame) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.frames <- f:
	default:
		select {
		case <-c.frames:
		default:
		}
		select {
		case c.frames <- f:
		default:
		}
	}
}

// Frames returns the channel the owning session reads frames from.
func (c *ChannelClient) Frames() <-chan Frame {
	return c.frames
}

// Done returns the done channel.
func (c *ChannelClient) Done() <-chan struct{} {
	return c.done
}

// Close marks the client as gone. Safe to call multiple times; the game
// actor observes exactly one monitor-down per installed monitor.
func (c *ChannelClient) Close() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}
