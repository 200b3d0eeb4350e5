package cdp

import "context"

// Facade is the capability set the protocol dispatcher depends on.
// Inbound frames reach the dispatcher through a RawMessageHandler.
type Facade interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendRawMessage(ctx context.Context, payload string) error
}

// RawMessageHandler receives one inbound frame.
type RawMessageHandler func(payload string)

// DisposeHandler is told that an open channel closed without Disconnect.
// err is the read error that ended the channel.
type DisposeHandler func(err error)

var _ Facade = (*Connection)(nil)
