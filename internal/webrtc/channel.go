package webrtc

import "github.com/pion/webrtc/v4"

// DataChannel adapts a pion DataChannel to the meshnode.Transport contract
// (structural satisfaction — internal/meshnode defines the interface, this
// package does not import it, avoiding a cycle).
type DataChannel struct {
	raw *webrtc.DataChannel
}

// WrapChannel wraps a freshly created pion DataChannel.
func WrapChannel(raw *webrtc.DataChannel) *DataChannel {
	return &DataChannel{raw: raw}
}

func (c *DataChannel) Send(data []byte) error {
	return c.raw.Send(data)
}

func (c *DataChannel) OnMessage(fn func(data []byte)) {
	c.raw.OnMessage(func(msg webrtc.DataChannelMessage) { fn(msg.Data) })
}

func (c *DataChannel) OnOpen(fn func())  { c.raw.OnOpen(fn) }
func (c *DataChannel) OnClose(fn func()) { c.raw.OnClose(fn) }

func (c *DataChannel) OnError(fn func(error)) {
	c.raw.OnError(fn)
}

func (c *DataChannel) IsOpen() bool {
	return c.raw.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *DataChannel) BufferedAmount() uint64 {
	return c.raw.BufferedAmount()
}

func (c *DataChannel) Close() error {
	return c.raw.Close()
}

// Raw exposes the underlying pion DataChannel for callers that need it
// (e.g. tests asserting on label/ID).
func (c *DataChannel) Raw() *webrtc.DataChannel { return c.raw }
