package core

// Frame is a marshaled signaling event ready for the wire.
type Frame []byte

// SignalConn abstracts one outbound signaling channel.
// Owned by the adapter; the adapter must Close() it. TrySend never
// blocks: a full buffer is reported as an error and the frame is lost,
// so a slow receiver cannot stall the sender's room.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}
