package transport

// ResponseBuffer queues the response frames produced for the request in
// flight and remembers the last frame handed out so a resend request can
// replay it without re-executing the handler.
type ResponseBuffer struct {
	pending [][]byte
	latest  []byte
}

// NewResponseBuffer creates an empty buffer.
func NewResponseBuffer() *ResponseBuffer {
	return &ResponseBuffer{}
}

// Add queues response frames in send order.
func (b *ResponseBuffer) Add(frames ...[]byte) {
	b.pending = append(b.pending, frames...)
}

// Next pops the next queued frame and records it as the latest sent.
// Callers check Empty first; Next on an empty buffer returns nil.
func (b *ResponseBuffer) Next() []byte {
	if len(b.pending) == 0 {
		return nil
	}
	b.latest = b.pending[0]
	b.pending = b.pending[1:]
	return b.latest
}

// Latest returns the frame most recently handed out by Next, or nil if
// nothing has been sent since the last reset.
func (b *ResponseBuffer) Latest() []byte {
	return b.latest
}

// Empty reports whether no frames are queued.
func (b *ResponseBuffer) Empty() bool {
	return len(b.pending) == 0
}

// Reset drops all queued frames and the latest-sent record.
func (b *ResponseBuffer) Reset() {
	b.pending = nil
	b.latest = nil
}
