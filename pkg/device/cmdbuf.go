package device

// CommandBuffer accumulates chunks of an encrypted command until the full
// command, as announced by the SIZE field of its first chunk, has arrived.
type CommandBuffer struct {
	buf      []byte
	expected int
	received int
}

// Initialize starts collecting a new command of the given total length.
// Any previously buffered chunks are dropped.
func (b *CommandBuffer) Initialize(total int) {
	b.buf = b.buf[:0]
	b.expected = total
	b.received = 0
}

// AddChunk appends a chunk. Bytes beyond the expected total are ignored.
func (b *CommandBuffer) AddChunk(chunk []byte) {
	remaining := b.expected - b.received
	if remaining <= 0 {
		return
	}
	if len(chunk) > remaining {
		chunk = chunk[:remaining]
	}
	b.buf = append(b.buf, chunk...)
	b.received += len(chunk)
}

// Incomplete reports whether more chunks are needed.
func (b *CommandBuffer) Incomplete() bool {
	return b.received < b.expected
}

// Empty reports whether nothing has been collected.
func (b *CommandBuffer) Empty() bool {
	return b.received == 0
}

// Raw returns the assembled command and resets the buffer.
func (b *CommandBuffer) Raw() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.Reset()
	return out
}

// Reset drops any buffered state.
func (b *CommandBuffer) Reset() {
	b.buf = b.buf[:0]
	b.expected = 0
	b.received = 0
}
