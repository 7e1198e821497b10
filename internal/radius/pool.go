package radius

import "sync"

// -------------------------------------------------------------------------
// Buffer Pool
// -------------------------------------------------------------------------

// BufferPool hands out MaxPacketSize-capacity byte slices for receiving
// datagrams, avoiding a fresh allocation per packet on the hot path.
// Callers must reset the slice length to MaxPacketSize before reading
// into it and return it via PutBuffer when done.
var BufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, MaxPacketSize)
		return &b
	},
}

// GetBuffer returns a pooled buffer of length MaxPacketSize.
func GetBuffer() *[]byte {
	buf, _ := BufferPool.Get().(*[]byte)
	*buf = (*buf)[:MaxPacketSize]
	return buf
}

// PutBuffer returns buf to the pool.
func PutBuffer(buf *[]byte) {
	BufferPool.Put(buf)
}
