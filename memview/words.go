package memview

import "encoding/binary"

// Words is a little-endian uint32 view over guest bytes. It does not copy.
type Words struct {
	data []byte
}

// Len returns the number of words.
func (w Words) Len() int {
	return len(w.data) / 4
}

// At returns word i.
func (w Words) At(i int) uint32 {
	return binary.LittleEndian.Uint32(w.data[i*4:])
}

// Set stores v at word i.
func (w Words) Set(i int, v uint32) {
	binary.LittleEndian.PutUint32(w.data[i*4:], v)
}

// Uint32s copies the words into a new slice.
func (w Words) Uint32s() []uint32 {
	out := make([]uint32, w.Len())
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}
