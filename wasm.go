package framehost

import "context"

// Memory is a guest's linear memory as seen by the host.
// Slices returned by Read alias the guest buffer and are only valid until
// the guest grows its memory.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Size() uint32
}

// Exports is the host's only window into one instantiated guest.
type Exports interface {
	// Memory returns the guest's current linear memory, or nil if it has none.
	Memory() Memory
	// Call invokes the named export. A trap inside the guest is returned as an error.
	Call(ctx context.Context, name string, params ...uint64) ([]uint64, error)
	Close(ctx context.Context) error
}

// Exporter is implemented by host-side records that own a guest's exports.
type Exporter interface {
	Exports() Exports
}
