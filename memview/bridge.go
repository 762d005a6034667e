package memview

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/framehost"
	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/registry"
)

// TextPolicy decides how Text treats malformed UTF-8.
type TextPolicy int

const (
	// TextStrict fails with errors.ErrInvalidEncoding.
	TextStrict TextPolicy = iota
	// TextLossy replaces malformed sequences with U+FFFD.
	TextLossy
)

// ParseTextPolicy maps "strict" and "lossy" to a TextPolicy.
func ParseTextPolicy(s string) (TextPolicy, error) {
	switch s {
	case "", "strict":
		return TextStrict, nil
	case "lossy":
		return TextLossy, nil
	default:
		return TextStrict, errors.InvalidInput(errors.PhaseConfig, "unknown text policy "+s)
	}
}

func (p TextPolicy) String() string {
	if p == TextLossy {
		return "lossy"
	}
	return "strict"
}

// MemoryResolver finds the current linear memory of a registered guest.
type MemoryResolver interface {
	Memory(h registry.Handle) (framehost.Memory, error)
}

// Bridge projects (handle, pointer, length) triples onto guest memory.
// Each call resolves the handle and reads the memory afresh, so views never
// outlive a memory growth.
type Bridge struct {
	resolver MemoryResolver
	policy   TextPolicy
}

// New creates a bridge that resolves handles through r.
func New(r MemoryResolver, policy TextPolicy) *Bridge {
	return &Bridge{resolver: r, policy: policy}
}

// Policy returns the text decoding policy.
func (b *Bridge) Policy() TextPolicy {
	return b.policy
}

// Bytes returns a view of n bytes at ptr. The slice aliases guest memory.
func (b *Bridge) Bytes(h registry.Handle, ptr, n uint32) ([]byte, error) {
	mem, err := b.resolver.Memory(h)
	if err != nil {
		return nil, err
	}
	data, ok := mem.Read(ptr, n)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, ptr, n, mem.Size())
	}
	return data, nil
}

// Words returns a view of byteLen/4 little-endian 32-bit words at ptr.
func (b *Bridge) Words(h registry.Handle, ptr, byteLen uint32) (Words, error) {
	if byteLen%4 != 0 {
		return Words{}, errors.InvalidLength(errors.PhaseMemory, byteLen, 4)
	}
	data, err := b.Bytes(h, ptr, byteLen)
	if err != nil {
		return Words{}, err
	}
	return Words{data: data}, nil
}

// Text decodes n bytes at ptr as UTF-8 according to the bridge policy.
func (b *Bridge) Text(h registry.Handle, ptr, n uint32) (string, error) {
	data, err := b.Bytes(h, ptr, n)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	if b.policy == TextStrict {
		return "", errors.InvalidEncoding(errors.PhaseMemory, data)
	}
	decoded, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Wrap(errors.PhaseMemory, errors.KindInvalidEncoding, err, "lossy decode")
	}
	return string(decoded), nil
}

// Write copies data into guest memory at ptr. Nothing is written unless the
// whole range is inside memory.
func (b *Bridge) Write(h registry.Handle, ptr uint32, data []byte) error {
	view, err := b.Bytes(h, ptr, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(view, data)
	return nil
}

type tableResolver[T framehost.Exporter] struct {
	table *registry.Table[T]
}

// TableResolver resolves handles through a registry of exporters.
func TableResolver[T framehost.Exporter](t *registry.Table[T]) MemoryResolver {
	return &tableResolver[T]{table: t}
}

func (r *tableResolver[T]) Memory(h registry.Handle) (framehost.Memory, error) {
	rec, err := r.table.Get(h)
	if err != nil {
		return nil, err
	}
	exports := rec.Exports()
	if exports == nil {
		return nil, errors.InvalidHandle(errors.PhaseMemory, uint32(h))
	}
	mem := exports.Memory()
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseMemory, "memory", framehost.ExportMemory)
	}
	return mem, nil
}
