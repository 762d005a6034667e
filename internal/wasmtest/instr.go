package wasmtest

const (
	opUnreachable = 0x00
	opEnd         = 0x0b
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opI32Load     = 0x28
	opI32Store    = 0x36
	opMemoryGrow  = 0x40
	opI32Const    = 0x41
	opI32Add      = 0x6a
)

// Unreachable traps.
func Unreachable() []byte { return []byte{opUnreachable} }

// Drop discards the top of the stack.
func Drop() []byte { return []byte{opDrop} }

// I32Add adds the two i32 values on top of the stack.
func I32Add() []byte { return []byte{opI32Add} }

// Call calls function idx.
func Call(idx uint32) []byte { return appendU32([]byte{opCall}, idx) }

// LocalGet pushes parameter or local idx.
func LocalGet(idx uint32) []byte { return appendU32([]byte{opLocalGet}, idx) }

// I32Const pushes v.
func I32Const(v int32) []byte { return appendS32([]byte{opI32Const}, v) }

// I32Load loads an aligned i32 from address+offset.
func I32Load(offset uint32) []byte { return appendU32([]byte{opI32Load, 0x02}, offset) }

// I32Store stores an aligned i32 at address+offset.
func I32Store(offset uint32) []byte { return appendU32([]byte{opI32Store, 0x02}, offset) }

// MemoryGrow grows memory 0 by the page count on the stack and pushes the old size.
func MemoryGrow() []byte { return []byte{opMemoryGrow, 0x00} }

// StoreConst writes v at addr.
func StoreConst(addr uint32, v int32) []byte {
	return join(I32Const(0), I32Const(v), I32Store(addr))
}

// StoreLocal writes parameter idx at addr.
func StoreLocal(addr, idx uint32) []byte {
	return join(I32Const(0), LocalGet(idx), I32Store(addr))
}

// Increment adds one to the i32 at addr.
func Increment(addr uint32) []byte {
	return join(I32Const(0), I32Const(0), I32Load(addr), I32Const(1), I32Add(), I32Store(addr))
}

// CallWith pushes the constant arguments and calls idx.
func CallWith(idx uint32, args ...int32) []byte {
	var out []byte
	for _, a := range args {
		out = append(out, I32Const(a)...)
	}
	return append(out, Call(idx)...)
}

func join(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
