// Package wasmtest assembles small core WebAssembly modules for tests.
//
// Only the handful of sections and instructions the host tests need are
// supported: function types, function imports, one memory, exported
// functions, and active data segments.
package wasmtest

import (
	"bytes"
	"fmt"
)

// ValType is a WebAssembly value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02
)

type funcType struct {
	params  []ValType
	results []ValType
}

type importFunc struct {
	module string
	name   string
	typ    funcType
}

type function struct {
	export string
	typ    funcType
	body   []byte
}

type dataSegment struct {
	offset int32
	data   []byte
}

// Module is a module under construction.
type Module struct {
	imports  []importFunc
	funcs    []function
	data     []dataSegment
	memPages uint32
	memMax   *uint32
	memName  string
	hasMem   bool
}

// NewModule starts an empty module.
func NewModule() *Module {
	return &Module{}
}

// Import declares a function import and returns its function index.
// All imports must be declared before any Func call.
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: imports must be declared before functions")
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typ: funcType{params, results}})
	return uint32(len(m.imports) - 1)
}

// Memory declares one linear memory of min pages exported under name.
func (m *Module) Memory(name string, min uint32) *Module {
	m.hasMem = true
	m.memName = name
	m.memPages = min
	return m
}

// MemoryMax caps the memory at max pages.
func (m *Module) MemoryMax(max uint32) *Module {
	m.memMax = &max
	return m
}

// Func defines a function exported as name (unexported when name is empty)
// and returns its function index. The trailing end opcode is added by Build.
func (m *Module) Func(name string, params, results []ValType, body ...[]byte) uint32 {
	m.funcs = append(m.funcs, function{
		export: name,
		typ:    funcType{params, results},
		body:   bytes.Join(body, nil),
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Data places data at a constant offset in memory 0.
func (m *Module) Data(offset int32, data []byte) *Module {
	m.data = append(m.data, dataSegment{offset: offset, data: data})
	return m
}

// Build encodes the module in binary format.
func (m *Module) Build() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d}) // \0asm
	out.Write([]byte{0x01, 0x00, 0x00, 0x00}) // version 1

	types := make([]funcType, 0, len(m.imports)+len(m.funcs))
	for _, imp := range m.imports {
		types = append(types, imp.typ)
	}
	for _, fn := range m.funcs {
		types = append(types, fn.typ)
	}

	if len(types) > 0 {
		sec := &bytes.Buffer{}
		writeU32(sec, uint32(len(types)))
		for _, ft := range types {
			sec.WriteByte(0x60)
			writeValTypes(sec, ft.params)
			writeValTypes(sec, ft.results)
		}
		writeSection(&out, sectionType, sec.Bytes())
	}

	if len(m.imports) > 0 {
		sec := &bytes.Buffer{}
		writeU32(sec, uint32(len(m.imports)))
		for i, imp := range m.imports {
			writeName(sec, imp.module)
			writeName(sec, imp.name)
			sec.WriteByte(kindFunc)
			writeU32(sec, uint32(i))
		}
		writeSection(&out, sectionImport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		sec := &bytes.Buffer{}
		writeU32(sec, uint32(len(m.funcs)))
		for i := range m.funcs {
			writeU32(sec, uint32(len(m.imports)+i))
		}
		writeSection(&out, sectionFunction, sec.Bytes())
	}

	if m.hasMem {
		sec := &bytes.Buffer{}
		writeU32(sec, 1)
		if m.memMax != nil {
			sec.WriteByte(0x01)
			writeU32(sec, m.memPages)
			writeU32(sec, *m.memMax)
		} else {
			sec.WriteByte(0x00)
			writeU32(sec, m.memPages)
		}
		writeSection(&out, sectionMemory, sec.Bytes())
	}

	var exports [][]byte
	for i, fn := range m.funcs {
		if fn.export == "" {
			continue
		}
		e := &bytes.Buffer{}
		writeName(e, fn.export)
		e.WriteByte(kindFunc)
		writeU32(e, uint32(len(m.imports)+i))
		exports = append(exports, e.Bytes())
	}
	if m.hasMem && m.memName != "" {
		e := &bytes.Buffer{}
		writeName(e, m.memName)
		e.WriteByte(kindMemory)
		writeU32(e, 0)
		exports = append(exports, e.Bytes())
	}
	if len(exports) > 0 {
		sec := &bytes.Buffer{}
		writeU32(sec, uint32(len(exports)))
		for _, e := range exports {
			sec.Write(e)
		}
		writeSection(&out, sectionExport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		sec := &bytes.Buffer{}
		writeU32(sec, uint32(len(m.funcs)))
		for _, fn := range m.funcs {
			code := &bytes.Buffer{}
			writeU32(code, 0) // no locals
			code.Write(fn.body)
			code.WriteByte(opEnd)
			writeU32(sec, uint32(code.Len()))
			sec.Write(code.Bytes())
		}
		writeSection(&out, sectionCode, sec.Bytes())
	}

	if len(m.data) > 0 {
		if !m.hasMem {
			panic("wasmtest: data segments require a memory")
		}
		sec := &bytes.Buffer{}
		writeU32(sec, uint32(len(m.data)))
		for _, d := range m.data {
			writeU32(sec, 0) // active, memory 0
			sec.Write(I32Const(d.offset))
			sec.WriteByte(opEnd)
			writeU32(sec, uint32(len(d.data)))
			sec.Write(d.data)
		}
		writeSection(&out, sectionData, sec.Bytes())
	}

	return out.Bytes()
}

func (m *Module) String() string {
	return fmt.Sprintf("wasmtest.Module{imports: %d, funcs: %d, data: %d}", len(m.imports), len(m.funcs), len(m.data))
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	writeU32(w, uint32(len(data)))
	w.Write(data)
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	writeU32(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}

func writeName(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
}

func writeU32(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func appendU32(dst []byte, v uint32) []byte {
	var b bytes.Buffer
	writeU32(&b, v)
	return append(dst, b.Bytes()...)
}

func appendS32(dst []byte, v int32) []byte {
	x := int64(v)
	for {
		b := byte(x & 0x7f)
		x >>= 7
		if (x == 0 && b&0x40 == 0) || (x == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}
