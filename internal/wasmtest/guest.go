package wasmtest

// Fixed addresses in the linear memory of a Guest.
const (
	AddrHandle    = 0  // handle passed to init
	AddrUpdates   = 4  // number of update calls
	AddrReadFlag  = 8  // last readFileComplete argument
	AddrReadCount = 12 // number of readFileComplete calls
	AddrLog       = 64 // Log message bytes
	AddrName      = 128
)

// Function indices of the env imports every Guest declares.
const (
	FuncLogConsole = iota
	FuncReadFile
	FuncSetCanUpdate
	FuncHostVersion
)

// Guest describes a guest that follows the host ABI. Its behavior is driven
// by the fields; Build assembles it.
type Guest struct {
	// Log is passed to logConsole from init when non-empty.
	Log string
	// ReadName is requested with readFile from init when non-empty,
	// into ReadDest with capacity ReadLen.
	ReadName string
	ReadDest uint32
	ReadLen  uint32

	// Activate calls setCanUpdate(1) from init.
	Activate bool
	// LogEveryUpdate calls logConsole with Log from update.
	LogEveryUpdate bool
	// GrowOnUpdate grows memory by one page on every update.
	GrowOnUpdate bool
	TrapInit     bool
	TrapUpdate   bool
	// NoReadComplete omits the readFileComplete export.
	NoReadComplete bool
	// BadInitSignature exports init without parameters.
	BadInitSignature bool
}

// Build assembles the guest.
func (g Guest) Build() []byte {
	m := NewModule()
	m.Import("env", "logConsole", []ValType{I32, I32}, nil)
	m.Import("env", "readFile", []ValType{I32, I32, I32, I32}, nil)
	m.Import("env", "setCanUpdate", []ValType{I32}, nil)
	m.Import("env", "hostVersion", nil, []ValType{I32})
	m.Memory("memory", 1)

	var init [][]byte
	if !g.BadInitSignature {
		init = append(init, StoreLocal(AddrHandle, 0))
	}
	if g.Activate {
		init = append(init, CallWith(FuncSetCanUpdate, 1))
	}
	if g.Log != "" {
		m.Data(AddrLog, []byte(g.Log))
		init = append(init, CallWith(FuncLogConsole, AddrLog, int32(len(g.Log))))
	}
	if g.ReadName != "" {
		m.Data(AddrName, []byte(g.ReadName))
		init = append(init, CallWith(FuncReadFile, AddrName, int32(len(g.ReadName)), int32(g.ReadDest), int32(g.ReadLen)))
	}
	if g.TrapInit {
		init = append(init, Unreachable())
	}
	if g.BadInitSignature {
		m.Func("init", nil, nil, init...)
	} else {
		m.Func("init", []ValType{I32}, nil, init...)
	}

	update := [][]byte{Increment(AddrUpdates)}
	if g.LogEveryUpdate && g.Log != "" {
		update = append(update, CallWith(FuncLogConsole, AddrLog, int32(len(g.Log))))
	}
	if g.GrowOnUpdate {
		update = append(update, I32Const(1), MemoryGrow(), Drop())
	}
	if g.TrapUpdate {
		update = append(update, Unreachable())
	}
	m.Func("update", nil, nil, update...)

	if !g.NoReadComplete {
		m.Func("readFileComplete", []ValType{I32}, nil,
			StoreLocal(AddrReadFlag, 0),
			Increment(AddrReadCount),
		)
	}
	return m.Build()
}
