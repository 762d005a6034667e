package framehost

// ABIVersion is the version of the import surface guests are compiled against.
// It is returned to guests by the hostVersion import.
const ABIVersion = 1

// ImportModule is the module name every host import lives under.
const ImportModule = "env"

// Host imports.
const (
	ImportLogConsole   = "logConsole"
	ImportReadFile     = "readFile"
	ImportSetCanUpdate = "setCanUpdate"
	ImportHostVersion  = "hostVersion"
)

// Guest exports.
const (
	ExportInit             = "init"
	ExportUpdate           = "update"
	ExportReadFileComplete = "readFileComplete"
	ExportMemory           = "memory"
)
