package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/framehost"
	"github.com/wippyai/framehost/errors"
)

// Config holds configuration for engine creation
type Config struct {
	// CacheDir enables wazero's on-disk compilation cache when non-empty.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// WazeroEngine compiles and instantiates guests against the env import module.
type WazeroEngine struct {
	runtime  wazero.Runtime
	ccache   wazero.CompilationCache
	imports  *importSet
	host     api.Module
	compiled map[string]wazero.CompiledModule
	mu       sync.Mutex
	closed   bool
}

// NewWazeroEngine creates an engine whose core env imports call imp.
func NewWazeroEngine(ctx context.Context, cfg Config, imp Imports) (*WazeroEngine, error) {
	if imp == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "imports must not be nil")
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	var ccache wazero.CompilationCache
	if cfg.CacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "compilation cache")
		}
		ccache = c
		runtimeCfg = runtimeCfg.WithCompilationCache(c)
	}

	set := newImportSet()
	if err := set.add("core", coreFuncs(imp)); err != nil {
		return nil, err
	}

	return &WazeroEngine{
		runtime:  wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		ccache:   ccache,
		imports:  set,
		compiled: make(map[string]wazero.CompiledModule),
	}, nil
}

// Register adds an import group to the env module. It fails once the env
// module has been instantiated or when a function name is already taken.
func (e *WazeroEngine) Register(g ImportGroup) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.host != nil {
		return errors.Registration(g.Name(), fmt.Errorf("env module already instantiated"))
	}
	if err := e.imports.add(g.Name(), g.Functions()); err != nil {
		return err
	}
	Logger().Debug("import group registered", zap.String("group", g.Name()), zap.Int("functions", len(g.Functions())))
	return nil
}

// Instantiate compiles image (cached by content), checks its exports against
// the guest ABI, and instantiates it under name without running start
// functions.
func (e *WazeroEngine) Instantiate(ctx context.Context, name string, image []byte) (framehost.Exports, error) {
	compiled, err := e.compile(ctx, image)
	if err != nil {
		return nil, err
	}
	if err := CheckExports(compiled); err != nil {
		return nil, err
	}
	if err := e.ensureHost(ctx); err != nil {
		return nil, err
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		return nil, errors.Load("instantiate "+name, err)
	}
	Logger().Debug("guest instantiated", zap.String("module", name))
	return &exports{mod: mod}, nil
}

func (e *WazeroEngine) compile(ctx context.Context, image []byte) (wazero.CompiledModule, error) {
	sum := sha256.Sum256(image)
	key := hex.EncodeToString(sum[:])

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New(errors.PhaseLoad, errors.KindClosed).Detail("engine closed").Build()
	}
	if c, ok := e.compiled[key]; ok {
		return c, nil
	}

	c, err := e.runtime.CompileModule(ctx, image)
	if err != nil {
		return nil, errors.Load("compile", err)
	}
	e.compiled[key] = c
	Logger().Debug("guest compiled", zap.String("checksum", key[:12]))
	return c, nil
}

func (e *WazeroEngine) ensureHost(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host != nil {
		return nil
	}
	host, err := e.imports.instantiate(ctx, e.runtime)
	if err != nil {
		return errors.Registration(framehost.ImportModule, err)
	}
	e.host = host
	return nil
}

// Close releases the runtime, every instantiated guest, and the compilation cache.
func (e *WazeroEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.compiled = nil
	e.mu.Unlock()

	err := e.runtime.Close(ctx)
	if e.ccache != nil {
		if cerr := e.ccache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

type exportSig struct {
	name     string
	params   []api.ValueType
	required bool
}

var guestExports = []exportSig{
	{name: framehost.ExportInit, params: []api.ValueType{i32}, required: true},
	{name: framehost.ExportUpdate, params: none, required: true},
	{name: framehost.ExportReadFileComplete, params: []api.ValueType{i32}},
}

// CheckExports verifies that a compiled guest exports the functions and
// memory the host calls. All mismatches are reported together.
func CheckExports(c wazero.CompiledModule) error {
	var mismatched []errors.MismatchedExport

	funcs := c.ExportedFunctions()
	for _, want := range guestExports {
		wantSig := signature(want.params, none)
		def, ok := funcs[want.name]
		if !ok {
			if want.required {
				mismatched = append(mismatched, errors.MismatchedExport{Name: want.name, Want: wantSig})
			}
			continue
		}
		if got := signature(def.ParamTypes(), def.ResultTypes()); got != wantSig {
			mismatched = append(mismatched, errors.MismatchedExport{Name: want.name, Want: wantSig, Got: got})
		}
	}
	if _, ok := c.ExportedMemories()[framehost.ExportMemory]; !ok {
		mismatched = append(mismatched, errors.MismatchedExport{Name: framehost.ExportMemory, Want: "memory"})
	}

	if len(mismatched) > 0 {
		return &errors.SignatureError{Exports: mismatched}
	}
	return nil
}

func signature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteString("(")
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteString(") -> (")
	for i, r := range results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(r))
	}
	b.WriteString(")")
	return b.String()
}
