package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/framehost"
	"github.com/wippyai/framehost/errors"
)

// Imports is the host side of the env import module.
// The ctx passed to each method is the ctx of the guest export call that
// reached the import, so callers can carry per-guest values in it.
type Imports interface {
	LogConsole(ctx context.Context, ptr, length uint32)
	ReadFile(ctx context.Context, namePtr, nameLen, destPtr, destLen uint32)
	SetCanUpdate(ctx context.Context, enabled bool)
}

// HostFunc is one raw function exported by an ImportGroup.
type HostFunc struct {
	Fn      api.GoModuleFunc
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// ImportGroup is an additional set of env imports, such as a rendering
// surface binding. Groups must be registered before the first guest is
// instantiated.
type ImportGroup interface {
	Name() string
	Functions() []HostFunc
}

var (
	i32  = api.ValueTypeI32
	none = []api.ValueType{}
)

func coreFuncs(imp Imports) []HostFunc {
	return []HostFunc{
		{
			Name:    framehost.ImportLogConsole,
			Params:  []api.ValueType{i32, i32},
			Results: none,
			Fn: func(ctx context.Context, _ api.Module, stack []uint64) {
				imp.LogConsole(ctx, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
			},
		},
		{
			Name:    framehost.ImportReadFile,
			Params:  []api.ValueType{i32, i32, i32, i32},
			Results: none,
			Fn: func(ctx context.Context, _ api.Module, stack []uint64) {
				imp.ReadFile(ctx,
					api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
					api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
			},
		},
		{
			Name:    framehost.ImportSetCanUpdate,
			Params:  []api.ValueType{i32},
			Results: none,
			Fn: func(ctx context.Context, _ api.Module, stack []uint64) {
				imp.SetCanUpdate(ctx, api.DecodeU32(stack[0]) != 0)
			},
		},
		{
			Name:    framehost.ImportHostVersion,
			Params:  none,
			Results: []api.ValueType{i32},
			Fn: func(_ context.Context, _ api.Module, stack []uint64) {
				stack[0] = api.EncodeU32(framehost.ABIVersion)
			},
		},
	}
}

// importSet collects env functions and rejects duplicate names.
type importSet struct {
	owner map[string]string
	funcs []HostFunc
}

func newImportSet() *importSet {
	return &importSet{owner: make(map[string]string)}
}

func (s *importSet) add(group string, funcs []HostFunc) error {
	for _, f := range funcs {
		if f.Name == "" || f.Fn == nil {
			return errors.Registration(group, fmt.Errorf("function %q has no name or body", f.Name))
		}
		if prev, ok := s.owner[f.Name]; ok {
			return errors.Registration(group, fmt.Errorf("import %q already provided by %s", f.Name, prev))
		}
	}
	for _, f := range funcs {
		s.owner[f.Name] = group
		s.funcs = append(s.funcs, f)
	}
	return nil
}

func (s *importSet) instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(framehost.ImportModule)
	for _, f := range s.funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.Fn, f.Params, f.Results).
			Export(f.Name)
	}
	return builder.Instantiate(ctx)
}
