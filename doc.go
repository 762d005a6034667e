// Package framehost is a host runtime for WebAssembly guests driven by a
// per-frame update loop.
//
// The host loads one or more core WebAssembly modules, registers each in a
// handle registry, calls the guest's init export with its handle, and then
// calls update on every frame for guests that have activated themselves.
// Guests can log through the host and request resources asynchronously; the
// host copies fetched bytes into guest memory and resumes the guest through
// its readFileComplete export.
//
// # Architecture Overview
//
//	framehost/          Root package with the ABI names and the Memory/Exports interfaces
//	├── runtime/        Module loader, host import implementation, Run entry point
//	├── engine/         wazero integration and the env import module
//	├── registry/       Handle registry (insertion ordered, handles never reused)
//	├── memview/        Byte, word and text views over guest memory
//	├── scheduler/      Control loop, frame sources and the per-frame tick
//	├── resource/       Asynchronous guest resource reads
//	├── transport/      File and HTTP fetchers
//	├── config/         Defaults, YAML file and environment configuration
//	├── metrics/        Prometheus collectors
//	├── errors/         Structured error types
//	└── cmd/run/        Command line runner with an interactive dashboard
//
// # Quick Start
//
//	cfg := config.Default()
//	rt, err := runtime.New(ctx, cfg, runtime.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(context.Background())
//
//	// Blocks until ctx is cancelled.
//	if err := rt.Run(ctx, "game.wasm", "main"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Guest ABI
//
// Guests import from the "env" module:
//
//	logConsole(msgPtr, msgLen i32)
//	readFile(namePtr, nameLen, destPtr, destLen i32)
//	setCanUpdate(enabled i32)
//	hostVersion() i32
//
// and export:
//
//	init(handle i32)
//	update()
//	readFileComplete(success i32)
//	memory
//
// # Thread Safety
//
// All guest calls, registry mutations and guest memory accesses happen on the
// single goroutine running the scheduler loop. Work from other goroutines is
// marshalled onto it with Loop.Post or Loop.Call.
//
// # Memory Model
//
// Guest memory can grow during any guest call. Views returned by the memview
// package alias the current buffer and must not be kept across guest calls.
package framehost
