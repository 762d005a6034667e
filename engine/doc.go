// Package engine binds the host to wazero.
//
// A WazeroEngine owns one wazero runtime. Guests are compiled once per
// distinct image (keyed by SHA-256) and instantiated against a single host
// module named "env" that carries the core imports plus any registered
// ImportGroups.
//
// # Instantiation Flow
//
//  1. NewWazeroEngine() creates the runtime and binds the core imports to an Imports value
//  2. Register() adds optional import groups; duplicates are rejected
//  3. Instantiate() compiles, runs CheckExports, builds the env module on first use,
//     and instantiates the guest without running its start function
//  4. The returned framehost.Exports is used to call init, update and readFileComplete
//
// # Guest Exports
//
//	init             (i32) -> ()   required
//	update           () -> ()      required
//	readFileComplete (i32) -> ()   optional
//	memory                         required
//
// CheckExports reports every mismatch at once as an *errors.SignatureError.
//
// # Calling Context
//
// wazero passes the ctx of an export call to every host function reached
// from it. Callers put per-guest values (such as the guest's handle) in that
// ctx and Imports implementations read them back.
package engine
