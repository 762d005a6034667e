// Package memview provides views over guest linear memory addressed by
// (handle, pointer, length).
//
// Every accessor resolves the handle through the registry and reads the
// guest's current memory. Returned byte slices alias guest memory; they are
// invalidated by any guest call that grows memory and must not be cached.
package memview
