// Package registry provides the handle registry that tracks live guest instances.
//
// A Table maps opaque integer handles to host-side records:
//
//	table := registry.NewTable[*Instance]()
//
//	h := table.Insert(inst)     // first insert returns 0
//	inst, err := table.Get(h)   // errors.ErrInvalidHandle if absent or removed
//	_, err = table.Remove(h)    // h is never issued again
//
// Handles never wrap: once all 2^32 have been issued, TryInsert returns
// ErrExhausted and Insert panics.
//
// Iteration follows insertion order and works on a snapshot, so walking the
// table never observes a half-applied mutation:
//
//	for h, inst := range table.All() {
//	    ...
//	}
//
// # Observers
//
// Observers receive EventInserted and EventRemoved notifications synchronously
// after the table has been updated. The metrics package uses this to track the
// number of registered guests.
package registry
