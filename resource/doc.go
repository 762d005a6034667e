// Package resource services guest-initiated resource reads.
//
// A guest calls the readFile import with a resource name and a destination
// region in its own memory. The Bridge resolves the name against a base
// location, fetches it on a separate goroutine, and posts the settlement
// back to the control goroutine. Settlement copies the bytes into guest
// memory and calls the guest's readFileComplete export exactly once:
//
//	fetch failed            readFileComplete(0), nothing written
//	content > region        readFileComplete(0), nothing written
//	otherwise               N bytes written at region.Ptr, readFileComplete(1)
//
// Only the first N bytes of the region are written; the rest is left as is.
// At most one read should be outstanding per destination region; the bridge
// does not detect overlapping requests.
package resource
