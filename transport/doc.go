// Package transport fetches guest images and guest-requested resources.
//
// A Fetcher turns a location into bytes. File reads the local filesystem,
// HTTP uses a retrying client, and Mux picks one by URL scheme. Resolve
// joins a guest-supplied resource name onto a base location and refuses
// names that would escape it.
package transport
