// Package release resolves the newest published release tag from the remote
// release index and composes the download URLs derived from it.
//
// Only the tag field of the index response is consumed; the rest of the
// payload is treated as opaque so unrelated format changes stay harmless.
package release
