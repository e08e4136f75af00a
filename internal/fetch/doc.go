// Package fetch downloads release artifacts over HTTP: individual updatable
// files, the full install bundle, and the in-memory release manifest.
//
// Transfers are single-attempt with a mandatory timeout, and land through a
// temporary path so the destination is never observed half-written.
package fetch
