// Package guard serializes installer and updater runs against a single
// install root through an on-disk marker, with stale-marker recovery.
package guard
