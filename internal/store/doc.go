// Package store persists the press item history as a pretty-printed JSON
// array and guards mutation with an advisory file lock.
//
// A missing file is an empty history. A file that cannot be decoded is also
// treated as empty; its bytes are copied aside to <path>.corrupt before the
// next save overwrites it.
package store
