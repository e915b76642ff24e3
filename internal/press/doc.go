// Package press defines the durable press item record, its identity rule and
// the bounded newest-first merge applied to the item history.
//
// Identity is a pure function of channel, title and air date (see DeriveID).
// Two distinct programmes whose titles differ only in punctuation or
// non-ASCII letters collapse to the same identifier; the first one stored wins.
package press
