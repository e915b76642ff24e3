// Package textutil provides small text helpers used when normalizing mail
// bodies and deriving item identifiers.
//
// The primary use cases are:
//   - Stripping a string down to its ASCII letters and digits
//   - Collapsing runs of whitespace into single spaces or blank-line paragraphs
//   - Truncating text to a rune budget without splitting a UTF-8 sequence
package textutil
