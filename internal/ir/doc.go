// Package ir provides the typed values that flow between entity fields,
// query terms and result rows.
//
// This package imports nothing internal. Every other package that needs a
// field or literal value imports ir, which keeps values comparable across the
// SPARQL and SQLite backends.
//
// Key design constraints:
//   - NO float types (use int64 for numbers); literals round-trip exactly
//   - Strings are NFC normalized at the canonical JSON boundary
//   - Object keys serialize in RFC 8785 order for stable ToJSON output
package ir
