// Package ir provides the shared data types of doccore: prop values, the
// flat document produced by loaders, and reference paths.
//
// This package contains type definitions and their encodings only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Prop values are the closed set Null, String, Int, Number, Bool, Array, Object
//   - Nodes are addressed by index; node 0 is the document root
//   - Canonical JSON (RFC 8785) is the only encoding used for hashing
package ir
