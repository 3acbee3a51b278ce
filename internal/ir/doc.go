// Package ir defines the value model for attribute contents.
//
// Attribute values are restricted to a small sealed set of types so that the
// same write always produces the same bytes on disk and in golden traces:
//
//   - Null, String, Int, Bool
//   - List (ordered) and Map (string keys)
//
// Key design constraints:
//   - NO float types. Integral floats coming from JSON decoding are folded
//     into Int; anything with a fractional part is rejected.
//   - Map keys are emitted in RFC 8785 order (UTF-16 code units).
//   - Strings are NFC normalized when serialized.
//
// This package imports nothing internal.
package ir
