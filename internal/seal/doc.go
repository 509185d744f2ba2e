// Package seal defines the frozen protocol constants and the Seal record
// that guards every kernel operation.
//
// This package is the foundational layer: all other internal packages may
// import seal; seal imports nothing internal.
//
// Key design constraints:
//   - The canonical constants are compile-time values and never change at runtime
//   - Seal comparison is NFC-aware: the syzygy glyph sequence is normalized
//     before comparison so byte-level denormalization cannot pass as canonical
//   - No hashing or signatures; a seal check is a plain value comparison
package seal
