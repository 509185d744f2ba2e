// Package kernel implements the phase-locked transition sequencer at the
// core of the exodus protocol.
//
// The protocol is four operations over a small one-way state record:
//
//  1. detach    - phase: initial -> intermediate
//  2. rewrite   - rewrite: pending -> done
//  3. elevate   - payload: base -> elevated
//  4. stabilize - stable: true, phase: intermediate -> final
//
// Exactly one call order reaches the terminal state. Every deviation,
// including calling any operation a second time, fails closed with a
// typed ProtocolError and zero state mutation.
//
// GUARD ORDER:
//
// Each operation runs three checks in a fixed order before mutating:
//
//  1. Integrity check: the kernel's seal copy must equal the canonical
//     seal (NFC-aware), every state field must be inside its value
//     space, and the step cursor must be in range. A violation is
//     INTEGRITY_VIOLATION and is permanent - no later call can succeed.
//  2. State-field guard: the operation's own precondition. detach and
//     rewrite guard on phase (PHASE_ORDER_VIOLATION); elevate and
//     stabilize guard on rewrite/payload (PRECONDITION_FAILED).
//  3. Cursor check: position k requires exactly k-1 prior applications
//     (PHASE_ORDER_VIOLATION). The cursor is what makes repeats of the
//     later operations fail after their one-way fields have flipped.
//
// DETERMINISM:
//
// The step cursor is the only clock. Transitions are stamped with the
// cursor value, never wall-clock time, so a journaled run re-applies to
// an identical kernel byte for byte. The fingerprint line commits the
// seal constants and the full state at every step.
package kernel
