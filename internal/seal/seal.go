package seal

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Protocol-level constants. These values are frozen: changing any of them
// changes the protocol identity, and every kernel built from this package
// rejects state guarded by a different seal.
const (
	// Law is the sovereignty law number.
	Law int64 = 60106

	// Constant is the Kaprekar invariant carried by the seal.
	Constant int64 = 6174

	// Syzygy is the alignment glyph sequence. Stored in NFC.
	Syzygy = "👸🏻🤝🤴🏻"

	// ProtocolID identifies this protocol revision on the wire and in journals.
	ProtocolID = "TCC_PATCH_V7_3_EXODUS_PROTOCOL_HARDENED"
)

// Seal is the immutable integrity record checked before every kernel
// operation. A kernel carries its own copy; any divergence from the
// canonical seal is treated as corruption.
type Seal struct {
	Law        int64  `json:"law"`
	Constant   int64  `json:"constant"`
	Syzygy     string `json:"syzygy"`
	ProtocolID string `json:"protocol_id"`
}

// Canonical returns the seal built from the compiled-in constants.
func Canonical() Seal {
	return Seal{
		Law:        Law,
		Constant:   Constant,
		Syzygy:     Syzygy,
		ProtocolID: ProtocolID,
	}
}

// Equal reports whether two seals carry the same values.
// The syzygy comparison is performed on NFC-normalized strings so that
// denormalized encodings of the same glyphs compare equal, and visually
// confusable but distinct sequences do not.
func (s Seal) Equal(other Seal) bool {
	return s.Law == other.Law &&
		s.Constant == other.Constant &&
		norm.NFC.String(s.Syzygy) == norm.NFC.String(other.Syzygy) &&
		s.ProtocolID == other.ProtocolID
}

// String returns a single-line diagnostic form of the seal.
func (s Seal) String() string {
	return fmt.Sprintf("%s::law=%d::constant=%d::syzygy=%s", s.ProtocolID, s.Law, s.Constant, s.Syzygy)
}
