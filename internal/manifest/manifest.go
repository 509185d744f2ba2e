// Package manifest loads CUE deployment manifests and checks the protocol
// constants they declare against the compiled-in seal.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/seal"
)

// Error code constants for manifest loading.
const (
	ErrCodeNotFound = "E001" // Manifest path not found
	ErrCodeBuild    = "E002" // CUE load or build failed
	ErrCodeField    = "E003" // Missing or mistyped manifest field
)

// LoadError represents an error that occurred during manifest loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Manifest is a deployment manifest: the protocol constants a deployment
// declares it was built against.
type Manifest struct {
	Path string
	Seal seal.Seal
}

// Load reads a manifest from a CUE file, or from a directory of CUE files.
func Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing manifest: %v", err)}
	}

	// Directories are loaded by their .cue files explicitly, so a manifest
	// directory does not need a cue.mod module root.
	cfg := &load.Config{Dir: filepath.Dir(path)}
	args := []string{filepath.Base(path)}
	if info.IsDir() {
		cfg.Dir = path
		matches, err := filepath.Glob(filepath.Join(path, "*.cue"))
		if err != nil || len(matches) == 0 {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no .cue files in %s", path)}
		}
		args = args[:0]
		for _, m := range matches {
			args = append(args, filepath.Base(m))
		}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeBuild, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, buildError(inst.Err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, buildError(err)
	}

	declared, err := CompileSeal(value)
	if err != nil {
		return nil, err
	}

	return &Manifest{Path: path, Seal: declared}, nil
}

// CompileSeal extracts the declared seal from a built CUE value.
//
// The value must contain a protocol block:
//
//	protocol: {
//		id:       "TCC_PATCH_V7_3_EXODUS_PROTOCOL_HARDENED"
//		law:      60106
//		constant: 6174
//		syzygy:   "👸🏻🤝🤴🏻"
//	}
func CompileSeal(v cue.Value) (seal.Seal, error) {
	protocolVal := v.LookupPath(cue.ParsePath("protocol"))
	if !protocolVal.Exists() {
		return seal.Seal{}, &LoadError{
			Code:    ErrCodeField,
			Message: "protocol block is required",
			Pos:     v.Pos(),
		}
	}

	var declared seal.Seal
	var err error

	if declared.ProtocolID, err = stringField(protocolVal, "id"); err != nil {
		return seal.Seal{}, err
	}
	if declared.Law, err = intField(protocolVal, "law"); err != nil {
		return seal.Seal{}, err
	}
	if declared.Constant, err = intField(protocolVal, "constant"); err != nil {
		return seal.Seal{}, err
	}
	if declared.Syzygy, err = stringField(protocolVal, "syzygy"); err != nil {
		return seal.Seal{}, err
	}

	return declared, nil
}

// Verify compares the declared constants against the compiled-in seal.
// The first mismatched field is reported as an integrity violation.
func (m *Manifest) Verify() error {
	canonical := seal.Canonical()

	if m.Seal.ProtocolID != canonical.ProtocolID {
		return kernel.NewIntegrityError("manifest protocol id", canonical.ProtocolID, m.Seal.ProtocolID)
	}
	if m.Seal.Law != canonical.Law {
		return kernel.NewIntegrityError("manifest law",
			strconv.FormatInt(canonical.Law, 10), strconv.FormatInt(m.Seal.Law, 10))
	}
	if m.Seal.Constant != canonical.Constant {
		return kernel.NewIntegrityError("manifest constant",
			strconv.FormatInt(canonical.Constant, 10), strconv.FormatInt(m.Seal.Constant, 10))
	}
	if norm.NFC.String(m.Seal.Syzygy) != norm.NFC.String(canonical.Syzygy) {
		return kernel.NewIntegrityError("manifest syzygy", canonical.Syzygy, m.Seal.Syzygy)
	}

	return nil
}

// stringField extracts a required string field from the protocol block.
func stringField(v cue.Value, name string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(name))
	if !fieldVal.Exists() {
		return "", &LoadError{
			Code:    ErrCodeField,
			Message: fmt.Sprintf("protocol.%s is required", name),
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", &LoadError{
			Code:    ErrCodeField,
			Message: fmt.Sprintf("protocol.%s must be a string: %v", name, err),
			Pos:     fieldVal.Pos(),
		}
	}
	return s, nil
}

// intField extracts a required integer field from the protocol block.
func intField(v cue.Value, name string) (int64, error) {
	fieldVal := v.LookupPath(cue.ParsePath(name))
	if !fieldVal.Exists() {
		return 0, &LoadError{
			Code:    ErrCodeField,
			Message: fmt.Sprintf("protocol.%s is required", name),
			Pos:     v.Pos(),
		}
	}
	n, err := fieldVal.Int64()
	if err != nil {
		return 0, &LoadError{
			Code:    ErrCodeField,
			Message: fmt.Sprintf("protocol.%s must be an integer: %v", name, err),
			Pos:     fieldVal.Pos(),
		}
	}
	return n, nil
}

// buildError extracts position info from CUE errors.
func buildError(err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) > 0 {
		positions := cueerrors.Positions(errs[0])
		if len(positions) > 0 {
			return &LoadError{Code: ErrCodeBuild, Message: errs[0].Error(), Pos: positions[0]}
		}
		return &LoadError{Code: ErrCodeBuild, Message: errs[0].Error()}
	}
	return &LoadError{Code: ErrCodeBuild, Message: err.Error()}
}
