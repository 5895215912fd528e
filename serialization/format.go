// Package serialization implements the .model checkpoint file format.
//
// A .model file holds a parameter set (state dict) only: no optimizer or
// scheduler state. Layout:
//
//	0x00  magic "FLSM" (4 bytes)
//	0x04  format version (uint32 LE)
//	0x08  flags (uint32 LE)
//	0x0C  reserved
//	0x10  JSON header size (uint64 LE)
//	0x18  tensor data size (uint64 LE)
//	0x20  SHA-256 checksum of tensor data (32 bytes)
//	0x40  JSON header, then padding to a 64-byte boundary, then tensor data
package serialization

import (
	"time"

	"github.com/robustfl/flsim/tensor"
)

// Format constants.
const (
	MagicBytes      = "FLSM"
	FormatVersion   = 1
	HeaderAlignment = 64 // align tensor data to 64 bytes
	FixedHeaderSize = 64
	ChecksumSize    = 32 // SHA-256
	ChecksumOffset  = 0x20
)

// Flags for the .model format.
const (
	FlagHasMetadata uint32 = 1 << 0 // custom metadata included
)

// Header is the JSON header in a .model file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	FlsimVersion  string            `json:"flsim_version"`
	ModelType     string            `json:"model_type"`
	Device        string            `json:"device"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
}

// TensorMeta describes a tensor in the .model file.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from start of tensor data section
	Size   int64  `json:"size"`   // bytes
}

// dtypeToString converts tensor.DataType to its serialized name.
func dtypeToString(dt tensor.DataType) string {
	return dt.String()
}

// stringToDtype converts a serialized name back to tensor.DataType.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case "float32":
		return tensor.Float32, true
	case "int32":
		return tensor.Int32, true
	case "int64":
		return tensor.Int64, true
	default:
		return 0, false
	}
}
