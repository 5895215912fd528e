package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/robustfl/flsim/nn"
	"github.com/robustfl/flsim/tensor"
)

const flsimVersion = "0.3.0"

// ModelWriter writes parameter sets in .model format.
type ModelWriter struct {
	file   *os.File
	closed bool
}

// NewModelWriter creates a new .model file writer.
func NewModelWriter(path string) (*ModelWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &ModelWriter{file: file}, nil
}

// WriteStateDict writes a state dict to the .model file.
//
// Tensors are written in the state dict's insertion order; the recorded
// device is that of the first tensor (all tensors in one parameter set live
// on one device).
func (w *ModelWriter) WriteStateDict(sd *nn.StateDict, modelType string, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	header := Header{
		FormatVersion: FormatVersion,
		FlsimVersion:  flsimVersion,
		ModelType:     modelType,
		Device:        tensor.CPU.String(),
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, sd.Len()),
		Metadata:      metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Tensor index and concatenated data buffer for the checksum.
	var currentOffset int64
	var dataBuf []byte
	for i, name := range sd.Keys() {
		raw, _ := sd.Get(name)
		if i == 0 {
			header.Device = raw.Device().String()
		}
		size := int64(len(raw.Data()))

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape()),
			Offset: currentOffset,
			Size:   size,
		})
		currentOffset += size
		dataBuf = append(dataBuf, raw.Data()...)
	}

	checksum := ComputeChecksum(dataBuf)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// Fixed 64-byte header.
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(dataBuf)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.file.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	// Pad tensor data to the alignment boundary.
	currentPos := int64(FixedHeaderSize) + int64(len(headerJSON))
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		if _, err := w.file.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.file.Write(dataBuf); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// Close closes the writer and the underlying file.
func (w *ModelWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// SaveStateDict writes a state dict to path in .model format.
func SaveStateDict(path string, sd *nn.StateDict, modelType string, metadata map[string]string) error {
	writer, err := NewModelWriter(path)
	if err != nil {
		return err
	}
	if err := writer.WriteStateDict(sd, modelType, metadata); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
