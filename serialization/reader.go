package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/robustfl/flsim/nn"
	"github.com/robustfl/flsim/tensor"
)

// maxHeaderSize bounds the JSON header to reject corrupt files early.
const maxHeaderSize = 100 * 1024 * 1024

// ReaderOptions configures ModelReader behavior.
type ReaderOptions struct {
	// SkipChecksumValidation skips SHA-256 validation of tensor data.
	SkipChecksumValidation bool

	// MapToCPU accepts files whose tensors were saved for a non-CPU device
	// and remaps them to CPU on load. Without it such files fail with
	// ErrDeviceMismatch.
	MapToCPU bool
}

// ModelReader reads parameter sets from .model files.
type ModelReader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	opts       ReaderOptions
	closed     bool
}

// NewModelReader creates a .model reader with default (strict) options.
func NewModelReader(path string) (*ModelReader, error) {
	return NewModelReaderWithOptions(path, ReaderOptions{})
}

// NewModelReaderWithOptions creates a .model reader with custom options.
func NewModelReaderWithOptions(path string, opts ReaderOptions) (*ModelReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &ModelReader{file: file, opts: opts}
	if err := r.parseHeader(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return r, nil
}

func (r *ModelReader) parseHeader() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}

	if string(fixed[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	r.flags = binary.LittleEndian.Uint32(fixed[8:12])

	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	if headerSize > maxHeaderSize {
		return ErrHeaderTooLarge
	}
	r.dataSize = int64(binary.LittleEndian.Uint64(fixed[24:32]))
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	r.dataOffset = currentPos + padding

	if !r.opts.SkipChecksumValidation {
		tensorData := make([]byte, r.dataSize)
		if _, err := r.file.Seek(r.dataOffset, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to tensor data: %w", err)
		}
		if _, err := io.ReadFull(r.file, tensorData); err != nil {
			return fmt.Errorf("failed to read tensor data for checksum: %w", err)
		}
		if err := ValidateChecksum(ComputeChecksum(tensorData), r.checksum); err != nil {
			return err
		}
	}
	return nil
}

// Header returns the parsed file header.
func (r *ModelReader) Header() Header {
	return r.header
}

// TensorNames returns the names of all tensors in the file, in file order.
func (r *ModelReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// device resolves the device tensors should be materialized on, applying the
// MapToCPU option against the device recorded in the header.
func (r *ModelReader) device() (tensor.Device, error) {
	dev, ok := tensor.ParseDevice(r.header.Device)
	if !ok {
		return tensor.CPU, fmt.Errorf("unknown device %q in header", r.header.Device)
	}
	if dev != tensor.CPU {
		if !r.opts.MapToCPU {
			return tensor.CPU, fmt.Errorf("%w: file holds %s tensors", ErrDeviceMismatch, dev)
		}
		dev = tensor.CPU
	}
	return dev, nil
}

// ReadStateDict reads all tensors into a state dict, preserving file order.
func (r *ModelReader) ReadStateDict() (*nn.StateDict, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	dev, err := r.device()
	if err != nil {
		return nil, err
	}

	sd := nn.NewStateDict()
	for _, meta := range r.header.Tensors {
		dtype, ok := stringToDtype(meta.DType)
		if !ok {
			return nil, fmt.Errorf("tensor %s: unsupported dtype %q", meta.Name, meta.DType)
		}
		shape := tensor.Shape(meta.Shape)
		if err := shape.Validate(); err != nil {
			return nil, fmt.Errorf("tensor %s: invalid shape: %w", meta.Name, err)
		}
		if meta.Size != int64(shape.NumElements()*dtype.Size()) {
			return nil, fmt.Errorf("tensor %s: size %d does not match shape %v", meta.Name, meta.Size, shape)
		}

		if _, err := r.file.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("tensor %s: failed to seek: %w", meta.Name, err)
		}
		raw, err := tensor.NewRaw(shape, dtype, dev)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		if _, err := io.ReadFull(r.file, raw.Data()); err != nil {
			return nil, fmt.Errorf("tensor %s: failed to read data: %w", meta.Name, err)
		}
		sd.Set(meta.Name, raw)
	}
	return sd, nil
}

// Close closes the reader and the underlying file.
func (r *ModelReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// LoadStateDict reads the parameter set from a .model file, rejecting files
// whose tensors were saved for a non-CPU device.
func LoadStateDict(path string) (*nn.StateDict, error) {
	return loadStateDict(path, ReaderOptions{})
}

// LoadStateDictMapped reads the parameter set from a .model file, remapping
// tensors saved for a non-CPU device to CPU. Used as the retry path when a
// strict load fails with ErrDeviceMismatch.
func LoadStateDictMapped(path string) (*nn.StateDict, error) {
	return loadStateDict(path, ReaderOptions{MapToCPU: true})
}

func loadStateDict(path string, opts ReaderOptions) (*nn.StateDict, error) {
	reader, err := NewModelReaderWithOptions(path, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	return reader.ReadStateDict()
}
