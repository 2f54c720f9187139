// Package archive provides the sequential, versioned byte stream that
// serializable functions are saved to and loaded from.
//
// An archive is a sequence of CBOR data items written one after another. The
// archive itself carries no framing or type information: readers must consume
// fields in the exact order writers produced them, and the version number that
// accompanies a save is passed through to the payload unchanged.
package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// DefaultVersion is the version used by the encoding.BinaryMarshaler helpers.
const DefaultVersion uint32 = 0

// ErrTruncated is returned when the stream ends before a field was read.
var ErrTruncated = errors.New("archive: truncated stream")

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("archive: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("archive: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Output writes fields to an underlying writer.
type Output struct {
	enc *cbor.Encoder
}

// NewOutput returns an Output writing to w.
func NewOutput(w io.Writer) *Output {
	return &Output{enc: encMode.NewEncoder(w)}
}

// Write appends v as the next field.
func (o *Output) Write(v any) error {
	if err := o.enc.Encode(v); err != nil {
		return fmt.Errorf("archive: write %T: %w", v, err)
	}
	return nil
}

func (o *Output) WriteBool(b bool) error     { return o.Write(b) }
func (o *Output) WriteString(s string) error { return o.Write(s) }
func (o *Output) WriteUint(u uint64) error   { return o.Write(u) }

// Input reads fields from an underlying reader.
type Input struct {
	dec *cbor.Decoder
}

// NewInput returns an Input reading from r.
func NewInput(r io.Reader) *Input {
	return &Input{dec: decMode.NewDecoder(r)}
}

// Read decodes the next field into v, which must be a pointer.
func (in *Input) Read(v any) error {
	if err := in.dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: reading %T", ErrTruncated, v)
		}
		return fmt.Errorf("archive: read %T: %w", v, err)
	}
	return nil
}

func (in *Input) ReadBool() (b bool, err error) {
	err = in.Read(&b)
	return
}

func (in *Input) ReadString() (s string, err error) {
	err = in.Read(&s)
	return
}

func (in *Input) ReadUint() (u uint64, err error) {
	err = in.Read(&u)
	return
}
