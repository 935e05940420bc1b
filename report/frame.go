package report

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
)

// MaxFrameSize bounds the length a Framer accepts when reading.
var MaxFrameSize = 64 << 20

// A Framer reads and writes framed protocol buffers. The structure of the frame
// is trivial: proto-length | proto, with the length a little-endian int32.
type Framer struct {
	rw io.ReadWriter
}

// NewFramer returns a Framer over rw.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{rw: rw}
}

// Write appends one frame holding m.
func (f *Framer) Write(m proto.Message) error {
	marshalled, err := proto.Marshal(m)
	if err != nil {
		return err
	}
	if len(marshalled) > MaxFrameSize {
		return fmt.Errorf("message of %d bytes exceeds frame limit %d", len(marshalled), MaxFrameSize)
	}
	if err := binary.Write(f.rw, binary.LittleEndian, int32(len(marshalled))); err != nil {
		return err
	}
	if _, err := f.rw.Write(marshalled); err != nil {
		return err
	}
	return nil
}

// Read reads the next frame into m. It returns io.EOF, unwrapped, if the
// stream ends cleanly before a frame starts.
func (f *Framer) Read(m proto.Message) error {
	var mLen int32
	if err := binary.Read(f.rw, binary.LittleEndian, &mLen); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("reading frame length: %w", err)
	}
	if mLen < 0 || int(mLen) > MaxFrameSize {
		return fmt.Errorf("frame length %d out of range", mLen)
	}
	marshalled := make([]byte, mLen)
	if _, err := io.ReadFull(f.rw, marshalled); err != nil {
		return fmt.Errorf("reading frame body: %w", err)
	}
	return proto.Unmarshal(marshalled, m)
}
