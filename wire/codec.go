package wire

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-msgpack/codec"
)

// Delimiter terminates every frame on the byte stream.
const Delimiter byte = '#'

var (
	ErrEmptyFrame  = errors.New("wire: empty frame")
	ErrUnknownKind = errors.New("wire: unknown message kind")
)

var msgpackHandle = &codec.MsgpackHandle{}

// Encode returns the framed form of m: base64(tag || msgpack body) followed
// by the delimiter.
func Encode(m Message) ([]byte, error) {
	var body []byte
	if err := codec.NewEncoderBytes(&body, msgpackHandle).Encode(m); err != nil {
		return nil, fmt.Errorf("wire: encode %v: %w", m.Kind(), err)
	}
	raw := make([]byte, 0, len(body)+1)
	raw = append(raw, byte(m.Kind()))
	raw = append(raw, body...)

	frame := make([]byte, base64.StdEncoding.EncodedLen(len(raw))+1)
	base64.StdEncoding.Encode(frame, raw)
	frame[len(frame)-1] = Delimiter
	return frame, nil
}

// Decode parses one frame without its delimiter.
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(frame)))
	n, err := base64.StdEncoding.Decode(raw, frame)
	if err != nil {
		return nil, fmt.Errorf("wire: bad armor: %w", err)
	}
	raw = raw[:n]
	if len(raw) == 0 {
		return nil, ErrEmptyFrame
	}
	kind := Kind(raw[0])
	t, ok := reflectedTypesMap[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	msg := reflect.New(t)
	if err := codec.NewDecoderBytes(raw[1:], msgpackHandle).Decode(msg.Interface()); err != nil {
		return nil, fmt.Errorf("wire: decode %v: %w", kind, err)
	}
	return msg.Interface().(Message), nil
}

// Stream reassembles frames from the bytes received from one peer.
type Stream struct {
	buf []byte
}

// Feed appends p to the buffer and decodes every complete frame in it. Frames
// that fail to decode are skipped and reported through the joined error; the
// remaining bytes stay buffered until their delimiter arrives.
func (s *Stream) Feed(p []byte) ([]Message, error) {
	s.buf = append(s.buf, p...)
	var (
		msgs []Message
		errs []error
	)
	for {
		i := bytes.IndexByte(s.buf, Delimiter)
		if i < 0 {
			break
		}
		frame := s.buf[:i]
		s.buf = s.buf[i+1:]
		if len(frame) == 0 {
			continue
		}
		msg, err := Decode(frame)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return msgs, errors.Join(errs...)
}

// Buffered returns the number of bytes waiting for a delimiter.
func (s *Stream) Buffered() int {
	return len(s.buf)
}
