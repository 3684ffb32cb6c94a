package epp

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/suite"
)

type FrameSuite struct {
	suite.Suite
}

func TestFrameSuite(t *testing.T) {
	suite.Run(t, new(FrameSuite))
}

func (s *FrameSuite) TestRoundTrip() {
	var buf bytes.Buffer
	payload := []byte(`<epp><hello/></epp>`)
	s.Require().NoError(WriteFrame(&buf, payload))

	s.Run("header carries the total length", func() {
		s.EqualValues(len(payload)+4, binary.BigEndian.Uint32(buf.Bytes()[:4]))
	})

	got, err := ReadFrame(&buf)
	s.Require().NoError(err)
	s.Equal(payload, got)
}

func (s *FrameSuite) TestMultipleFrames() {
	var buf bytes.Buffer
	s.Require().NoError(WriteFrame(&buf, []byte("one")))
	s.Require().NoError(WriteFrame(&buf, []byte("two")))

	first, err := ReadFrame(&buf)
	s.Require().NoError(err)
	s.Equal([]byte("one"), first)

	second, err := ReadFrame(&buf)
	s.Require().NoError(err)
	s.Equal([]byte("two"), second)

	_, err = ReadFrame(&buf)
	s.ErrorIs(err, io.EOF)
}

func (s *FrameSuite) TestEmptyPayload() {
	var buf bytes.Buffer
	s.Require().NoError(WriteFrame(&buf, nil))
	got, err := ReadFrame(&buf)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *FrameSuite) TestLengthViolations() {
	frame := func(total uint32, payload []byte) io.Reader {
		var buf bytes.Buffer
		var header [4]byte
		binary.BigEndian.PutUint32(header[:], total)
		buf.Write(header[:])
		buf.Write(payload)
		return &buf
	}

	s.Run("length shorter than the header", func() {
		_, err := ReadFrame(frame(3, nil))
		s.Error(err)
	})

	s.Run("length above the maximum", func() {
		_, err := ReadFrame(frame(MaxFrameLen+1, nil))
		s.Error(err)
	})

	s.Run("truncated payload", func() {
		_, err := ReadFrame(frame(100, []byte("short")))
		s.ErrorIs(err, io.ErrUnexpectedEOF)
	})

	s.Run("truncated header", func() {
		_, err := ReadFrame(bytes.NewReader([]byte{0, 0}))
		s.ErrorIs(err, io.ErrUnexpectedEOF)
	})
}
