package hdrbridge

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// HasGainMap reports whether r holds a JPEG followed by a gain map image that carries
// ISO 21496-1 or hdrgm XMP metadata. It streams the input and stops at the gain map header.
func HasGainMap(r io.Reader) (bool, error) {
	s := &markerStream{br: bufio.NewReader(r)}
	if found, err := s.nextSOI(); !found || err != nil {
		return false, err
	}
	if err := s.skipImage(); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	if found, err := s.nextSOI(); !found || err != nil {
		return false, err
	}
	ok, err := s.gainMapHeader()
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false, nil
	}
	return ok, err
}

type markerStream struct {
	br *bufio.Reader
}

func (s *markerStream) nextSOI() (bool, error) {
	var prev byte
	for {
		b, err := s.br.ReadByte()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if prev == markerStart && b == markerSOI {
			return true, nil
		}
		prev = b
	}
}

func (s *markerStream) marker() (byte, error) {
	for {
		b, err := s.br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != markerStart {
			continue
		}
		for {
			m, err := s.br.ReadByte()
			if err != nil {
				return 0, err
			}
			if m != markerStart {
				return m, nil
			}
		}
	}
}

func (s *markerStream) segmentLength() (int, error) {
	var l [2]byte
	if _, err := io.ReadFull(s.br, l[:]); err != nil {
		return 0, err
	}
	n := int(binary.BigEndian.Uint16(l[:]))
	if n < 2 {
		return 0, decodeErrorf("invalid segment length %d", n)
	}
	return n - 2, nil
}

func (s *markerStream) discard(n int) error {
	_, err := s.br.Discard(n)
	return err
}

// skipImage consumes the current image up to and including EOI.
func (s *markerStream) skipImage() error {
	for {
		m, err := s.marker()
		if err != nil {
			return err
		}
		switch {
		case m == markerEOI:
			return nil
		case isStandalone(m), m == 0x00:
			continue
		}
		n, err := s.segmentLength()
		if err != nil {
			return err
		}
		// After SOS, stuffed bytes and RSTn in entropy-coded data come back as 0x00 or standalone markers.
		if err := s.discard(n); err != nil {
			return err
		}
	}
}

func (s *markerStream) gainMapHeader() (bool, error) {
	for {
		m, err := s.marker()
		if err != nil {
			return false, err
		}
		if m == markerSOS || m == markerEOI {
			return false, nil
		}
		if isStandalone(m) {
			continue
		}
		n, err := s.segmentLength()
		if err != nil {
			return false, err
		}
		if m != markerAPP1 && m != markerAPP2 {
			if err := s.discard(n); err != nil {
				return false, err
			}
			continue
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(s.br, payload); err != nil {
			return false, err
		}
		if m == markerAPP2 && bytes.HasPrefix(payload, isoPrefix) {
			return true, nil
		}
		if m == markerAPP1 && bytes.HasPrefix(payload, xmpPrefix) && bytes.Contains(payload, []byte("hdrgm:")) {
			return true, nil
		}
	}
}
