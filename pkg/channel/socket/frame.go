// Package socket provides a TCP-framed channel.Adapter that stands in
// for camera/QR hardware during integration testing and local
// development. It carries exactly one JSON envelope per frame, one
// frame per display event — the socket equivalent of "render one QR
// image".
package socket

import (
	"encoding/binary"
	"io"
)

// HeaderSize is the fixed-size frame header: [Length (4 bytes)]. A
// channel socket only ever carries one kind of payload, so there's no
// type byte to distinguish.
const HeaderSize = 4

func writeFrame(w io.Writer, payload []byte) error {
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header)
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
