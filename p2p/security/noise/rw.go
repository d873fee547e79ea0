package noise

import (
	"encoding/binary"
	"fmt"
	"io"

	pool "github.com/libp2p/go-buffer-pool"
)

// LengthPrefixLength is the length, in bytes, of the length prefix that
// precedes every noise handshake and transport message on the wire.
const LengthPrefixLength = 2

// MaxTransportMsgLength is the maximum size, in bytes, of a noise transport
// message, authentication tag included and length prefix excluded. It's
// bounded by the two-byte length prefix's range.
const MaxTransportMsgLength = 0xffff

// MaxPlaintextLength is the maximum amount of plaintext that fits in a
// single transport message once the Poly1305 authentication tag is
// accounted for.
const MaxPlaintextLength = MaxTransportMsgLength - poly1305TagSize

const poly1305TagSize = 16

func (s *secureSession) readNextInsecureMsgLen() (int, error) {
	_, err := io.ReadFull(s.insecureReader, s.rlen[:])
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(s.rlen[:])), nil
}

func (s *secureSession) readNextMsgInsecure(buf []byte) error {
	_, err := io.ReadFull(s.insecureReader, buf)
	return err
}

func (s *secureSession) writeMsgInsecure(data []byte) (int, error) {
	return s.insecureConn.Write(data)
}

// Read reads decrypted application data, buffering any excess output from
// the last decrypted transport message for the next call.
func (s *secureSession) Read(buf []byte) (int, error) {
	s.readLock.Lock()
	defer s.readLock.Unlock()

	if s.qseek < len(s.qbuf) {
		n := copy(buf, s.qbuf[s.qseek:])
		s.qseek += n
		return n, nil
	}

	l, err := s.readNextInsecureMsgLen()
	if err != nil {
		return 0, err
	}

	cbuf := pool.Get(l)
	defer pool.Put(cbuf)
	if err := s.readNextMsgInsecure(cbuf); err != nil {
		return 0, err
	}

	if len(buf) >= len(cbuf) {
		// fast path: decrypt directly into the caller's buffer.
		out, err := s.dec.Decrypt(buf[:0], nil, cbuf)
		if err != nil {
			return 0, fmt.Errorf("noise: decryption failed: %w", err)
		}
		return len(out), nil
	}

	s.qbuf = growBuffer(s.qbuf, len(cbuf))
	out, err := s.dec.Decrypt(s.qbuf[:0], nil, cbuf)
	if err != nil {
		return 0, fmt.Errorf("noise: decryption failed: %w", err)
	}
	s.qbuf = out
	s.qseek = copy(buf, s.qbuf)
	return s.qseek, nil
}

func growBuffer(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:0]
	}
	return make([]byte, 0, n)
}

// Write encrypts and frames application data, splitting it across multiple
// transport messages if it exceeds MaxPlaintextLength.
func (s *secureSession) Write(data []byte) (int, error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	written := 0
	for len(data) > 0 {
		chunk := data
		if len(chunk) > MaxPlaintextLength {
			chunk = chunk[:MaxPlaintextLength]
		}
		data = data[len(chunk):]

		b := pool.Get(LengthPrefixLength + len(chunk) + poly1305TagSize)
		ciphertext := s.enc.Encrypt(b[:LengthPrefixLength], nil, chunk)
		binary.BigEndian.PutUint16(ciphertext, uint16(len(ciphertext)-LengthPrefixLength))

		if _, err := s.writeMsgInsecure(ciphertext); err != nil {
			pool.Put(b)
			return written, err
		}
		pool.Put(b)
		written += len(chunk)
	}
	return written, nil
}
