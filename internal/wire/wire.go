// Package wire implements the fixed-width, headerless framing used by
// every link in the overlay: a role byte, an optional request byte, and
// then a sequence of fields whose widths never vary. There is no framing
// header beyond the role/request bytes themselves; a short read or short
// write on any field is treated as a fatal dialog error by the caller.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Field widths fixed by the protocol.
const (
	FilenameSize = 256
	IDListSize   = 4096
	SizeHeader   = 16
	ChunkSize    = 4096
)

// Role discriminators, sent as the first byte of every connection.
const (
	RolePeer byte = '0'
	RoleLeaf byte = '1'
)

// Request types for peer-to-peer and leaf-to-super dialogs.
const (
	ReqQuery      byte = '0'
	ReqInvalidate byte = '1'
	ReqCompare    byte = '2'

	ReqRegister   byte = '0'
	ReqDeregister byte = '1'
	ReqSearch     byte = '2'
	ReqObtain     byte = '1'
	ReqPoll       byte = '2'

	// Inspector requests, multiplexed on the same leaf-to-super-peer link
	// as Register/Deregister/Search: the `l`/`m`/`d` interactive commands
	// forwarded to the super-peer.
	ReqInspectIndex      byte = 'l'
	ReqInspectMessageIDs byte = 'm'
	ReqInspectPending    byte = 'd'
)

// ReportSize is the width of the free-text field used to answer an
// inspector request.
const ReportSize = 4096

// Sentinel sizes for an obtain response.
const (
	SizeNotFound  int64 = -1
	SizeStatError int64 = -2
)

// NoVersion marks a field as "no version" / "cache entry, not origin".
const NoVersion int64 = -1

// byteOrder is fixed for every link in the overlay. The original program
// sent raw native memory over loopback sockets between two processes on
// the same host; this reimplementation pins a single explicit order
// instead, since two independently-started Go processes have no shared
// notion of "native" to rely on.
var byteOrder = binary.LittleEndian

// ErrShortRead is returned when a field could not be read in full.
var ErrShortRead = errors.New("wire: short read")

// ErrShortWrite is returned when a field could not be written in full.
var ErrShortWrite = errors.New("wire: short write")

// WriteByte writes a single byte field (role or request discriminator).
func WriteByte(w io.Writer, b byte) error {
	n, err := w.Write([]byte{b})
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrShortWrite
	}
	return nil
}

// ReadByte reads a single byte field.
func ReadByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteFilename writes a zero-padded 256-byte filename field. Names
// longer than FilenameSize-1 are truncated so the field still round
// trips a null terminator.
func WriteFilename(w io.Writer, name string) error {
	buf := make([]byte, FilenameSize)
	if len(name) > FilenameSize-1 {
		name = name[:FilenameSize-1]
	}
	copy(buf, name)
	return writeFull(w, buf)
}

// ReadFilename reads a zero-padded 256-byte filename field.
func ReadFilename(r io.Reader) (string, error) {
	buf := make([]byte, FilenameSize)
	if err := readFull(r, buf); err != nil {
		return "", err
	}
	return cstring(buf), nil
}

// WriteInt32 writes a 32-bit signed integer field.
func WriteInt32(w io.Writer, v int32) error {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], uint32(v))
	return writeFull(w, buf[:])
}

// ReadInt32 reads a 32-bit signed integer field.
func ReadInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(byteOrder.Uint32(buf[:])), nil
}

// WriteInt64 writes a 64-bit signed integer field (used for versions).
func WriteInt64(w io.Writer, v int64) error {
	var buf [8]byte
	byteOrder.PutUint64(buf[:], uint64(v))
	return writeFull(w, buf[:])
}

// ReadInt64 reads a 64-bit signed integer field.
func ReadInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(byteOrder.Uint64(buf[:])), nil
}

// WriteBool writes a single-byte boolean field (0 or 1), used by the
// PULL-N poll response.
func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteByte(w, 1)
	}
	return WriteByte(w, 0)
}

// ReadBool reads a single-byte boolean field.
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadByte(r)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// WriteIDList writes a comma-separated list of leaf ids into a
// zero-padded 4096-byte field. An empty list writes an empty string,
// meaning "not found".
func WriteIDList(w io.Writer, ids []int32) error {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	joined := strings.Join(parts, ",")
	if len(joined) > IDListSize-1 {
		return fmt.Errorf("wire: id list too large to encode (%d bytes)", len(joined))
	}
	buf := make([]byte, IDListSize)
	copy(buf, joined)
	return writeFull(w, buf)
}

// ReadIDList reads a comma-separated id list field.
func ReadIDList(r io.Reader) ([]int32, error) {
	buf := make([]byte, IDListSize)
	if err := readFull(r, buf); err != nil {
		return nil, err
	}
	s := cstring(buf)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("wire: malformed id list entry %q: %w", p, err)
		}
		ids = append(ids, int32(n))
	}
	return ids, nil
}

// WriteSizeHeader writes the 16-byte ASCII decimal size header that
// precedes a file payload (or the SizeNotFound/SizeStatError sentinels).
func WriteSizeHeader(w io.Writer, size int64) error {
	s := strconv.FormatInt(size, 10)
	if len(s) > SizeHeader {
		return fmt.Errorf("wire: size header overflow: %d", size)
	}
	buf := make([]byte, SizeHeader)
	copy(buf, s)
	return writeFull(w, buf)
}

// ReadSizeHeader reads the 16-byte ASCII decimal size header.
func ReadSizeHeader(r io.Reader) (int64, error) {
	buf := make([]byte, SizeHeader)
	if err := readFull(r, buf); err != nil {
		return 0, err
	}
	s := strings.TrimRight(string(buf), "\x00")
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("wire: malformed size header %q: %w", s, err)
	}
	return n, nil
}

// WriteReport writes a zero-padded free-text field, truncating like
// WriteFilename, used to answer an inspector request.
func WriteReport(w io.Writer, text string) error {
	buf := make([]byte, ReportSize)
	if len(text) > ReportSize-1 {
		text = text[:ReportSize-1]
	}
	copy(buf, text)
	return writeFull(w, buf)
}

// ReadReport reads a free-text report field.
func ReadReport(r io.Reader) (string, error) {
	buf := make([]byte, ReportSize)
	if err := readFull(r, buf); err != nil {
		return "", err
	}
	return cstring(buf), nil
}

// CopyChunked copies exactly n bytes from src to dst in ChunkSize pieces,
// matching the original's chunked bulk transfer.
func CopyChunked(dst io.Writer, src io.Reader, n int64) error {
	buf := make([]byte, ChunkSize)
	for copied := int64(0); copied < n; {
		chunk := buf
		if rem := n - copied; rem < int64(len(chunk)) {
			chunk = chunk[:rem]
		}
		if err := readFull(src, chunk); err != nil {
			return err
		}
		if err := writeFull(dst, chunk); err != nil {
			return err
		}
		copied += int64(len(chunk))
	}
	return nil
}

func cstring(buf []byte) string {
	if i := indexZero(buf); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

func indexZero(buf []byte) int {
	for i, b := range buf {
		if b == 0 {
			return i
		}
	}
	return -1
}

func readFull(r io.Reader, buf []byte) error {
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return ErrShortRead
		}
		return err
	}
	if n != len(buf) {
		return ErrShortRead
	}
	return nil
}

func writeFull(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrShortWrite
	}
	return nil
}
