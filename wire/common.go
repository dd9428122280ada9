// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/btcfullnode/node/util/chainhash"
)

// MaxVarIntPayload is the maximum payload size for a variable length integer.
const MaxVarIntPayload = 9

// CommandSize is the fixed size in bytes of a message command as provided in
// the message header. It is defined as 12 bytes, filled with null bytes.
const CommandSize = 12

var (
	// littleEndian is a convenience variable since binary.LittleEndian is
	// quite long.
	littleEndian = binary.LittleEndian

	// bigEndian is a convenience variable since binary.BigEndian is quite
	// long.
	bigEndian = binary.BigEndian
)

// errNonCanonicalVarInt is the common format string used for non-canonically
// encoded variable length integer errors.
var errNonCanonicalVarInt = "non-canonical varint %x - discriminant %x must " +
	"encode a value greater than %x"

// binaryFreeList is a free list of byte slices used to avoid costly
// allocations when reading and writing the fixed-size primitive types that
// dominate message decoding.
type binaryFreeList chan []byte

var binarySerializerFreeList binaryFreeList = make(chan []byte, 32)

func (l binaryFreeList) Borrow() []byte {
	var buf []byte
	select {
	case buf = <-l:
	default:
		buf = make([]byte, 8)
	}
	return buf[:8]
}

func (l binaryFreeList) Return(buf []byte) {
	select {
	case l <- buf:
	default:
	}
}

func (l binaryFreeList) Uint8(r io.Reader) (uint8, error) {
	buf := l.Borrow()[:1]
	defer l.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (l binaryFreeList) Uint16(r io.Reader, byteOrder binary.ByteOrder) (uint16, error) {
	buf := l.Borrow()[:2]
	defer l.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint16(buf), nil
}

func (l binaryFreeList) Uint32(r io.Reader, byteOrder binary.ByteOrder) (uint32, error) {
	buf := l.Borrow()[:4]
	defer l.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buf), nil
}

func (l binaryFreeList) Uint64(r io.Reader, byteOrder binary.ByteOrder) (uint64, error) {
	buf := l.Borrow()[:8]
	defer l.Return(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(buf), nil
}

func (l binaryFreeList) PutUint8(w io.Writer, val uint8) error {
	buf := l.Borrow()[:1]
	defer l.Return(buf)
	buf[0] = val
	_, err := w.Write(buf)
	return err
}

func (l binaryFreeList) PutUint16(w io.Writer, byteOrder binary.ByteOrder, val uint16) error {
	buf := l.Borrow()[:2]
	defer l.Return(buf)
	byteOrder.PutUint16(buf, val)
	_, err := w.Write(buf)
	return err
}

func (l binaryFreeList) PutUint32(w io.Writer, byteOrder binary.ByteOrder, val uint32) error {
	buf := l.Borrow()[:4]
	defer l.Return(buf)
	byteOrder.PutUint32(buf, val)
	_, err := w.Write(buf)
	return err
}

func (l binaryFreeList) PutUint64(w io.Writer, byteOrder binary.ByteOrder, val uint64) error {
	buf := l.Borrow()[:8]
	defer l.Return(buf)
	byteOrder.PutUint64(buf, val)
	_, err := w.Write(buf)
	return err
}

// int64Time represents a unix timestamp encoded on the wire as a uint32, as in
// block headers. It is used as
// a way to signal readElement how to decode a timestamp into a Go time.Time,
// since that conversion is otherwise ambiguous.
type int64Time time.Time

// ReadElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element pointed to.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		rv, err := binarySerializerFreeList.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = int32(rv)
		return nil

	case *uint32:
		rv, err := binarySerializerFreeList.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *int64:
		rv, err := binarySerializerFreeList.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		*e = int64(rv)
		return nil

	case *uint64:
		rv, err := binarySerializerFreeList.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *bool:
		rv, err := binarySerializerFreeList.Uint8(r)
		if err != nil {
			return err
		}
		*e = rv != 0x00
		return nil

	// Unix timestamp encoded as a uint32.
	case *int64Time:
		rv, err := binarySerializerFreeList.Uint32(r, binary.LittleEndian)
		if err != nil {
			return err
		}
		*e = int64Time(time.Unix(int64(rv), 0))
		return nil

	// Message header checksum.
	case *[4]byte:
		_, err := io.ReadFull(r, e[:])
		return err

	// Message header command.
	case *[CommandSize]byte:
		_, err := io.ReadFull(r, e[:])
		return err

	// IP address.
	case *[16]byte:
		_, err := io.ReadFull(r, e[:])
		return err

	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err

	case *ServiceFlag:
		rv, err := binarySerializerFreeList.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		*e = ServiceFlag(rv)
		return nil

	case *InvType:
		rv, err := binarySerializerFreeList.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = InvType(rv)
		return nil

	case *BitcoinNet:
		rv, err := binarySerializerFreeList.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = BitcoinNet(rv)
		return nil

	case *BloomUpdateType:
		rv, err := binarySerializerFreeList.Uint8(r)
		if err != nil {
			return err
		}
		*e = BloomUpdateType(rv)
		return nil

	case *RejectCode:
		rv, err := binarySerializerFreeList.Uint8(r)
		if err != nil {
			return err
		}
		*e = RejectCode(rv)
		return nil
	}

	// Fall back to the slower binary.Read if a fast path was not available
	// above.
	return binary.Read(r, littleEndian, element)
}

// readElements reads multiple items from r. It is equivalent to multiple
// calls to ReadElement.
func readElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := ReadElement(r, element); err != nil {
			return err
		}
	}
	return nil
}

// WriteElement writes the little endian representation of element to w.
func WriteElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		return binarySerializerFreeList.PutUint32(w, littleEndian, uint32(e))

	case uint32:
		return binarySerializerFreeList.PutUint32(w, littleEndian, e)

	case int64:
		return binarySerializerFreeList.PutUint64(w, littleEndian, uint64(e))

	case uint64:
		return binarySerializerFreeList.PutUint64(w, littleEndian, e)

	case bool:
		if e {
			return binarySerializerFreeList.PutUint8(w, 0x01)
		}
		return binarySerializerFreeList.PutUint8(w, 0x00)

	// Message header checksum.
	case [4]byte:
		_, err := w.Write(e[:])
		return err

	// Message header command.
	case [CommandSize]byte:
		_, err := w.Write(e[:])
		return err

	// IP address.
	case [16]byte:
		_, err := w.Write(e[:])
		return err

	case *chainhash.Hash:
		_, err := w.Write(e[:])
		return err

	case ServiceFlag:
		return binarySerializerFreeList.PutUint64(w, littleEndian, uint64(e))

	case InvType:
		return binarySerializerFreeList.PutUint32(w, littleEndian, uint32(e))

	case BitcoinNet:
		return binarySerializerFreeList.PutUint32(w, littleEndian, uint32(e))

	case BloomUpdateType:
		return binarySerializerFreeList.PutUint8(w, uint8(e))

	case RejectCode:
		return binarySerializerFreeList.PutUint8(w, uint8(e))
	}

	return binary.Write(w, littleEndian, element)
}

// writeElements writes multiple items to w. It is equivalent to multiple
// calls to WriteElement.
func writeElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		if err := WriteElement(w, element); err != nil {
			return err
		}
	}
	return nil
}

// ReadVarInt reads a variable length integer from r and returns it as a
// uint64. Non-canonical encodings -- those using more bytes than the value
// required -- are rejected.
func ReadVarInt(r io.Reader) (uint64, error) {
	discriminant, err := binarySerializerFreeList.Uint8(r)
	if err != nil {
		return 0, err
	}

	var rv uint64
	switch discriminant {
	case 0xff:
		sv, err := binarySerializerFreeList.Uint64(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = sv

		const min = uint64(0x100000000)
		if rv < min {
			return 0, messageError("ReadVarInt", fmt.Sprintf(
				errNonCanonicalVarInt, rv, discriminant, min))
		}

	case 0xfe:
		sv, err := binarySerializerFreeList.Uint32(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)

		const min = uint64(0x10000)
		if rv < min {
			return 0, messageError("ReadVarInt", fmt.Sprintf(
				errNonCanonicalVarInt, rv, discriminant, min))
		}

	case 0xfd:
		sv, err := binarySerializerFreeList.Uint16(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)

		const min = uint64(0xfd)
		if rv < min {
			return 0, messageError("ReadVarInt", fmt.Sprintf(
				errNonCanonicalVarInt, rv, discriminant, min))
		}

	default:
		rv = uint64(discriminant)
	}

	return rv, nil
}

// WriteVarInt serializes val to w using the canonical minimal-length
// encoding for its value.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		return binarySerializerFreeList.PutUint8(w, uint8(val))
	}

	if val <= math.MaxUint16 {
		if err := binarySerializerFreeList.PutUint8(w, 0xfd); err != nil {
			return err
		}
		return binarySerializerFreeList.PutUint16(w, littleEndian, uint16(val))
	}

	if val <= math.MaxUint32 {
		if err := binarySerializerFreeList.PutUint8(w, 0xfe); err != nil {
			return err
		}
		return binarySerializerFreeList.PutUint32(w, littleEndian, uint32(val))
	}

	if err := binarySerializerFreeList.PutUint8(w, 0xff); err != nil {
		return err
	}
	return binarySerializerFreeList.PutUint64(w, littleEndian, val)
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	if val < 0xfd {
		return 1
	}
	if val <= math.MaxUint16 {
		return 3
	}
	if val <= math.MaxUint32 {
		return 5
	}
	return 9
}

// ReadVarString reads a variable length string from r: a varInt byte length
// followed by that many UTF-8 bytes.
func ReadVarString(r io.Reader) (string, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}

	if count > MaxMessagePayload {
		str := fmt.Sprintf("variable length string is too long "+
			"[count %d, max %d]", count, MaxMessagePayload)
		return "", messageError("ReadVarString", str)
	}

	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteVarString serializes str to w as a varInt byte length followed by the
// string's bytes.
func WriteVarString(w io.Writer, str string) error {
	if err := WriteVarInt(w, uint64(len(str))); err != nil {
		return err
	}
	_, err := w.Write([]byte(str))
	return err
}

// ReadVarBytes reads a variable length byte array: a varInt byte length
// followed by that many bytes. maxAllowed bounds the length to protect
// against memory-exhaustion attacks from malformed peers.
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	if count > maxAllowed {
		str := fmt.Sprintf("%s is larger than the max allowed size "+
			"[count %d, max %d]", fieldName, count, maxAllowed)
		return nil, messageError("ReadVarBytes", str)
	}

	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarBytes serializes a variable length byte array to w as a varInt
// byte count followed by the bytes themselves.
func WriteVarBytes(w io.Writer, bytes []byte) error {
	if err := WriteVarInt(w, uint64(len(bytes))); err != nil {
		return err
	}
	_, err := w.Write(bytes)
	return err
}
