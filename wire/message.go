// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// MaxMessagePayload is the maximum bytes a message can be regardless of
// other individual limits imposed by messages themselves.
const MaxMessagePayload = (1024 * 1024 * 32) // 32MB

// Commands used in message headers which describe the type of message.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdAddr        = "addr"
	CmdGetAddr     = "getaddr"
	CmdInv         = "inv"
	CmdGetData     = "getdata"
	CmdNotFound    = "notfound"
	CmdGetBlocks   = "getblocks"
	CmdGetHeaders  = "getheaders"
	CmdTx          = "tx"
	CmdBlock       = "block"
	CmdHeaders     = "headers"
	CmdMemPool     = "mempool"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdFilterLoad  = "filterload"
	CmdFilterAdd   = "filteradd"
	CmdFilterClear = "filterclear"
	CmdMerkleBlock = "merkleblock"
	CmdAlert       = "alert"
	CmdReject      = "reject"
)

// Message is the interface every concrete wire message implements. It owns
// complete control over its encoding.
type Message interface {
	BtcDecode(r io.Reader, pver uint32) error
	BtcEncode(w io.Writer, pver uint32) error
	Command() string
	MaxPayloadLength(pver uint32) uint32
}

// messageHeader defines the header structure framing every message on the
// wire: a network magic, a null-padded ASCII command, the payload length,
// and a payload checksum.
type messageHeader struct {
	magic    BitcoinNet
	command  string
	length   uint32
	checksum [4]byte
}

// makeEmptyMessage creates a Message of the appropriate concrete type based
// on the command string. It returns a protocol error for unknown commands so
// the caller can skip the payload and keep the connection alive.
func makeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdGetAddr:
		return &MsgGetAddr{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdNotFound:
		return &MsgNotFound{}, nil
	case CmdGetBlocks:
		return &MsgGetBlocks{}, nil
	case CmdGetHeaders:
		return &MsgGetHeaders{}, nil
	case CmdTx:
		return &MsgTx{}, nil
	case CmdBlock:
		return &MsgBlock{}, nil
	case CmdHeaders:
		return &MsgHeaders{}, nil
	case CmdMemPool:
		return &MsgMemPool{}, nil
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdFilterLoad:
		return &MsgFilterLoad{}, nil
	case CmdFilterAdd:
		return &MsgFilterAdd{}, nil
	case CmdFilterClear:
		return &MsgFilterClear{}, nil
	case CmdMerkleBlock:
		return &MsgMerkleBlock{}, nil
	case CmdAlert:
		return &MsgAlert{}, nil
	case CmdReject:
		return &MsgReject{}, nil
	default:
		return nil, fmt.Errorf("unhandled command [%s]", command)
	}
}

// writeMessageHeader serializes a message header to w.
func writeMessageHeader(w io.Writer, hdr *messageHeader) error {
	var command [CommandSize]byte
	copy(command[:], hdr.command)

	return writeElements(w, hdr.magic, command, hdr.length, hdr.checksum)
}

// readMessageHeader reads a message header from r.
func readMessageHeader(r io.Reader) (*messageHeader, int, error) {
	var headerBytes [4 + CommandSize + 4 + 4]byte
	n, err := io.ReadFull(r, headerBytes[:])
	if err != nil {
		return nil, n, err
	}
	hr := bytes.NewReader(headerBytes[:])

	var magic BitcoinNet
	var command [CommandSize]byte
	var length uint32
	var checksum [4]byte
	if err := readElements(hr, &magic, &command, &length, &checksum); err != nil {
		return nil, n, err
	}

	commandString := string(bytes.TrimRight(command[:], "\x00"))

	return &messageHeader{
		magic:    magic,
		command:  commandString,
		length:   length,
		checksum: checksum,
	}, n, nil
}

// WriteMessage writes a complete message, framed by the classic Bitcoin
// wire header, to w for the given protocol version and network.
func WriteMessage(w io.Writer, msg Message, pver uint32, btcnet BitcoinNet) error {
	lenp := msg.MaxPayloadLength(pver)

	var bw bytes.Buffer
	if err := msg.BtcEncode(&bw, pver); err != nil {
		return err
	}
	payload := bw.Bytes()
	lenp64 := len(payload)

	if uint32(lenp64) > lenp {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			lenp64, lenp)
		return messageError("WriteMessage", str)
	}

	if lenp64 > MaxMessagePayload {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload size for "+
			"the protocol is %d bytes", lenp64, MaxMessagePayload)
		return messageError("WriteMessage", str)
	}

	command := msg.Command()
	if len(command) > CommandSize {
		str := fmt.Sprintf("command [%s] is too long [max %v]", command, CommandSize)
		return messageError("WriteMessage", str)
	}

	hdr := messageHeader{
		magic:   btcnet,
		command: command,
		length:  uint32(lenp64),
	}
	firstSum := sha256.Sum256(payload)
	secondSum := sha256.Sum256(firstSum[:])
	copy(hdr.checksum[:], secondSum[:4])

	if err := writeMessageHeader(w, &hdr); err != nil {
		return err
	}

	_, err := w.Write(payload)
	return err
}

// ReadMessage reads, validates the header of, and decodes a single message
// from r. Header and checksum failures are returned as a *MessageError, an
// unknown command as an *UnknownMessageError after its payload has been
// drained, and read or decode failures as the underlying error; the
// connection remains open for the caller to decide whether to keep reading
// or to disconnect.
func ReadMessage(r io.Reader, pver uint32, btcnet BitcoinNet) (Message, []byte, error) {
	hdr, _, err := readMessageHeader(r)
	if err != nil {
		return nil, nil, err
	}

	if hdr.magic != btcnet {
		str := fmt.Sprintf("message from other network [%v]", hdr.magic)
		return nil, nil, messageError("ReadMessage", str)
	}

	if !isValidCommand(hdr.command) {
		str := fmt.Sprintf("invalid command %v", []byte(hdr.command))
		return nil, nil, messageError("ReadMessage", str)
	}

	if hdr.length > MaxMessagePayload {
		str := fmt.Sprintf("payload exceeds max message payload size "+
			"[len %v, max %v]", hdr.length, MaxMessagePayload)
		return nil, nil, messageError("ReadMessage", str)
	}

	msg, err := makeEmptyMessage(hdr.command)
	if err != nil {
		// Unknown message commands are skipped: drain the payload and
		// signal the caller with an *UnknownMessageError rather than a
		// hard protocol error, so the connection is not torn down.
		if _, copyErr := io.CopyN(io.Discard, r, int64(hdr.length)); copyErr != nil {
			return nil, nil, copyErr
		}
		return nil, nil, &UnknownMessageError{Command: hdr.command}
	}

	if hdr.length > msg.MaxPayloadLength(pver) {
		str := fmt.Sprintf("payload exceeds max length for message type "+
			"[command %v, length %v]", hdr.command, hdr.length)
		return nil, nil, messageError("ReadMessage", str)
	}

	payload := make([]byte, hdr.length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, err
	}

	firstSum := sha256.Sum256(payload)
	secondSum := sha256.Sum256(firstSum[:])
	checksum := secondSum[:4]
	if !bytes.Equal(checksum, hdr.checksum[:]) {
		str := fmt.Sprintf("payload checksum failed - header "+
			"indicates %v, but actual checksum is %v",
			hdr.checksum, checksum)
		return nil, nil, messageError("ReadMessage", str)
	}

	pr := bytes.NewBuffer(payload)
	if err := msg.BtcDecode(pr, pver); err != nil {
		return nil, nil, err
	}

	return msg, payload, nil
}

// isValidCommand reports whether command only contains the bytes a command
// string may legitimately hold once null-padding is stripped.
func isValidCommand(command string) bool {
	if len(command) > CommandSize {
		return false
	}
	for _, r := range command {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}

// UnknownMessageError signals that a peer sent a command this codec does
// not recognize. It is not fatal: the payload has already been drained from
// the stream and the connection should remain open.
type UnknownMessageError struct {
	Command string
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("unknown message command %q", e.Command)
}

// messageError creates a MessageError given a set of arguments.
func messageError(function, description string) error {
	return &MessageError{Func: function, Description: description}
}

// MessageError describes an issue with a message. An example of where this
// could occur is a block that contains fields with more elements than what
// the message format allows for it.
type MessageError struct {
	Func        string
	Description string
}

func (e *MessageError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%s: %s", e.Func, e.Description)
	}
	return e.Description
}

// ErrProtocol wraps e as a ProtocolError to make the distinction between
// wire-level malformation and higher-level (consensus) validation explicit
// to callers switching on error kind.
func ErrProtocol(err error) error {
	return errors.Wrap(err, "protocol error")
}
