// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MaxUserAgentLen is the maximum allowed length for the user agent field in
// a version message.
const MaxUserAgentLen = 256

// DefaultUserAgent is used if the caller does not override it via
// AddUserAgent.
const DefaultUserAgent = "/fullnode:0.1.0/"

// MsgVersion implements the Message interface and represents the version
// message. A peer sends this immediately upon making an outbound connection
// to advertise itself; the remote peer replies in kind and then both sides
// send verack.
type MsgVersion struct {
	// ProtocolVersion is the version of the protocol the node is using.
	ProtocolVersion int32

	// Services is the bitfield of services supported by the sender.
	Services ServiceFlag

	// Timestamp is when the message was generated.
	Timestamp time.Time

	// AddrYou is the address of the remote peer as perceived by the
	// sender.
	AddrYou NetAddress

	// AddrMe is the address of the local peer.
	AddrMe NetAddress

	// Nonce is a random nonce used to detect self-connections.
	Nonce uint64

	// UserAgent identifies the software generating the message.
	UserAgent string

	// LastBlock is the height of the sender's best chain.
	LastBlock int32

	// DisableRelayTx requests that the remote peer not announce
	// transactions via inv until a filter is loaded.
	DisableRelayTx bool
}

// HasService returns whether the specified service is supported by the peer
// that generated the message.
func (msg *MsgVersion) HasService(service ServiceFlag) bool {
	return msg.Services&service == service
}

// AddService adds service as a supported service by the peer generating the
// message.
func (msg *MsgVersion) AddService(service ServiceFlag) {
	msg.Services |= service
}

// AddUserAgent adds a component to the user agent string for the version
// message, e.g. "name:version(comment1; comment2)".
func (msg *MsgVersion) AddUserAgent(name string, version string, comments ...string) {
	newUserAgent := fmt.Sprintf("%s:%s", name, version)
	if len(comments) != 0 {
		newUserAgent = fmt.Sprintf("%s(%s)", newUserAgent, strings.Join(comments, "; "))
	}
	newUserAgent = fmt.Sprintf("%s%s/", msg.UserAgent, newUserAgent)
	msg.UserAgent = newUserAgent
}

// BtcDecode decodes r using the protocol encoding into the receiver. The
// version message is special in that fields added in later protocol
// versions are optional, so r must be a *bytes.Buffer so the number of
// remaining bytes can be ascertained.
func (msg *MsgVersion) BtcDecode(r io.Reader, pver uint32) error {
	buf, ok := r.(*bytes.Buffer)
	if !ok {
		return errors.New("MsgVersion.BtcDecode reader is not a *bytes.Buffer")
	}

	var pv int32
	var ts int64
	if err := readElements(buf, &pv, &msg.Services, &ts); err != nil {
		return err
	}
	msg.ProtocolVersion = pv
	msg.Timestamp = time.Unix(ts, 0)

	if err := readNetAddress(buf, 0, &msg.AddrYou, false); err != nil {
		return err
	}

	if buf.Len() > 0 {
		if err := readNetAddress(buf, 0, &msg.AddrMe, false); err != nil {
			return err
		}
	}

	if buf.Len() > 0 {
		if err := ReadElement(buf, &msg.Nonce); err != nil {
			return err
		}
	}

	if buf.Len() > 0 {
		userAgent, err := ReadVarString(buf)
		if err != nil {
			return err
		}
		if err := validateUserAgent(userAgent); err != nil {
			return err
		}
		msg.UserAgent = userAgent
	}

	if buf.Len() > 0 {
		if err := ReadElement(buf, &msg.LastBlock); err != nil {
			return err
		}
	}

	if buf.Len() > 0 {
		var relay bool
		if err := ReadElement(buf, &relay); err != nil {
			return err
		}
		msg.DisableRelayTx = !relay
	}

	return nil
}

// BtcEncode encodes the receiver to w using the protocol encoding.
func (msg *MsgVersion) BtcEncode(w io.Writer, pver uint32) error {
	if err := validateUserAgent(msg.UserAgent); err != nil {
		return err
	}

	if err := writeElements(w, msg.ProtocolVersion, msg.Services, msg.Timestamp.Unix()); err != nil {
		return err
	}

	if err := writeNetAddress(w, 0, &msg.AddrYou, false); err != nil {
		return err
	}
	if err := writeNetAddress(w, 0, &msg.AddrMe, false); err != nil {
		return err
	}

	if err := WriteElement(w, msg.Nonce); err != nil {
		return err
	}

	if err := WriteVarString(w, msg.UserAgent); err != nil {
		return err
	}

	if err := WriteElement(w, msg.LastBlock); err != nil {
		return err
	}

	return WriteElement(w, !msg.DisableRelayTx)
}

// Command returns the protocol command string for the message.
func (msg *MsgVersion) Command() string {
	return CmdVersion
}

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgVersion) MaxPayloadLength(pver uint32) uint32 {
	return 29 + (maxNetAddressPayload(pver) * 2) + MaxVarIntPayload + MaxUserAgentLen
}

// NewMsgVersion returns a new version message using the provided parameters
// and defaults for the remaining fields.
func NewMsgVersion(me *NetAddress, you *NetAddress, nonce uint64, lastBlock int32) *MsgVersion {
	return &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services:        0,
		Timestamp:       time.Unix(time.Now().Unix(), 0),
		AddrYou:         *you,
		AddrMe:          *me,
		Nonce:           nonce,
		UserAgent:       DefaultUserAgent,
		LastBlock:       lastBlock,
		DisableRelayTx:  false,
	}
}

func validateUserAgent(userAgent string) error {
	if len(userAgent) > MaxUserAgentLen {
		str := fmt.Sprintf("user agent too long [len %d, max %d]", len(userAgent), MaxUserAgentLen)
		return messageError("MsgVersion", str)
	}
	return nil
}
