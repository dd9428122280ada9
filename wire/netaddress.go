// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
	"net"
	"time"
)

// maxNetAddressPayload returns the max payload size for a NetAddress based
// on the protocol version.
func maxNetAddressPayload(pver uint32) uint32 {
	plen := uint32(26)
	if pver >= MultipleAddressVersion {
		plen += 4
	}
	return plen
}

// NetAddress defines information about a peer on the network, including its
// advertised services, IP, port, and the time it was last known to be valid.
// The IP is always stored as a 16-byte IPv4-mapped-or-native address.
type NetAddress struct {
	// Timestamp the address was last confirmed valid. Omitted from the
	// version message's embedded address (see §4.1) but present on
	// addresses carried by the addr message.
	Timestamp time.Time

	// Services the peer supports.
	Services ServiceFlag

	// IP address, stored as 16 bytes (IPv4-mapped if the address is v4).
	IP net.IP

	// Port the peer is listening on, in host byte order.
	Port uint16
}

// NewNetAddressIPPort returns a new NetAddress using the provided IP,
// port, and supported services with defaults for the remaining fields.
func NewNetAddressIPPort(ip net.IP, port uint16, services ServiceFlag) *NetAddress {
	return NewNetAddressTimestamp(time.Now(), services, ip, port)
}

// NewNetAddressTimestamp returns a new NetAddress using the provided
// timestamp, IP, port, and supported services.
func NewNetAddressTimestamp(timestamp time.Time, services ServiceFlag, ip net.IP, port uint16) *NetAddress {
	return &NetAddress{
		Timestamp: time.Unix(timestamp.Unix(), 0),
		Services:  services,
		IP:        ip,
		Port:      port,
	}
}

// AddService adds service as a supported service by the peer generating the
// message.
func (na *NetAddress) AddService(service ServiceFlag) {
	na.Services |= service
}

// HasService returns whether the specified service is supported by the peer
// described by the NetAddress.
func (na *NetAddress) HasService(service ServiceFlag) bool {
	return na.Services&service == service
}

// readNetAddress reads an encoded NetAddress from r depending on the
// protocol version and whether the timestamp field is included.
func readNetAddress(r io.Reader, pver uint32, na *NetAddress, hasTimestamp bool) error {
	var ip [16]byte

	if hasTimestamp && pver >= MultipleAddressVersion {
		var timestamp uint32
		if err := ReadElement(r, &timestamp); err != nil {
			return err
		}
		na.Timestamp = time.Unix(int64(timestamp), 0)
	}

	if err := readElements(r, &na.Services, &ip); err != nil {
		return err
	}
	na.IP = net.IP(ip[:])

	port, err := binarySerializerFreeList.Uint16(r, bigEndian)
	if err != nil {
		return err
	}
	na.Port = port

	return nil
}

// writeNetAddress serializes a NetAddress to w depending on the protocol
// version and whether the timestamp field is to be included.
func writeNetAddress(w io.Writer, pver uint32, na *NetAddress, hasTimestamp bool) error {
	if hasTimestamp && pver >= MultipleAddressVersion {
		if err := WriteElement(w, uint32(na.Timestamp.Unix())); err != nil {
			return err
		}
	}

	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if err := writeElements(w, na.Services, ip); err != nil {
		return err
	}

	return binarySerializerFreeList.PutUint16(w, bigEndian, na.Port)
}
