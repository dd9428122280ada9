// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peergroup

import (
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/btcfullnode/node/params"
	"github.com/btcfullnode/node/wire"
)

const (
	// secondsIn3Days and secondsIn4Days bound the randomly-selected
	// "last seen" age assigned to addresses returned from DNS seeding,
	// so seeded addresses aren't all tied for oldest in the candidate
	// pool's recency ordering.
	secondsIn3Days int32 = 24 * 60 * 60 * 3
	secondsIn4Days int32 = 24 * 60 * 60 * 4
)

// OnSeed is invoked with the addresses returned by a successful DNS seed
// lookup (spec.md §4.6: discovery sources feed the candidate pool).
type OnSeed func(addrs []*wire.NetAddress)

// LookupFunc is the signature of the DNS lookup function used for seeding.
type LookupFunc func(host string) ([]net.IP, error)

// SeedFromDNS resolves each of netParams' configured DNS seed hostnames
// and invokes seedFn with the addresses each one returns. Each hostname is
// resolved in its own goroutine; failures are logged and otherwise
// ignored, since seeding is a best-effort bootstrap source alongside any
// explicitly configured peers.
func SeedFromDNS(netParams *params.Params, lookupFn LookupFunc, seedFn OnSeed) {
	intPort, _ := strconv.Atoi(netParams.DefaultPort)

	for _, dnsseed := range netParams.DNSSeeds {
		host := dnsseed
		spawn(func() {
			addrs, err := lookupFn(host)
			if err != nil {
				log.Infof("DNS discovery failed on seed %s: %s", host, err)
				return
			}
			if len(addrs) == 0 {
				return
			}
			log.Infof("%d addresses found from DNS seed %s", len(addrs), host)

			now := time.Now()
			netAddrs := make([]*wire.NetAddress, len(addrs))
			for i, ip := range addrs {
				// Seed with a timestamp randomly selected between 3 and 7
				// days ago, so freshly-seeded addresses don't all sort as
				// the most recently seen in the candidate pool.
				age := time.Duration(secondsIn3Days+rand.Int31n(secondsIn4Days)) * time.Second
				netAddrs[i] = wire.NewNetAddressTimestamp(now.Add(-age), 0, ip, uint16(intPort))
			}
			seedFn(netAddrs)
		})
	}
}
