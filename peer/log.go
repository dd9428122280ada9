// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"fmt"
	"strings"
	"time"

	"github.com/btcfullnode/node/logger"
	"github.com/btcfullnode/node/util/panics"
	"github.com/btcfullnode/node/wire"
)

// lockTimeThreshold is the value at which a transaction's LockTime field is
// interpreted as a block height rather than a Unix timestamp.
const lockTimeThreshold = 500000000

var log, _ = logger.Get(logger.SubsystemTags.PEER)
var spawn = panics.GoroutineWrapperFunc(log)

// logClosure is a closure that can be printed with %s to be used to
// generate expensive-to-create data for a detailed log level and avoid doing
// the work if the data isn't printed.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}

// formatLockTime returns a transaction lock time as a human-readable string.
func formatLockTime(lockTime uint32) string {
	if lockTime < lockTimeThreshold {
		return fmt.Sprintf("height %d", lockTime)
	}
	return time.Unix(int64(lockTime), 0).String()
}

// invSummary returns an inventory message as a human-readable string.
func invSummary(invList []*wire.InvVect) string {
	invLen := len(invList)
	if invLen == 0 {
		return "empty"
	}

	if invLen == 1 {
		iv := invList[0]
		switch iv.Type {
		case wire.InvTypeBlock:
			return fmt.Sprintf("block %s", iv.Hash)
		case wire.InvTypeTx:
			return fmt.Sprintf("tx %s", iv.Hash)
		}
		return fmt.Sprintf("unknown (%d) %s", uint32(iv.Type), iv.Hash)
	}

	return fmt.Sprintf("size %d", invLen)
}

// sanitizeString strips any characters which are even remotely dangerous,
// such as html control characters, from the passed string. It also limits
// it to the passed maximum size, which can be 0 for unlimited. When the
// string is limited, it will also add "..." to the string to indicate it
// was truncated.
func sanitizeString(str string, maxLength uint) string {
	const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXY" +
		"Z01234567890 .,;_/:?@"

	str = strings.Map(func(r rune) rune {
		if strings.ContainsRune(safeChars, r) {
			return r
		}
		return -1
	}, str)

	if maxLength > 0 && uint(len(str)) > maxLength {
		str = str[:maxLength] + "..."
	}
	return str
}

// messageSummary returns a human-readable string which summarizes a
// message. Not all messages have or need a summary; this is used for debug
// logging.
func messageSummary(msg wire.Message) string {
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return fmt.Sprintf("agent %s, pver %d, block %d", msg.UserAgent,
			msg.ProtocolVersion, msg.LastBlock)

	case *wire.MsgVerAck:
		// No summary.

	case *wire.MsgGetAddr:
		// No summary.

	case *wire.MsgAddr:
		return fmt.Sprintf("%d addr", len(msg.AddrList))

	case *wire.MsgPing:
		return fmt.Sprintf("nonce %d", msg.Nonce)

	case *wire.MsgPong:
		return fmt.Sprintf("nonce %d", msg.Nonce)

	case *wire.MsgTx:
		hash := msg.TxHash()
		return fmt.Sprintf("hash %s, %d inputs, %d outputs, lock %s",
			hash, len(msg.TxIn), len(msg.TxOut), formatLockTime(msg.LockTime))

	case *wire.MsgBlock:
		header := &msg.Header
		return fmt.Sprintf("hash %s, ver %d, %d tx, %s", msg.BlockHash(),
			header.Version, len(msg.Transactions), header.Timestamp)

	case *wire.MsgInv:
		return invSummary(msg.InvList)

	case *wire.MsgNotFound:
		return invSummary(msg.InvList)

	case *wire.MsgGetData:
		return invSummary(msg.InvList)

	case *wire.MsgGetBlocks:
		return fmt.Sprintf("locator count %d, stop %s", len(msg.BlockLocatorHashes), msg.HashStop)

	case *wire.MsgGetHeaders:
		return fmt.Sprintf("locator count %d, stop %s", len(msg.BlockLocatorHashes), msg.HashStop)

	case *wire.MsgHeaders:
		return fmt.Sprintf("num %d", len(msg.Headers))

	case *wire.MsgReject:
		rejCommand := sanitizeString(msg.Cmd, wire.CommandSize)
		rejReason := sanitizeString(msg.Reason, wire.MaxRejectReasonLen)
		summary := fmt.Sprintf("cmd %s, code %s, reason %s", rejCommand,
			msg.Code, rejReason)
		if rejCommand == wire.CmdBlock || rejCommand == wire.CmdTx {
			summary += fmt.Sprintf(", hash %s", msg.Hash)
		}
		return summary

	case *wire.MsgFilterLoad:
		return fmt.Sprintf("%d filter bytes", len(msg.Filter))

	case *wire.MsgFilterAdd:
		return fmt.Sprintf("%d data bytes", len(msg.Data))
	}

	return ""
}
