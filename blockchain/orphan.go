package blockchain

import (
	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/util/chainhash"
)

// maxOrphanBlocks bounds the number of blocks buffered while waiting for
// their parent to arrive (spec.md §4.4 step 2). When full, the newest
// orphan is dropped rather than evicting an older one (spec.md §4.4.3).
const maxOrphanBlocks = 100

// orphanBuffer holds blocks whose parent has not yet been seen, keyed by
// the missing parent's hash so they can be reprocessed as soon as it
// arrives.
type orphanBuffer struct {
	byParent map[chainhash.Hash][]*blockutil.Block
	count    int
}

func newOrphanBuffer() *orphanBuffer {
	return &orphanBuffer{byParent: make(map[chainhash.Hash][]*blockutil.Block)}
}

// add buffers block under its parent hash, reporting false (and dropping
// the block) if the buffer is already at capacity.
func (o *orphanBuffer) add(block *blockutil.Block) bool {
	if o.count >= maxOrphanBlocks {
		return false
	}
	parent := block.MsgBlock().Header.PrevBlock
	o.byParent[parent] = append(o.byParent[parent], block)
	o.count++
	return true
}

// take removes and returns every orphan waiting on parentHash.
func (o *orphanBuffer) take(parentHash chainhash.Hash) []*blockutil.Block {
	children := o.byParent[parentHash]
	if len(children) == 0 {
		return nil
	}
	delete(o.byParent, parentHash)
	o.count -= len(children)
	return children
}
