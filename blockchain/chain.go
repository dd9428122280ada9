// Package blockchain implements FullPrunedBlockChain (spec.md §4.4): the
// consensus engine that connects blocks, maintains the UTXO set, tracks
// the best chain by cumulative chain work, and performs reorganizations
// using recorded undo data.
package blockchain

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/btcfullnode/node/blockutil"
	"github.com/btcfullnode/node/params"
	"github.com/btcfullnode/node/store"
	"github.com/btcfullnode/node/txscript"
	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// chainMutex serializes Add calls so UTXO mutation is linearizable
// (spec.md §5).
type chainMutex struct {
	sync.Mutex
}

// finalizationDepth is how many blocks behind the chain head a block
// must fall before its full transaction list is dropped in favor of the
// smaller TransactionOutputChanges undo record (spec.md §4.3, §4.4 step
// 6). Set well beyond any plausible reorganize depth.
const finalizationDepth = 288

// medianTimeBlocks is the number of preceding blocks whose timestamps
// are considered when computing the median time a new block's timestamp
// must exceed (spec.md §3, §4.4 step 3).
const medianTimeBlocks = 11

// maxBlockSigOps bounds the total signature operations a block's
// transactions may contain (spec.md §4.4.1).
const maxBlockSigOps = 20000

// ScriptVerifier checks that scriptSig satisfies scriptPubKey for the
// given transaction input. txscript.Verify is the default; BlockChain
// accepts any compatible function so tests can substitute a stub.
type ScriptVerifier func(scriptSig, scriptPubKey []byte, tx *wire.MsgTx, inputIndex int) error

// BlockConnectedListener is notified after a block becomes (or remains)
// part of the best chain, either via direct connect or as the final
// step of a reorganize.
type BlockConnectedListener func(block *blockutil.Block, head *store.StoredBlock)

// ReorganizeListener is notified when the best chain switches from one
// branch to another.
type ReorganizeListener func(oldHead, newHead *store.StoredBlock)

// BlockChain is the consensus engine of spec.md §4.4, backed by a
// store.Store for persistence. All Add calls are serialized through an
// internal lock so UTXO mutation is linearizable (spec.md §5).
type BlockChain struct {
	params *params.Params
	store  *store.Store
	verify ScriptVerifier

	mu      chainMutex
	orphans *orphanBuffer

	blockConnectedListeners []BlockConnectedListener
	reorganizeListeners     []ReorganizeListener
}

// New returns a BlockChain over st, seeding it with p's genesis block if
// st has no chain head yet.
func New(p *params.Params, st *store.Store) (*BlockChain, error) {
	bc := &BlockChain{
		params:  p,
		store:   st,
		verify:  txscript.Verify,
		orphans: newOrphanBuffer(),
	}

	_, err := st.GetChainHead()
	switch err {
	case nil:
		return bc, nil
	case store.ErrNotFound:
		if err := bc.initGenesis(); err != nil {
			return nil, err
		}
		return bc, nil
	default:
		return nil, &store.StoreError{Op: "GetChainHead", Err: err}
	}
}

// SetScriptVerifier overrides the script oracle used for input
// validation. Intended for tests.
func (bc *BlockChain) SetScriptVerifier(v ScriptVerifier) {
	bc.verify = v
}

// AddBlockConnectedListener registers a listener invoked after a block
// joins the best chain. Listeners run synchronously on the caller of Add
// and must not block (spec.md §5).
func (bc *BlockChain) AddBlockConnectedListener(l BlockConnectedListener) {
	bc.blockConnectedListeners = append(bc.blockConnectedListeners, l)
}

// AddReorganizeListener registers a listener invoked after the best
// chain switches branches.
func (bc *BlockChain) AddReorganizeListener(l ReorganizeListener) {
	bc.reorganizeListeners = append(bc.reorganizeListeners, l)
}

func (bc *BlockChain) initGenesis() error {
	genesis := bc.params.GenesisBlock
	block := blockutil.NewBlock(genesis)
	if err := block.Verify(); err != nil {
		return verificationErrorf(ErrStructural, "invalid genesis block: %v", err)
	}

	stored := &store.StoredBlock{
		Header:    genesis.Header,
		ChainWork: blockutil.CalcWork(genesis.Header.Bits),
		Height:    0,
	}

	changes := &store.TransactionOutputChanges{}
	coinbase := genesis.Transactions[0]
	coinbaseHash := coinbase.TxHash()
	for i, txOut := range coinbase.TxOut {
		entry := &store.StoredTxOut{
			Hash:       coinbaseHash,
			Index:      uint32(i),
			Value:      txOut.Value,
			PkScript:   txOut.PkScript,
			Height:     0,
			IsCoinbase: true,
		}
		if err := bc.store.AddUnspentTransactionOutput(entry); err != nil {
			return &store.StoreError{Op: "AddUnspentTransactionOutput(genesis)", Err: err}
		}
		changes.Created = append(changes.Created, entry)
	}

	undoable := &store.StoredUndoableBlock{Transactions: genesis.Transactions, TxOutChanges: changes}
	if err := bc.store.Put(stored, undoable); err != nil {
		return &store.StoreError{Op: "Put(genesis)", Err: err}
	}
	if err := bc.store.SetChainHead(stored); err != nil {
		return &store.StoreError{Op: "SetChainHead(genesis)", Err: err}
	}
	if err := bc.store.SetVerifiedChainHead(stored); err != nil {
		return &store.StoreError{Op: "SetVerifiedChainHead(genesis)", Err: err}
	}
	return nil
}

// Add validates and stores block, returning true if it became (or
// remains) part of the best chain and false if it was buffered as an
// orphan or stored as a losing side branch (spec.md §4.4).
func (bc *BlockChain) Add(block *blockutil.Block) (bool, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := block.Verify(); err != nil {
		return false, verificationErrorf(ErrStructural, "%v", err)
	}
	return bc.addValidated(block)
}

func (bc *BlockChain) addValidated(block *blockutil.Block) (bool, error) {
	hash := *block.Hash()

	has, err := bc.store.Has(&hash)
	if err != nil {
		return false, &store.StoreError{Op: "Has", Err: err}
	}
	if has {
		return false, verificationErrorf(ErrDuplicateTransaction, "duplicate block %s", hash)
	}

	header := block.MsgBlock().Header
	parent, err := bc.store.Get(&header.PrevBlock)
	if err == store.ErrNotFound {
		if !bc.orphans.add(block) {
			return false, verificationErrorf(ErrStructural, "orphan buffer full, dropping block %s", hash)
		}
		return false, nil
	}
	if err != nil {
		return false, &store.StoreError{Op: "Get(parent)", Err: err}
	}

	if err := bc.contextValidate(&header, parent); err != nil {
		return false, err
	}

	candidate := &store.StoredBlock{
		Header:    header,
		ChainWork: new(big.Int).Add(parent.ChainWork, blockutil.CalcWork(header.Bits)),
		Height:    parent.Height + 1,
	}
	undoable := &store.StoredUndoableBlock{Transactions: block.MsgBlock().Transactions}
	if err := bc.store.Put(candidate, undoable); err != nil {
		return false, &store.StoreError{Op: "Put(candidate)", Err: err}
	}

	currentHead, err := bc.store.GetChainHead()
	if err != nil {
		return false, &store.StoreError{Op: "GetChainHead", Err: err}
	}
	currentHeadHash := currentHead.Hash()

	var connected bool
	switch {
	case header.PrevBlock == currentHeadHash:
		if err := bc.connectBlock(block, candidate); err != nil {
			return false, err
		}
		bc.notifyBlockConnected(block, candidate)
		connected = true

	case candidate.ChainWork.Cmp(currentHead.ChainWork) > 0:
		oldHead := currentHead
		if err := bc.reorganize(candidate, currentHead); err != nil {
			return false, err
		}
		bc.notifyReorganize(oldHead, candidate)
		connected = true

	default:
		return false, nil
	}

	bc.finalizeOldBlocks(candidate)
	bc.reprocessOrphans(hash)
	return connected, nil
}

func (bc *BlockChain) reprocessOrphans(parentHash chainhash.Hash) {
	for _, child := range bc.orphans.take(parentHash) {
		// Errors from buffered orphans are not propagated to the
		// original Add caller; they simply fail to connect.
		_, _ = bc.addValidated(child)
	}
}

func (bc *BlockChain) notifyBlockConnected(block *blockutil.Block, head *store.StoredBlock) {
	for _, l := range bc.blockConnectedListeners {
		l(block, head)
	}
}

func (bc *BlockChain) notifyReorganize(oldHead, newHead *store.StoredBlock) {
	for _, l := range bc.reorganizeListeners {
		l(oldHead, newHead)
	}
}

// contextValidate enforces spec.md §4.4 step 3: median-time ordering,
// difficulty retarget/continuity, and checkpoint agreement.
func (bc *BlockChain) contextValidate(header *wire.BlockHeader, parent *store.StoredBlock) error {
	medianTime, err := bc.medianTimePast(parent)
	if err != nil {
		return err
	}
	if !header.Timestamp.After(medianTime) {
		return verificationErrorf(ErrBadTimestamp,
			"block timestamp %s is not after median time past %s", header.Timestamp, medianTime)
	}
	if header.Timestamp.After(time.Now().Add(blockutil.MaxTimeOffset)) {
		return verificationErrorf(ErrBadTimestamp,
			"block timestamp %s is too far in the future", header.Timestamp)
	}

	height := parent.Height + 1
	wantBits, err := bc.nextWorkRequired(parent, height)
	if err != nil {
		return err
	}
	if header.Bits != wantBits {
		return verificationErrorf(ErrBadDifficulty,
			"block bits %08x does not match required %08x", header.Bits, wantBits)
	}

	headerHash := header.BlockHash()
	if cp := checkpointForHeight(bc.params, height); cp != nil && *cp.Hash != headerHash {
		return verificationErrorf(ErrCheckpointMismatch,
			"block at checkpointed height %d has hash %s, want %s", height, headerHash, cp.Hash)
	}
	return nil
}

func checkpointForHeight(p *params.Params, height uint32) *params.Checkpoint {
	for i := range p.Checkpoints {
		if p.Checkpoints[i].Height == height {
			return &p.Checkpoints[i]
		}
	}
	return nil
}

// nextWorkRequired computes the compact-form difficulty target required
// for the block at height, either continuity with parent.Bits or a
// recomputed retarget every RetargetInterval blocks.
func (bc *BlockChain) nextWorkRequired(parent *store.StoredBlock, height uint32) (uint32, error) {
	if height%bc.params.RetargetInterval != 0 {
		return parent.Header.Bits, nil
	}

	firstHeight := height - bc.params.RetargetInterval
	firstBlock, err := bc.ancestorAtHeight(parent, firstHeight)
	if err != nil {
		return 0, err
	}

	actualTimespan := parent.Header.Timestamp.Sub(firstBlock.Header.Timestamp)
	minTimespan := bc.params.TargetTimespan / params.RetargetAdjustmentFactor
	maxTimespan := bc.params.TargetTimespan * params.RetargetAdjustmentFactor
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	}
	if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := blockutil.CompactToBig(parent.Header.Bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(actualTimespan)))
	newTarget.Div(newTarget, big.NewInt(int64(bc.params.TargetTimespan)))
	if newTarget.Cmp(bc.params.PowLimit) > 0 {
		newTarget = bc.params.PowLimit
	}
	return blockutil.BigToCompact(newTarget), nil
}

// medianTimePast returns the median timestamp of the last
// medianTimeBlocks blocks ending at parent (inclusive).
func (bc *BlockChain) medianTimePast(parent *store.StoredBlock) (time.Time, error) {
	timestamps := make([]time.Time, 0, medianTimeBlocks)
	cur := parent
	for i := 0; i < medianTimeBlocks; i++ {
		timestamps = append(timestamps, cur.Header.Timestamp)
		if cur.Height == 0 {
			break
		}
		next, err := bc.store.Get(&cur.Header.PrevBlock)
		if err != nil {
			return time.Time{}, &store.StoreError{Op: "Get(ancestor)", Err: err}
		}
		cur = next
	}

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
	return timestamps[len(timestamps)/2], nil
}

// ancestorAtHeight walks backward from start until reaching height.
func (bc *BlockChain) ancestorAtHeight(start *store.StoredBlock, height uint32) (*store.StoredBlock, error) {
	if height > start.Height {
		return nil, AssertError("ancestorAtHeight: requested height above start height")
	}
	cur := start
	for cur.Height > height {
		next, err := bc.store.Get(&cur.Header.PrevBlock)
		if err != nil {
			return nil, &store.StoreError{Op: "Get(ancestor)", Err: err}
		}
		cur = next
	}
	return cur, nil
}

// Tip returns the current best chain's tip hash and height.
func (bc *BlockChain) Tip() (chainhash.Hash, int32, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	head, err := bc.store.GetChainHead()
	if err != nil {
		return chainhash.Hash{}, 0, &store.StoreError{Op: "GetChainHead", Err: err}
	}
	return head.Hash(), int32(head.Height), nil
}

// BlockLocator returns a set of block hashes used to find a divergence
// point with a remote peer's chain (spec.md §4.5, §4.6 block download):
// starting at the chain tip, walking back towards genesis with an
// exponentially increasing step once the first ten ancestors have been
// added.
func (bc *BlockChain) BlockLocator() ([]*chainhash.Hash, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	head, err := bc.store.GetChainHead()
	if err != nil {
		return nil, &store.StoreError{Op: "GetChainHead", Err: err}
	}

	var locator []*chainhash.Hash
	step := uint32(1)
	height := head.Height
	cur := head
	for {
		hash := cur.Hash()
		locator = append(locator, &hash)
		if height == 0 {
			break
		}
		if height < step {
			height = 0
		} else {
			height -= step
		}
		cur, err = bc.ancestorAtHeight(head, height)
		if err != nil {
			return nil, err
		}
		if len(locator) >= 10 {
			step *= 2
		}
	}
	return locator, nil
}

// subsidy returns the block reward at height under the halving schedule.
func (bc *BlockChain) subsidy(height uint32) int64 {
	const initialSubsidy = 50 * 100000000
	halvings := height / bc.params.SubsidyHalvingInterval
	if halvings >= 64 {
		return 0
	}
	return initialSubsidy >> halvings
}

// connectBlock applies block's transactions to the UTXO set, extending
// the current chain head to candidate (spec.md §4.4.1).
func (bc *BlockChain) connectBlock(block *blockutil.Block, candidate *store.StoredBlock) error {
	batch, err := bc.store.BeginDatabaseBatchWrite()
	if err != nil {
		return &store.StoreError{Op: "BeginDatabaseBatchWrite", Err: err}
	}

	changes, err := bc.applyTransactions(batch, candidate.Height, block.MsgBlock().Transactions)
	if err != nil {
		batch.AbortDatabaseBatchWrite()
		return err
	}

	undoable := &store.StoredUndoableBlock{Transactions: block.MsgBlock().Transactions, TxOutChanges: changes}
	if err := batch.Put(candidate, undoable); err != nil {
		batch.AbortDatabaseBatchWrite()
		return &store.StoreError{Op: "Put(undo)", Err: err}
	}
	if err := batch.SetChainHead(candidate); err != nil {
		batch.AbortDatabaseBatchWrite()
		return &store.StoreError{Op: "SetChainHead", Err: err}
	}
	if err := batch.CommitDatabaseBatchWrite(); err != nil {
		return &store.StoreError{Op: "CommitDatabaseBatchWrite", Err: err}
	}
	return nil
}

// applyTransactions validates and applies a block's transactions against
// the UTXO set visible through batch, returning the set of UTXO changes
// the block caused (spec.md §4.4.1): coinbase shape and subsidy cap,
// per-input UTXO lookup and coinbase-maturity, script verification, fee
// accounting, and the block-wide signature-operation budget.
func (bc *BlockChain) applyTransactions(batch *store.BatchStore, height uint32, txs []*wire.MsgTx) (*store.TransactionOutputChanges, error) {
	if len(txs) == 0 {
		return nil, verificationErrorf(ErrStructural, "block has no transactions")
	}

	seen := make(map[chainhash.Hash]bool, len(txs))
	for _, tx := range txs {
		hash := tx.TxHash()
		if seen[hash] {
			return nil, verificationErrorf(ErrDuplicateTransaction, "duplicate transaction %s within block", hash)
		}
		seen[hash] = true
	}

	changes := &store.TransactionOutputChanges{}
	sigOps := 0

	coinbase := txs[0]
	if len(coinbase.TxIn) != 1 {
		return nil, verificationErrorf(ErrStructural, "coinbase must have exactly one input")
	}
	cbIn := coinbase.TxIn[0]
	if cbIn.PreviousOutPoint.Index != 0xffffffff || cbIn.PreviousOutPoint.Hash != (chainhash.Hash{}) {
		return nil, verificationErrorf(ErrStructural, "coinbase input does not reference the null outpoint")
	}
	if len(cbIn.SignatureScript) > blockutil.MaxCoinbaseScriptLen {
		return nil, verificationErrorf(ErrStructural, "coinbase script signature too large")
	}

	if err := addOutputs(batch, coinbase, height, true, changes); err != nil {
		return nil, err
	}

	var totalFees int64
	for _, tx := range txs[1:] {
		var inputTotal int64
		for _, in := range tx.TxIn {
			utxo, err := batch.GetTransactionOutput(&in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)
			if err == store.ErrNotFound {
				return nil, verificationErrorf(ErrDoubleSpend,
					"input %s:%d spends an output that is missing or already spent",
					in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)
			}
			if err != nil {
				return nil, &store.StoreError{Op: "GetTransactionOutput", Err: err}
			}
			if utxo.IsCoinbase && height-utxo.Height < bc.params.SpendableCoinbaseDepth {
				return nil, verificationErrorf(ErrCoinbaseImmature,
					"input %s:%d spends an immature coinbase output (height %d, spend height %d)",
					in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index, utxo.Height, height)
			}
			if err := bc.verify(in.SignatureScript, utxo.PkScript, tx, indexOf(tx, in)); err != nil {
				return nil, verificationErrorf(ErrInvalidScript, "%v", err)
			}

			if err := batch.RemoveUnspentTransactionOutput(&in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index); err != nil {
				return nil, &store.StoreError{Op: "RemoveUnspentTransactionOutput", Err: err}
			}
			changes.Spent = append(changes.Spent, utxo)
			sigOps += countSigOps(utxo.PkScript)

			if inputTotal > blockutil.MaxSatoshi-utxo.Value {
				return nil, verificationErrorf(ErrValueOverflow, "transaction %s input total overflows", tx.TxHash())
			}
			inputTotal += utxo.Value
		}

		var outputTotal int64
		for _, out := range tx.TxOut {
			if out.Value < 0 || out.Value > blockutil.MaxSatoshi {
				return nil, verificationErrorf(ErrValueOverflow, "transaction %s has an out-of-range output value", tx.TxHash())
			}
			if outputTotal > blockutil.MaxSatoshi-out.Value {
				return nil, verificationErrorf(ErrValueOverflow, "transaction %s output total overflows", tx.TxHash())
			}
			outputTotal += out.Value
			sigOps += countSigOps(out.PkScript)
		}

		if outputTotal > inputTotal {
			return nil, verificationErrorf(ErrValueOverflow,
				"transaction %s spends %d but only has %d available", tx.TxHash(), outputTotal, inputTotal)
		}
		totalFees += inputTotal - outputTotal

		// Added as soon as tx's own inputs are processed, so a later
		// transaction in this same block may spend it (spec.md §4.4.1).
		if err := addOutputs(batch, tx, height, false, changes); err != nil {
			return nil, err
		}
	}

	var coinbaseTotal int64
	for _, out := range coinbase.TxOut {
		if out.Value < 0 || out.Value > blockutil.MaxSatoshi {
			return nil, verificationErrorf(ErrValueOverflow, "coinbase has an out-of-range output value")
		}
		coinbaseTotal += out.Value
		sigOps += countSigOps(out.PkScript)
	}
	if coinbaseTotal > bc.subsidy(height)+totalFees {
		return nil, verificationErrorf(ErrValueOverflow,
			"coinbase pays %d, exceeding subsidy %d plus fees %d", coinbaseTotal, bc.subsidy(height), totalFees)
	}

	if sigOps > maxBlockSigOps {
		return nil, verificationErrorf(ErrTooManySigOps, "block has %d signature operations, limit %d", sigOps, maxBlockSigOps)
	}

	return changes, nil
}

// addOutputs adds tx's outputs to the UTXO set visible through batch,
// recording each in changes.Created. Called immediately after a
// transaction's own inputs are processed, so that a later transaction in
// the same block can validly spend its outputs (spec.md §4.4.1).
func addOutputs(batch *store.BatchStore, tx *wire.MsgTx, height uint32, isCoinbase bool, changes *store.TransactionOutputChanges) error {
	hash := tx.TxHash()
	for i, out := range tx.TxOut {
		entry := &store.StoredTxOut{
			Hash:       hash,
			Index:      uint32(i),
			Value:      out.Value,
			PkScript:   out.PkScript,
			Height:     height,
			IsCoinbase: isCoinbase,
		}
		if err := batch.AddUnspentTransactionOutput(entry); err != nil {
			return &store.StoreError{Op: "AddUnspentTransactionOutput", Err: err}
		}
		changes.Created = append(changes.Created, entry)
	}
	return nil
}

func indexOf(tx *wire.MsgTx, in *wire.TxIn) int {
	for i, candidate := range tx.TxIn {
		if candidate == in {
			return i
		}
	}
	return -1
}

// findForkPoint locates the most recent ancestor shared by candidate and
// head, walking the deeper chain up to equal height before proceeding in
// lockstep (spec.md §4.4.2).
func (bc *BlockChain) findForkPoint(candidate, head *store.StoredBlock) (*store.StoredBlock, error) {
	a, b := candidate, head
	var err error
	if a.Height > b.Height {
		a, err = bc.ancestorAtHeight(a, b.Height)
	} else if b.Height > a.Height {
		b, err = bc.ancestorAtHeight(b, a.Height)
	}
	if err != nil {
		return nil, err
	}

	for a.Hash() != b.Hash() {
		if a.Height == 0 {
			return nil, AssertError("findForkPoint: no common ancestor found")
		}
		a, err = bc.store.Get(&a.Header.PrevBlock)
		if err != nil {
			return nil, &store.StoreError{Op: "Get(ancestor)", Err: err}
		}
		b, err = bc.store.Get(&b.Header.PrevBlock)
		if err != nil {
			return nil, &store.StoreError{Op: "Get(ancestor)", Err: err}
		}
	}
	return a, nil
}

// reorganize switches the best chain from oldHead's branch to candidate's,
// disconnecting down to their fork point and reconnecting up the new
// branch (spec.md §4.4.2). If reconnecting fails partway through, the
// batch is aborted and oldHead remains the chain head.
func (bc *BlockChain) reorganize(candidate, oldHead *store.StoredBlock) error {
	forkPoint, err := bc.findForkPoint(candidate, oldHead)
	if err != nil {
		return err
	}

	newBranch, err := bc.branchAbove(candidate, forkPoint)
	if err != nil {
		return err
	}

	batch, err := bc.store.BeginDatabaseBatchWrite()
	if err != nil {
		return &store.StoreError{Op: "BeginDatabaseBatchWrite", Err: err}
	}

	cur := oldHead
	for cur.Hash() != forkPoint.Hash() {
		undo, err := batch.GetUndo(hashPtr(cur))
		if err != nil {
			batch.AbortDatabaseBatchWrite()
			return &store.StoreError{Op: "GetUndo", Err: err}
		}
		if undo.TxOutChanges == nil {
			batch.AbortDatabaseBatchWrite()
			return AssertError("reorganize: disconnecting a block with no recorded UTXO changes")
		}
		for _, out := range undo.TxOutChanges.Created {
			if err := batch.RemoveUnspentTransactionOutput(&out.Hash, out.Index); err != nil {
				batch.AbortDatabaseBatchWrite()
				return &store.StoreError{Op: "RemoveUnspentTransactionOutput", Err: err}
			}
		}
		for _, out := range undo.TxOutChanges.Spent {
			if err := batch.AddUnspentTransactionOutput(out); err != nil {
				batch.AbortDatabaseBatchWrite()
				return &store.StoreError{Op: "AddUnspentTransactionOutput", Err: err}
			}
		}

		parent, err := batch.Get(&cur.Header.PrevBlock)
		if err != nil {
			batch.AbortDatabaseBatchWrite()
			return &store.StoreError{Op: "Get(parent)", Err: err}
		}
		cur = parent
	}

	for _, sb := range newBranch {
		undo, err := batch.GetUndo(hashPtr(sb))
		if err != nil {
			batch.AbortDatabaseBatchWrite()
			return &store.StoreError{Op: "GetUndo", Err: err}
		}
		if undo.Transactions == nil {
			batch.AbortDatabaseBatchWrite()
			return AssertError("reorganize: reconnecting a block whose transactions were already finalized away")
		}

		changes, err := bc.applyTransactions(batch, sb.Height, undo.Transactions)
		if err != nil {
			batch.AbortDatabaseBatchWrite()
			return err
		}
		if err := batch.Put(sb, &store.StoredUndoableBlock{Transactions: undo.Transactions, TxOutChanges: changes}); err != nil {
			batch.AbortDatabaseBatchWrite()
			return &store.StoreError{Op: "Put(undo)", Err: err}
		}
	}

	if err := batch.SetChainHead(candidate); err != nil {
		batch.AbortDatabaseBatchWrite()
		return &store.StoreError{Op: "SetChainHead", Err: err}
	}
	return batch.CommitDatabaseBatchWrite()
}

// branchAbove returns the blocks strictly above forkPoint up to and
// including tip, ordered oldest first.
func (bc *BlockChain) branchAbove(tip, forkPoint *store.StoredBlock) ([]*store.StoredBlock, error) {
	var branch []*store.StoredBlock
	cur := tip
	for cur.Hash() != forkPoint.Hash() {
		branch = append(branch, cur)
		parent, err := bc.store.Get(&cur.Header.PrevBlock)
		if err != nil {
			return nil, &store.StoreError{Op: "Get(ancestor)", Err: err}
		}
		cur = parent
	}
	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}
	return branch, nil
}

func hashPtr(b *store.StoredBlock) *chainhash.Hash {
	h := b.Hash()
	return &h
}

// finalizeOldBlocks replaces the full transaction list of blocks that
// have fallen finalizationDepth behind head with just the
// TransactionOutputChanges they produced (spec.md §4.3, §4.4 step 6).
// Store I/O errors here are not surfaced to the Add caller: the chain
// state itself is already consistent, finalization is a space-saving
// cleanup that can be retried on a later call.
func (bc *BlockChain) finalizeOldBlocks(head *store.StoredBlock) {
	if head.Height < finalizationDepth {
		return
	}
	target, err := bc.ancestorAtHeight(head, head.Height-finalizationDepth)
	if err != nil {
		return
	}
	undo, err := bc.store.GetUndo(hashPtr(target))
	if err != nil || undo.IsFinalized() {
		return
	}
	_ = bc.store.Finalize(hashPtr(target), undo.TxOutChanges)
}
