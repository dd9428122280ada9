package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/btcfullnode/node/util/chainhash"
	"github.com/btcfullnode/node/wire"
)

// Key prefixes for the flat key-value namespace this store occupies.
// Each record type gets its own prefix byte so that NewIterator(prefix)
// can scan just that record type.
const (
	prefixBlock       = 'b' // block hash -> encoded StoredBlock
	prefixUndo        = 'u' // block hash -> encoded StoredUndoableBlock
	prefixUTXO        = 'o' // outpoint (hash||index) -> encoded StoredTxOut
	keyChainHead      = "head"
	keyVerifiedHead   = "vhead"
)

func blockKey(hash *chainhash.Hash) []byte {
	k := make([]byte, 1+chainhash.HashSize)
	k[0] = prefixBlock
	copy(k[1:], hash[:])
	return k
}

func undoKey(hash *chainhash.Hash) []byte {
	k := make([]byte, 1+chainhash.HashSize)
	k[0] = prefixUndo
	copy(k[1:], hash[:])
	return k
}

func utxoKey(hash *chainhash.Hash, index uint32) []byte {
	k := make([]byte, 1+chainhash.HashSize+4)
	k[0] = prefixUTXO
	copy(k[1:], hash[:])
	binary.BigEndian.PutUint32(k[1+chainhash.HashSize:], index)
	return k
}

func encodeStoredBlock(b *StoredBlock) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Header.BtcEncode(&buf, 0); err != nil {
		return nil, err
	}
	workBytes := b.ChainWork.Bytes()
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(workBytes))); err != nil {
		return nil, err
	}
	if _, err := buf.Write(workBytes); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, b.Height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeStoredBlock(data []byte) (*StoredBlock, error) {
	r := bytes.NewReader(data)
	var hdr wire.BlockHeader
	if err := hdr.BtcDecode(r, 0); err != nil {
		return nil, err
	}
	var workLen uint32
	if err := binary.Read(r, binary.BigEndian, &workLen); err != nil {
		return nil, err
	}
	workBytes := make([]byte, workLen)
	if _, err := io.ReadFull(r, workBytes); err != nil {
		return nil, err
	}
	var height uint32
	if err := binary.Read(r, binary.BigEndian, &height); err != nil {
		return nil, err
	}
	return &StoredBlock{
		Header:    hdr,
		ChainWork: new(big.Int).SetBytes(workBytes),
		Height:    height,
	}, nil
}

func encodeTxOut(o *StoredTxOut) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.Write(o.Hash[:]); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, o.Index); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, o.Value); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(o.PkScript))); err != nil {
		return nil, err
	}
	if _, err := buf.Write(o.PkScript); err != nil {
		return nil, err
	}
	var isCoinbase byte
	if o.IsCoinbase {
		isCoinbase = 1
	}
	if err := buf.WriteByte(isCoinbase); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, o.Height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTxOut(data []byte) (*StoredTxOut, error) {
	r := bytes.NewReader(data)
	o := &StoredTxOut{}
	if _, err := io.ReadFull(r, o.Hash[:]); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &o.Index); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &o.Value); err != nil {
		return nil, err
	}
	var scriptLen uint32
	if err := binary.Read(r, binary.BigEndian, &scriptLen); err != nil {
		return nil, err
	}
	o.PkScript = make([]byte, scriptLen)
	if _, err := io.ReadFull(r, o.PkScript); err != nil {
		return nil, err
	}
	isCoinbase, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	o.IsCoinbase = isCoinbase != 0
	if err := binary.Read(r, binary.BigEndian, &o.Height); err != nil {
		return nil, err
	}
	return o, nil
}

// encodeUndoableBlock serializes a StoredUndoableBlock. The leading byte
// distinguishes the pre-finalization full-transactions form from the
// post-finalization TransactionOutputChanges form.
func encodeUndoableBlock(u *StoredUndoableBlock) ([]byte, error) {
	var buf bytes.Buffer
	if u.IsFinalized() {
		if err := buf.WriteByte(1); err != nil {
			return nil, err
		}
		if err := encodeTxOutChanges(&buf, u.TxOutChanges); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if err := buf.WriteByte(0); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(u.Transactions))); err != nil {
		return nil, err
	}
	for _, tx := range u.Transactions {
		txBuf := bytes.NewBuffer(nil)
		if err := tx.BtcEncode(txBuf, 0); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(txBuf.Len())); err != nil {
			return nil, err
		}
		if _, err := buf.Write(txBuf.Bytes()); err != nil {
			return nil, err
		}
	}

	changes := u.TxOutChanges
	if changes == nil {
		changes = &TransactionOutputChanges{}
	}
	if err := encodeTxOutChanges(&buf, changes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeUndoableBlock(data []byte) (*StoredUndoableBlock, error) {
	r := bytes.NewReader(data)
	form, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if form == 1 {
		changes, err := decodeTxOutChanges(r)
		if err != nil {
			return nil, err
		}
		return &StoredUndoableBlock{TxOutChanges: changes}, nil
	}
	if form != 0 {
		return nil, fmt.Errorf("store: unknown undoable block encoding form %d", form)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	txs := make([]*wire.MsgTx, count)
	for i := range txs {
		var txLen uint32
		if err := binary.Read(r, binary.BigEndian, &txLen); err != nil {
			return nil, err
		}
		txBytes := make([]byte, txLen)
		if _, err := io.ReadFull(r, txBytes); err != nil {
			return nil, err
		}
		tx := wire.NewMsgTx(wire.TxVersion)
		if err := tx.BtcDecode(bytes.NewReader(txBytes), 0); err != nil {
			return nil, err
		}
		txs[i] = tx
	}

	changes, err := decodeTxOutChanges(r)
	if err != nil {
		return nil, err
	}
	return &StoredUndoableBlock{Transactions: txs, TxOutChanges: changes}, nil
}

func encodeTxOutChanges(buf *bytes.Buffer, changes *TransactionOutputChanges) error {
	if err := encodeTxOutList(buf, changes.Spent); err != nil {
		return err
	}
	return encodeTxOutList(buf, changes.Created)
}

func encodeTxOutList(buf *bytes.Buffer, list []*StoredTxOut) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(list))); err != nil {
		return err
	}
	for _, o := range list {
		enc, err := encodeTxOut(o)
		if err != nil {
			return err
		}
		if err := binary.Write(buf, binary.BigEndian, uint32(len(enc))); err != nil {
			return err
		}
		if _, err := buf.Write(enc); err != nil {
			return err
		}
	}
	return nil
}

func decodeTxOutChanges(r *bytes.Reader) (*TransactionOutputChanges, error) {
	spent, err := decodeTxOutList(r)
	if err != nil {
		return nil, err
	}
	created, err := decodeTxOutList(r)
	if err != nil {
		return nil, err
	}
	return &TransactionOutputChanges{Spent: spent, Created: created}, nil
}

func decodeTxOutList(r *bytes.Reader) ([]*StoredTxOut, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	list := make([]*StoredTxOut, count)
	for i := range list {
		var entryLen uint32
		if err := binary.Read(r, binary.BigEndian, &entryLen); err != nil {
			return nil, err
		}
		entry := make([]byte, entryLen)
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, err
		}
		o, err := decodeTxOut(entry)
		if err != nil {
			return nil, err
		}
		list[i] = o
	}
	return list, nil
}
