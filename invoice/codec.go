package invoice

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// storedRecord is the persisted form of Record. Amounts are fixed 32-byte
// big-endian words so the encoding does not depend on uint256's text format.
type storedRecord struct {
	ID           [32]byte
	Merchant     [20]byte
	Receiver     [20]byte
	TokenOut     [20]byte
	AmountOut    [32]byte
	Deadline     uint64
	Ref          [32]byte
	Nonce        uint64
	Memo         string
	CreatedAt    uint64
	Status       uint8
	SettlementTx [32]byte
}

func encodeRecord(r *Record) ([]byte, error) {
	s := storedRecord{
		ID:           r.ID,
		Merchant:     r.Merchant,
		Receiver:     r.Receiver,
		TokenOut:     r.TokenOut,
		Deadline:     r.Deadline,
		Ref:          r.Ref,
		Nonce:        r.Nonce,
		Memo:         r.Memo,
		CreatedAt:    r.CreatedAt,
		Status:       uint8(r.Status),
		SettlementTx: r.SettlementTx,
	}
	if r.AmountOut != nil {
		s.AmountOut = r.AmountOut.Bytes32()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&s); err != nil {
		return nil, fmt.Errorf("invoice: encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	var s storedRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return &Record{
		ID:           common.Hash(s.ID),
		Merchant:     common.Address(s.Merchant),
		Receiver:     common.Address(s.Receiver),
		TokenOut:     common.Address(s.TokenOut),
		AmountOut:    new(uint256.Int).SetBytes32(s.AmountOut[:]),
		Deadline:     s.Deadline,
		Ref:          common.Hash(s.Ref),
		Nonce:        s.Nonce,
		Memo:         s.Memo,
		CreatedAt:    s.CreatedAt,
		Status:       Status(s.Status),
		SettlementTx: common.Hash(s.SettlementTx),
	}, nil
}

func encodeNonce(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func decodeNonce(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: nonce is %d bytes", ErrCorruptRecord, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
