// Package journal keeps a durable record of every transaction the pipeline signs, keyed by
// hash and listed per sender.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/txpipe/pipeline"
	"github.com/airchains-network/txpipe/types"
)

const (
	txPrefix     = "tx:"
	senderPrefix = "sender:"
)

var ErrRecordNotFound = fmt.Errorf("%w: no journal record", types.ErrValidation)

// Record is the latest known state of one transaction
type Record struct {
	Hash        common.Hash    `json:"hash"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Nonce       uint64         `json:"nonce"`
	Kind        string         `json:"kind"`
	Value       string         `json:"value"`
	State       string         `json:"state"`
	BlockNumber uint64         `json:"blockNumber,omitempty"`
	GasUsed     uint64         `json:"gasUsed,omitempty"`
	Fee         string         `json:"fee,omitempty"`
	Error       string         `json:"error,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type Journal struct {
	db  DB
	log *logrus.Logger
}

func New(db DB, log *logrus.Logger) *Journal {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Journal{db: db, log: log}
}

// Observe records transitions of signed transactions. Storage failures are logged, never
// propagated into the pipeline.
func (j *Journal) Observe(e pipeline.Event) {
	if e.Hash == (common.Hash{}) {
		return
	}
	if err := j.Save(recordFromEvent(e)); err != nil {
		j.log.Errorf("Failed to journal %s: %v", e.Hash.Hex(), err)
	}
}

func recordFromEvent(e pipeline.Event) *Record {
	r := &Record{
		Hash:      e.Hash,
		From:      e.From,
		To:        e.To,
		Nonce:     e.Nonce,
		Kind:      e.Kind.String(),
		State:     e.State.String(),
		UpdatedAt: e.At.UTC(),
	}
	if e.Value != nil {
		r.Value = e.Value.String()
	}
	if e.Receipt != nil {
		r.BlockNumber = e.Receipt.BlockNumber
		r.GasUsed = e.Receipt.GasUsed
		if fee := e.Receipt.Fee(); fee != nil {
			r.Fee = fee.String()
		}
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}
	return r
}

// Save stores r, replacing any earlier record of the same hash
func (j *Journal) Save(r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode record: %v", err)
	}
	if err := j.db.Put(txKey(r.Hash), data); err != nil {
		return fmt.Errorf("failed to store record: %v", err)
	}
	if err := j.db.Put(senderKey(r.From, r.Nonce, r.Hash), r.Hash.Bytes()); err != nil {
		return fmt.Errorf("failed to index record: %v", err)
	}
	return nil
}

// Get returns the record of hash
func (j *Journal) Get(hash common.Hash) (*Record, error) {
	data, err := j.db.Get(txKey(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, hash.Hex())
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %v", err)
	}
	return &r, nil
}

// BySender lists every record sent from addr in nonce order
func (j *Journal) BySender(addr common.Address) ([]*Record, error) {
	var records []*Record
	err := j.db.Scan([]byte(senderPrefix+strings.ToLower(addr.Hex())+":"), func(_, value []byte) error {
		r, err := j.Get(common.BytesToHash(value))
		if err != nil {
			return err
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func txKey(hash common.Hash) []byte {
	return []byte(txPrefix + hash.Hex())
}

// senderKey sorts by nonce because the nonce is zero padded
func senderKey(from common.Address, nonce uint64, hash common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", senderPrefix, strings.ToLower(from.Hex()), nonce, hash.Hex()))
}
