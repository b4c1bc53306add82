package pipeline

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/txpipe/txn"
	"github.com/airchains-network/txpipe/types"
)

// State is the position of a Run in the transaction lifecycle
type State int

const (
	StateBuilt State = iota
	StateSigned
	StateSubmitted
	StateConfirmed
	StateReverted
	StateTimedOut
	StateRejected
	StateAborted
)

var stateNames = map[State]string{
	StateBuilt:     "built",
	StateSigned:    "signed",
	StateSubmitted: "submitted",
	StateConfirmed: "confirmed",
	StateReverted:  "reverted",
	StateTimedOut:  "timed-out",
	StateRejected:  "rejected",
	StateAborted:   "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Final reports whether no further transition can leave s. TimedOut is not final: the
// transaction may still be included and the receipt awaited again. Aborted runs gave their
// nonce back before reaching the node.
func (s State) Final() bool {
	return s == StateConfirmed || s == StateReverted || s == StateRejected || s == StateAborted
}

// Event describes one transition of a Run
type Event struct {
	Hash     common.Hash
	From     common.Address
	To       common.Address
	Nonce    uint64
	Kind     txn.Kind
	Value    *big.Int
	Previous State
	State    State
	Receipt  *types.Receipt
	Err      error
	At       time.Time
}

// Observer receives every transition. Observe is called synchronously and in order for a
// given Run, so implementations must not block.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// LogObserver writes each transition to log
func LogObserver(log *logrus.Logger) Observer {
	return ObserverFunc(func(e Event) {
		entry := log.WithFields(logrus.Fields{
			"nonce": e.Nonce,
			"from":  e.From.Hex(),
			"to":    e.To.Hex(),
		})
		switch e.State {
		case StateBuilt:
			entry.Debugf("Built %s", e.Kind)
		case StateSigned:
			entry.Debugf("Signed transaction %s", e.Hash.Hex())
		case StateSubmitted:
			entry.Infof("Transaction %s submitted", e.Hash.Hex())
		case StateConfirmed:
			entry.Infof("Transaction %s confirmed in block %d", e.Hash.Hex(), e.Receipt.BlockNumber)
		case StateReverted:
			entry.Warnf("Transaction %s reverted in block %d", e.Hash.Hex(), e.Receipt.BlockNumber)
		case StateTimedOut:
			entry.Warnf("No receipt for %s yet: %v", e.Hash.Hex(), e.Err)
		case StateRejected:
			entry.Errorf("Transaction %s rejected: %v", e.Hash.Hex(), e.Err)
		case StateAborted:
			entry.Warnf("Aborted %s before submission: %v", e.Kind, e.Err)
		}
	})
}
