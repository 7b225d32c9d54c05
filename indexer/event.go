package indexer

import (
	"fmt"
	"math/big"
	"time"

	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// EventKind names the pool events the indexer understands.
type EventKind string

const (
	KindNewPoolMember  EventKind = "new_pool_member"
	KindBalanceChanged EventKind = "balance_changed"
	KindExitIntent     EventKind = "exit_intent"
)

// Event names as declared by the delegation pool contract
const (
	NewPoolMemberEvent            = "NewPoolMember"
	PoolMemberBalanceChangedEvent = "PoolMemberBalanceChanged"
	PoolMemberExitIntentEvent     = "PoolMemberExitIntent"
)

var kindsBySelector = map[string]EventKind{
	starknet.Selector(NewPoolMemberEvent):            KindNewPoolMember,
	starknet.Selector(PoolMemberBalanceChangedEvent): KindBalanceChanged,
	starknet.Selector(PoolMemberExitIntentEvent):     KindExitIntent,
}

// EventKeys is the starknet_getEvents key filter matching every watched event.
func EventKeys() [][]string {
	return [][]string{{
		starknet.Selector(NewPoolMemberEvent),
		starknet.Selector(PoolMemberBalanceChangedEvent),
		starknet.Selector(PoolMemberExitIntentEvent),
	}}
}

// DelegationEvent is a decoded pool event. Amount is the member's delegated
// stake after the event, or the exiting amount for exit intents.
type DelegationEvent struct {
	TransactionHash string
	EventIndex      int
	BlockNumber     uint64
	Timestamp       time.Time
	PoolAddress     string
	Kind            EventKind
	Delegator       string
	Staker          string
	RewardAddress   string
	Amount          *big.Int
	ExitTime        *time.Time
}

// decodeEvent decodes a raw event. index disambiguates several events of the
// same pool within one transaction.
func decodeEvent(ev starknet.EmittedEvent, index int) (DelegationEvent, error) {
	if len(ev.Keys) < 2 {
		return DelegationEvent{}, fmt.Errorf("%w: tx %s: %d keys", ErrDecodeFailed, ev.TransactionHash, len(ev.Keys))
	}

	kind, ok := kindsBySelector[starknet.NormalizeAddress(ev.Keys[0])]
	if !ok {
		return DelegationEvent{}, fmt.Errorf("%w: tx %s: unknown selector %s", ErrDecodeFailed, ev.TransactionHash, ev.Keys[0])
	}

	out := DelegationEvent{
		TransactionHash: starknet.NormalizeAddress(ev.TransactionHash),
		EventIndex:      index,
		BlockNumber:     ev.BlockNumber,
		PoolAddress:     starknet.NormalizeAddress(ev.FromAddress),
		Kind:            kind,
		Delegator:       starknet.NormalizeAddress(ev.Keys[1]),
	}

	data, err := parseFelts(ev.Data, 2)
	if err != nil {
		return DelegationEvent{}, fmt.Errorf("%w: tx %s: %s: %w", ErrDecodeFailed, ev.TransactionHash, kind, err)
	}

	switch kind {
	case KindNewPoolMember:
		if len(ev.Keys) > 2 {
			out.Staker = starknet.NormalizeAddress(ev.Keys[2])
		}
		out.RewardAddress = starknet.FeltHex(data[0])
		out.Amount = data[1]
	case KindBalanceChanged:
		out.Amount = data[1]
	case KindExitIntent:
		if !data[0].IsInt64() {
			return DelegationEvent{}, fmt.Errorf("%w: tx %s: exit timestamp out of range", ErrDecodeFailed, ev.TransactionHash)
		}
		exit := time.Unix(data[0].Int64(), 0).UTC()
		out.ExitTime = &exit
		out.Amount = data[1]
	}

	return out, nil
}

func parseFelts(raw []string, want int) ([]*big.Int, error) {
	if len(raw) < want {
		return nil, fmt.Errorf("expected %d data felts, got %d", want, len(raw))
	}
	out := make([]*big.Int, want)
	for i := range want {
		n, err := starknet.ParseFelt(raw[i])
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
