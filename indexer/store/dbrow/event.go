package dbrow

import (
	"time"

	"github.com/screwyprof/stakeflow/indexer"
)

// EventColumns lists the staging table columns in CopyFrom order.
var EventColumns = []string{
	"transaction_hash",
	"pool_address",
	"event_index",
	"block_number",
	"block_time",
	"kind",
	"delegator",
	"amount",
	"exit_time",
}

// Event represents a delegation event as staged for insertion.
// Amounts travel as base-10 text and are cast to NUMERIC on insert.
type Event struct {
	TransactionHash string     `db:"transaction_hash"`
	PoolAddress     string     `db:"pool_address"`
	EventIndex      int32      `db:"event_index"`
	BlockNumber     int64      `db:"block_number"`
	BlockTime       time.Time  `db:"block_time"`
	Kind            string     `db:"kind"`
	Delegator       string     `db:"delegator"`
	Amount          string     `db:"amount"`
	ExitTime        *time.Time `db:"exit_time"`
}

// FromIndexerEvent converts a decoded event into its row form.
func FromIndexerEvent(ev indexer.DelegationEvent) Event {
	amount := "0"
	if ev.Amount != nil {
		amount = ev.Amount.String()
	}
	return Event{
		TransactionHash: ev.TransactionHash,
		PoolAddress:     ev.PoolAddress,
		EventIndex:      int32(ev.EventIndex),
		BlockNumber:     int64(ev.BlockNumber),
		BlockTime:       ev.Timestamp,
		Kind:            string(ev.Kind),
		Delegator:       ev.Delegator,
		Amount:          amount,
		ExitTime:        ev.ExitTime,
	}
}

// Values returns the row in EventColumns order.
func (e Event) Values() []any {
	return []any{
		e.TransactionHash,
		e.PoolAddress,
		e.EventIndex,
		e.BlockNumber,
		e.BlockTime,
		e.Kind,
		e.Delegator,
		e.Amount,
		e.ExitTime,
	}
}

// EventsToRows converts indexer events directly to [][]any for pgx.CopyFromRows
func EventsToRows(events []indexer.DelegationEvent) [][]any {
	rows := make([][]any, len(events))
	for i, ev := range events {
		rows[i] = FromIndexerEvent(ev).Values()
	}
	return rows
}
