package staking

import (
	"context"
	"log/slog"
)

// StakeRecord mirrors one confirmed delegation leg.
type StakeRecord struct {
	TransactionHash     string
	SenderAddress       string
	PoolContractAddress string
	AmountStaked        string
}

// RecordStore persists stake records.
type RecordStore interface {
	SaveStakeRecords(ctx context.Context, records []StakeRecord) error
}

// RecordOutcome reports whether the mirror write succeeded.
type RecordOutcome struct {
	Persisted bool `json:"persisted"`
	Records   int  `json:"records"`
}

// Recorder writes stake records after a transaction is confirmed.
type Recorder struct {
	store  RecordStore
	logger *slog.Logger
}

// NewRecorder creates a Recorder. A nil logger uses slog.Default.
func NewRecorder(store RecordStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// RecordStake persists one record per plan leg. The stake already happened on
// chain, so a failed write is logged and reported, never returned as an error.
func (r *Recorder) RecordStake(ctx context.Context, txHash, sender string, plan CallPlan) RecordOutcome {
	records := RecordsFor(txHash, sender, plan.Legs)
	if len(records) == 0 {
		return RecordOutcome{}
	}

	if err := r.store.SaveStakeRecords(ctx, records); err != nil {
		r.logger.ErrorContext(ctx, "Failed to persist stake records",
			slog.String("tx_hash", txHash),
			slog.String("sender", sender),
			slog.Int("records", len(records)),
			slog.Any("error", err),
		)
		return RecordOutcome{Records: len(records)}
	}

	r.logger.InfoContext(ctx, "Stake recorded",
		slog.String("tx_hash", txHash),
		slog.Int("records", len(records)),
	)
	return RecordOutcome{Persisted: true, Records: len(records)}
}

// RecordsFor derives the records of a confirmed plan. In split mode the
// transaction hash gets a role suffix so both legs stay unique.
func RecordsFor(txHash, sender string, legs []Leg) []StakeRecord {
	records := make([]StakeRecord, 0, len(legs))
	for _, leg := range legs {
		hash := txHash
		if len(legs) > 1 {
			hash = txHash + "-" + leg.Role
		}
		records = append(records, StakeRecord{
			TransactionHash:     hash,
			SenderAddress:       sender,
			PoolContractAddress: leg.PoolAddress,
			AmountStaked:        leg.Amount.String(),
		})
	}
	return records
}
