package starknet

import (
	"context"
	"fmt"
	"time"
)

// BlockLatest selects the most recent block.
const BlockLatest = "latest"

// FunctionCall is a read-only contract invocation.
type FunctionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// BlockID addresses a block by number, or by tag when Number is nil.
type BlockID struct {
	Number *uint64
	Tag    string
}

// MarshalJSON renders either {"block_number": n} or the tag string.
func (b BlockID) MarshalJSON() ([]byte, error) {
	if b.Number != nil {
		return fmt.Appendf(nil, `{"block_number":%d}`, *b.Number), nil
	}
	tag := b.Tag
	if tag == "" {
		tag = BlockLatest
	}
	return fmt.Appendf(nil, "%q", tag), nil
}

// AtBlock returns a BlockID for block n.
func AtBlock(n uint64) BlockID {
	return BlockID{Number: &n}
}

// EventFilter selects emitted events for starknet_getEvents.
type EventFilter struct {
	FromBlock         BlockID    `json:"from_block"`
	ToBlock           BlockID    `json:"to_block"`
	Address           string     `json:"address,omitempty"`
	Keys              [][]string `json:"keys,omitempty"`
	ChunkSize         int        `json:"chunk_size"`
	ContinuationToken string     `json:"continuation_token,omitempty"`
}

// EmittedEvent is a single event as returned by starknet_getEvents.
type EmittedEvent struct {
	FromAddress     string   `json:"from_address"`
	Keys            []string `json:"keys"`
	Data            []string `json:"data"`
	BlockNumber     uint64   `json:"block_number"`
	BlockHash       string   `json:"block_hash"`
	TransactionHash string   `json:"transaction_hash"`
}

// EventsChunk is one page of events.
type EventsChunk struct {
	Events            []EmittedEvent `json:"events"`
	ContinuationToken string         `json:"continuation_token"`
}

// Call invokes a view function at the latest block.
func (c *Client) Call(ctx context.Context, fc FunctionCall) ([]string, error) {
	if fc.Calldata == nil {
		fc.Calldata = []string{}
	}
	params := map[string]any{
		"request":  fc,
		"block_id": BlockID{Tag: BlockLatest},
	}

	var result []string
	if err := c.call(ctx, "starknet_call", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// BlockNumber returns the most recent accepted block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	if err := c.call(ctx, "starknet_blockNumber", []any{}, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// BlockTimestamp returns the timestamp of block n.
func (c *Client) BlockTimestamp(ctx context.Context, n uint64) (time.Time, error) {
	var block struct {
		Timestamp int64 `json:"timestamp"`
	}
	params := map[string]any{"block_id": AtBlock(n)}
	if err := c.call(ctx, "starknet_getBlockWithTxHashes", params, &block); err != nil {
		return time.Time{}, err
	}
	return time.Unix(block.Timestamp, 0).UTC(), nil
}

// GetEvents returns one page of events matching filter.
func (c *Client) GetEvents(ctx context.Context, filter EventFilter) (EventsChunk, error) {
	var chunk EventsChunk
	params := map[string]any{"filter": filter}
	if err := c.call(ctx, "starknet_getEvents", params, &chunk); err != nil {
		return EventsChunk{}, err
	}
	return chunk, nil
}
