// Package analytics turns raw delegation records into the stake-size flow
// graph and bucket statistics shown on the delegation-flow dashboard.
package analytics

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Link rescaling constants: value = max(LinkFloor, amount^LinkExponent * LinkScale).
const (
	LinkExponent = 0.25
	LinkScale    = 100.0
	LinkFloor    = 50.0
)

// Node colours for validator and group nodes
const (
	otherValidatorsColor = "#9CA3AF"
)

var validatorPalette = []string{
	"#2563EB", "#0EA5E9", "#14B8A6", "#22C55E", "#84CC16",
	"#EAB308", "#F97316", "#EF4444", "#EC4899", "#A855F7",
}

// Record is a single delegation as returned by the query layer.
type Record struct {
	Delegator        string
	Validator        string // display name
	ValidatorAddress string
	StakeAmount      float64 // token units, not fixed point
	StartTime        int64   // unix seconds
	EndTime          int64   // unix seconds, 0 while active
}

// ID derives a synthetic identity for the record.
func (r Record) ID() string {
	return r.Delegator + "|" + r.ValidatorAddress + "|" + strconv.FormatInt(r.StartTime, 10)
}

// Bucket is a fixed stake-size range keyed by its inclusive minimum.
type Bucket struct {
	Label     string
	Threshold float64
	Color     string
}

// buckets are ordered by descending threshold; the first satisfied one wins.
var buckets = [...]Bucket{
	{Label: "> 1M STRK", Threshold: 1_000_000, Color: "#7C3AED"},
	{Label: "> 10K STRK", Threshold: 10_000, Color: "#4F46E5"},
	{Label: "> 1K STRK", Threshold: 1_000, Color: "#0891B2"},
	{Label: "> 100 STRK", Threshold: 100, Color: "#059669"},
	{Label: "< 100 STRK", Threshold: 0, Color: "#65A30D"},
}

// Buckets returns the bucket definitions in evaluation order.
func Buckets() []Bucket {
	return slices.Clone(buckets[:])
}

// BucketFor returns the bucket an amount belongs to.
func BucketFor(amount float64) Bucket {
	return buckets[bucketIndex(amount)]
}

func bucketIndex(amount float64) int {
	for i, b := range buckets {
		if amount >= b.Threshold {
			return i
		}
	}
	return len(buckets) - 1
}

// Node is a vertex of the flow graph.
type Node struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

// Link is a weighted edge from a bucket to a validator or to the Other group.
type Link struct {
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Value         float64 `json:"value"`
	OriginalValue float64 `json:"originalValue"`
}

// Graph is the Sankey input.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// BucketStat summarises one non-empty bucket.
type BucketStat struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	TotalStake float64 `json:"totalStake"`
	Percentage float64 `json:"percentage"`
}

// Result is the output of Aggregate.
type Result struct {
	Graph       Graph        `json:"graph"`
	BucketStats []BucketStat `json:"bucketStats"`
}

// IsEmpty reports whether there is nothing to draw.
func (r Result) IsEmpty() bool {
	return len(r.Graph.Nodes) == 0
}

// OtherValidatorsID names the synthetic group node for n collapsed validators.
func OtherValidatorsID(n int) string {
	return fmt.Sprintf("Other Validators (%d)", n)
}

// ScaleLink applies the sub-linear rescaling used for link widths.
func ScaleLink(amount float64) float64 {
	return math.Max(LinkFloor, math.Pow(amount, LinkExponent)*LinkScale)
}

type validatorTotals struct {
	name      string
	total     float64
	perBucket [len(buckets)]float64
}

type bucketTotals struct {
	count int
	total float64
}

// Aggregate buckets every record, ranks validators by total stake and builds
// the flow graph. Ranking ties keep input encounter order. A non-positive
// topValidatorCount collapses every validator into the Other group.
func Aggregate(records []Record, topValidatorCount int) Result {
	var (
		perBucket [len(buckets)]bucketTotals
		ordered   []*validatorTotals
		byName    = make(map[string]*validatorTotals)
	)

	for _, r := range records {
		if !validAmount(r.StakeAmount) {
			continue
		}

		bi := bucketIndex(r.StakeAmount)
		perBucket[bi].count++
		perBucket[bi].total += r.StakeAmount

		// Zero stakes count toward bucket stats but never rank a validator.
		if r.StakeAmount == 0 {
			continue
		}

		v, ok := byName[r.Validator]
		if !ok {
			v = &validatorTotals{name: r.Validator}
			byName[r.Validator] = v
			ordered = append(ordered, v)
		}
		v.perBucket[bi] += r.StakeAmount
		v.total += r.StakeAmount
	}

	var grandTotal float64
	for _, b := range perBucket {
		grandTotal += b.total
	}
	if grandTotal <= 0 {
		return emptyResult()
	}

	ranked := slices.Clone(ordered)
	slices.SortStableFunc(ranked, func(a, b *validatorTotals) int {
		return cmp.Compare(b.total, a.total)
	})

	topCount := min(max(topValidatorCount, 0), len(ranked))
	top, others := ranked[:topCount], ranked[topCount:]

	result := Result{
		Graph: Graph{
			Nodes: make([]Node, 0, len(buckets)+len(top)+1),
			Links: []Link{},
		},
		BucketStats: make([]BucketStat, 0, len(buckets)),
	}

	for i, b := range buckets {
		if perBucket[i].count == 0 {
			continue
		}
		result.BucketStats = append(result.BucketStats, BucketStat{
			Label:      b.Label,
			Count:      perBucket[i].count,
			TotalStake: perBucket[i].total,
			Percentage: perBucket[i].total / grandTotal * 100,
		})
		result.Graph.Nodes = append(result.Graph.Nodes, Node{ID: b.Label, Color: b.Color})
	}

	for i, v := range top {
		result.Graph.Nodes = append(result.Graph.Nodes, Node{
			ID:    v.name,
			Color: validatorPalette[i%len(validatorPalette)],
		})
	}

	otherID := OtherValidatorsID(len(others))
	if len(others) > 0 {
		result.Graph.Nodes = append(result.Graph.Nodes, Node{ID: otherID, Color: otherValidatorsColor})
	}

	for i, b := range buckets {
		if perBucket[i].count == 0 {
			continue
		}

		for _, v := range top {
			if amount := v.perBucket[i]; amount > 0 {
				result.Graph.Links = append(result.Graph.Links, newLink(b.Label, v.name, amount))
			}
		}

		var otherAmount float64
		for _, v := range others {
			otherAmount += v.perBucket[i]
		}
		if otherAmount > 0 {
			result.Graph.Links = append(result.Graph.Links, newLink(b.Label, otherID, otherAmount))
		}
	}

	return result
}

func newLink(source, target string, amount float64) Link {
	return Link{
		Source:        source,
		Target:        target,
		Value:         ScaleLink(amount),
		OriginalValue: amount,
	}
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func emptyResult() Result {
	return Result{
		Graph:       Graph{Nodes: []Node{}, Links: []Link{}},
		BucketStats: []BucketStat{},
	}
}
