package pgxstore

import (
	"fmt"

	"github.com/screwyprof/stakeflow/web/strk"
)

// SQL queries
const (
	baseValidatorsQuery = "SELECT address, name, pool_address, commission, total_stake::text AS total_stake, delegator_count FROM validator_stats"

	baseFlowRecordsQuery = `SELECT d.delegator, v.name, d.pool_address, d.amount::text AS amount, d.start_time, d.end_time
		FROM delegations d
		JOIN validators v ON v.pool_address = d.pool_address
		WHERE d.amount > 0`
)

// sortColumns maps sort fields onto validator_stats columns. Only these ever
// reach the ORDER BY clause.
var sortColumns = map[strk.SortField]string{
	strk.SortName:           "name",
	strk.SortTotalStake:     "total_stake",
	strk.SortDelegatorCount: "delegator_count",
	strk.SortCommission:     "commission",
}

// QueryBuilder provides a small DSL for building parameterised queries
type QueryBuilder struct {
	sql   string
	args  []any
	where bool
}

// NewValidatorsQuery creates a query over validator_stats
func NewValidatorsQuery() *QueryBuilder {
	return &QueryBuilder{sql: baseValidatorsQuery}
}

// NewFlowRecordsQuery creates a query over active delegations
func NewFlowRecordsQuery() *QueryBuilder {
	return &QueryBuilder{sql: baseFlowRecordsQuery, where: true}
}

// ForCriteria applies the validators criteria to the query in one fluent call
func (q *QueryBuilder) ForCriteria(criteria strk.ValidatorsCriteria) *QueryBuilder {
	return q.
		orderBy(criteria.Sort, criteria.Order).
		paginateWithDetection(criteria)
}

// Bottom selects the n validators with the least stake
func (q *QueryBuilder) Bottom(n int) *QueryBuilder {
	q = q.orderBy(strk.SortTotalStake, strk.OrderAsc)
	q.addParameter("LIMIT $%d", n)
	return q
}

// ForDateRange keeps delegations that started inside the range. Open bounds are skipped.
func (q *QueryBuilder) ForDateRange(r strk.DateRange) *QueryBuilder {
	if !r.From.IsZero() {
		q.addWhereCondition("d.start_time >= $%d", r.From)
	}
	if until := r.Until(); !until.IsZero() {
		q.addWhereCondition("d.start_time < $%d", until)
	}
	q.sql += " ORDER BY d.start_time, d.delegator, d.pool_address"
	return q
}

// orderBy adds a whitelisted ordering with the address as tie-breaker so
// pages never overlap
func (q *QueryBuilder) orderBy(sort strk.SortField, order strk.SortOrder) *QueryBuilder {
	column, ok := sortColumns[sort]
	if !ok {
		column = sortColumns[strk.SortTotalStake]
	}

	direction := "DESC"
	if order == strk.OrderAsc {
		direction = "ASC"
	}

	q.sql += fmt.Sprintf(" ORDER BY %s %s, address ASC", column, direction)
	return q
}

// paginateWithDetection adds pagination with "has more" detection using LIMIT n+1
func (q *QueryBuilder) paginateWithDetection(criteria strk.ValidatorsCriteria) *QueryBuilder {
	// Request one extra item to detect if there are more pages
	limit := criteria.ItemsPerPage() + 1
	offset := criteria.ItemsToSkip()

	q.addParameter("LIMIT $%d", limit)

	if offset > 0 {
		q.addParameter("OFFSET $%d", offset)
	}

	return q
}

// Build returns the final SQL query and arguments
func (q *QueryBuilder) Build() (string, []any) {
	return q.sql, q.args
}

// addWhereCondition adds a WHERE condition, handling AND logic automatically
func (q *QueryBuilder) addWhereCondition(sqlClause string, value any) {
	placeholder := q.nextPlaceholder()

	if q.where {
		q.sql += " AND " + fmt.Sprintf(sqlClause, placeholder)
	} else {
		q.sql += " WHERE " + fmt.Sprintf(sqlClause, placeholder)
		q.where = true
	}

	q.args = append(q.args, value)
}

// addParameter adds a SQL clause with a parameter
func (q *QueryBuilder) addParameter(sqlClause string, value any) {
	placeholder := q.nextPlaceholder()
	q.sql += " " + fmt.Sprintf(sqlClause, placeholder)
	q.args = append(q.args, value)
}

// nextPlaceholder returns the next PostgreSQL placeholder ($1, $2, etc.)
func (q *QueryBuilder) nextPlaceholder() int {
	return len(q.args) + 1
}
