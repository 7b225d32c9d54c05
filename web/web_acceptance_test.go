//go:build acceptance

package web_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakeflow/analytics"
	"github.com/screwyprof/stakeflow/migrator"
	"github.com/screwyprof/stakeflow/migrator/migratortest"
	"github.com/screwyprof/stakeflow/pkg/clock"
	"github.com/screwyprof/stakeflow/pkg/logger"
	"github.com/screwyprof/stakeflow/pkg/pgxdb"
	"github.com/screwyprof/stakeflow/pkg/pgxdb/pgxdbtest"
	"github.com/screwyprof/stakeflow/staking"
	"github.com/screwyprof/stakeflow/web/api"
	"github.com/screwyprof/stakeflow/web/handler"
	"github.com/screwyprof/stakeflow/web/store/pgxstore"
	"github.com/screwyprof/stakeflow/web/testcfg"
)

const migrationsDir = "../migrator/migrations"

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// TestWebAPIAcceptanceBehavior tests end-to-end web API functionality
func TestWebAPIAcceptanceBehavior(t *testing.T) {
	t.Parallel()

	cfg := testcfg.New()

	// Create ONE shared read-only test database for the read-side subtests
	sharedTestDB := migratortest.CreateSeededTestDatabase(t, migrationsDir,
		migrator.DemoConfig{Delegators: cfg.DemoDelegators, Seed: cfg.DemoSeed},
		cfg.DemoBlockRange, cfg.SeedTimeout)
	dbConnString := sharedTestDB.Config().ConnString()

	t.Run("it lists validators by total stake", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := createTestServer(t, dbConnString)

		// Act
		response := makeGetRequest(t, server.URL+"/strk/validators")
		validatorsResp := parseJSONResponse[api.ValidatorsResponse](t, response)

		// Assert
		assertSuccessfulResponse(t, response)
		assert.Len(t, validatorsResp.Data, len(migrator.DemoValidators()))
		assertValidatorsOrderedByStakeDesc(t, validatorsResp.Data)
		assertDelegatorsAccountedFor(t, validatorsResp.Data, cfg.DemoDelegators)
	})

	t.Run("it sorts validators by a whitelisted column", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := createTestServer(t, dbConnString)

		// Act
		response := makeGetRequest(t, server.URL+"/strk/validators?sort=commission&order=asc")
		validatorsResp := parseJSONResponse[api.ValidatorsResponse](t, response)

		// Assert
		assertSuccessfulResponse(t, response)
		require.NotEmpty(t, validatorsResp.Data)
		assert.Equal(t, "Voyager", validatorsResp.Data[0].Name, "The zero commission validator comes first")
		assert.Equal(t, "0.00", validatorsResp.Data[0].Commission)
	})

	t.Run("it provides GitHub-style pagination Link headers", func(t *testing.T) {
		t.Parallel()

		t.Run("it provides next link on first page when more pages exist", func(t *testing.T) {
			t.Parallel()

			// Arrange
			server := createTestServer(t, dbConnString)

			// Act
			response := makeGetRequest(t, server.URL+"/strk/validators?page=1&per_page=3")
			validatorsResp := parseJSONResponse[api.ValidatorsResponse](t, response)

			// Assert
			assertSuccessfulResponse(t, response)
			assert.Len(t, validatorsResp.Data, 3)
			assertContainsLink(t, response, `rel="next"`)
			assertMissingLink(t, response, `rel="prev"`)
		})

		t.Run("it preserves query parameters on the last page", func(t *testing.T) {
			t.Parallel()

			// Arrange
			server := createTestServer(t, dbConnString)

			// Act
			response := makeGetRequest(t, server.URL+"/strk/validators?sort=name&order=asc&page=3&per_page=3")
			validatorsResp := parseJSONResponse[api.ValidatorsResponse](t, response)

			// Assert
			assertSuccessfulResponse(t, response)
			assert.Len(t, validatorsResp.Data, 2)
			assertContainsLink(t, response, "page=2&per_page=3&sort=name")
			assertMissingLink(t, response, `rel="next"`)
		})

		t.Run("it omits Link header when results fit on first page", func(t *testing.T) {
			t.Parallel()

			// Arrange
			server := createTestServer(t, createMinimalDatabase(t).Config().ConnString())

			// Act
			response := makeGetRequest(t, server.URL+"/strk/validators")
			validatorsResp := parseJSONResponse[api.ValidatorsResponse](t, response)

			// Assert
			assertSuccessfulResponse(t, response)
			assert.Len(t, validatorsResp.Data, 2)
			assert.Empty(t, response.Header.Get("Link"))
		})
	})

	t.Run("it picks a secondary validator other than the primary", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := createTestServer(t, dbConnString)
		primary := migrator.DemoValidators()[0].PoolAddress

		for range 10 {
			// Act
			response := makeGetRequest(t, server.URL+"/strk/validators/secondary?bottom=2&exclude="+primary)
			secondaryResp := parseJSONResponse[api.SecondaryResponse](t, response)

			// Assert
			assertSuccessfulResponse(t, response)
			assert.NotEqual(t, primary, secondaryResp.Data.PoolAddress)
			assert.NotEmpty(t, secondaryResp.Data.Name)
		}
	})

	t.Run("it aggregates the flow graph of all delegations", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := createTestServer(t, dbConnString)

		// Act
		response := makeGetRequest(t, server.URL+"/strk/flow?top=3")
		flowResp := parseJSONResponse[api.FlowResponse](t, response)

		// Assert
		assertSuccessfulResponse(t, response)
		assertPercentagesSumToHundred(t, flowResp.Data.BucketStats)
		assert.Contains(t, nodeIDs(flowResp.Data.Graph), analytics.OtherValidatorsID(len(migrator.DemoValidators())-3))
	})

	t.Run("it narrows the flow graph to a date range", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := createTestServer(t, dbConnString)

		// Act
		all := parseJSONResponse[api.FlowResponse](t, makeGetRequest(t, server.URL+"/strk/flow"))
		firstDays := parseJSONResponse[api.FlowResponse](t, makeGetRequest(t, server.URL+"/strk/flow?from=2025-01-01&to=2025-01-05"))
		before := parseJSONResponse[api.FlowResponse](t, makeGetRequest(t, server.URL+"/strk/flow?from=2024-12-01&to=2024-12-31"))

		// Assert
		assert.Less(t, delegationCount(firstDays.Data), delegationCount(all.Data))
		assert.Positive(t, delegationCount(firstDays.Data))
		assert.Empty(t, before.Data.Graph.Nodes, "Nothing was delegated before genesis")
	})

	t.Run("it plans a split delegation", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := createTestServer(t, dbConnString)

		// Act
		response := makePostRequest(t, server.URL+"/strk/stake/plan", `{
			"account": "0xacc",
			"amount": "100",
			"primary": {"poolAddress": "0xa01", "name": "Karnot"},
			"split": true,
			"secondary": {"poolAddress": "0xa02", "name": "Nethermind"}
		}`)
		planResp := parseJSONResponse[api.PlanResponse](t, response)

		// Assert
		assertSuccessfulResponse(t, response)
		require.Len(t, planResp.Calls, 4)
		assert.Equal(t, staking.EntrypointApprove, planResp.Calls[0].Entrypoint)
		assert.Equal(t, staking.EntrypointEnterPool, planResp.Calls[1].Entrypoint)
		assert.Equal(t, []api.Leg{
			{Role: staking.RolePrimary, PoolAddress: "0xa01", ValidatorName: "Karnot", Amount: "90"},
			{Role: staking.RoleSecondary, PoolAddress: "0xa02", ValidatorName: "Nethermind", Amount: "10"},
		}, planResp.Legs)
	})

	t.Run("it records a confirmed stake once", func(t *testing.T) {
		t.Parallel()

		// Arrange
		testDB := createMinimalDatabase(t)
		server := createTestServer(t, testDB.Config().ConnString())
		body := `{
			"transactionHash": "0xfeed",
			"senderAddress": "0xacc",
			"legs": [
				{"role": "primary", "poolAddress": "0xa01", "validatorName": "Karnot", "amount": "90"},
				{"role": "secondary", "poolAddress": "0xa02", "validatorName": "Nethermind", "amount": "10"}
			]
		}`

		// Act
		first := parseJSONResponse[api.RecordResponse](t, makePostRequest(t, server.URL+"/strk/stake/records", body))
		retried := parseJSONResponse[api.RecordResponse](t, makePostRequest(t, server.URL+"/strk/stake/records", body))

		// Assert
		assert.Equal(t, staking.RecordOutcome{Persisted: true, Records: 2}, first.Data)
		assert.Equal(t, staking.RecordOutcome{Persisted: true, Records: 2}, retried.Data)
		assertStakeRecords(t, testDB, map[string]string{
			"0xfeed-primary":   "90",
			"0xfeed-secondary": "10",
		})
	})

	t.Run("it returns pending unpool times of a delegator", func(t *testing.T) {
		t.Parallel()

		// Arrange
		testDB := createMinimalDatabase(t)
		unpoolAt := time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)
		insertPendingExit(t, testDB, "0xacc", "0xa01", unpoolAt)
		server := createTestServer(t, testDB.Config().ConnString())

		// Act
		response := makeGetRequest(t, server.URL+"/strk/delegations/0x0ACC/unpool")
		unpoolResp := parseJSONResponse[api.UnpoolResponse](t, response)

		// Assert
		assertSuccessfulResponse(t, response)
		require.Len(t, unpoolResp.Data, 1)
		assert.Equal(t, "Karnot", unpoolResp.Data[0].ValidatorName)
		assert.Equal(t, "25", unpoolResp.Data[0].Amount)
		assert.True(t, unpoolAt.Equal(unpoolResp.Data[0].UnpoolTime))
	})
}

// =============================================================================
// Arrange Phase Helpers - Factory functions for test setup
// =============================================================================

// createTestServer creates a test server with its own connection pool to the
// provided database, wired like production
func createTestServer(t *testing.T, dbConnString string) *httptest.Server {
	t.Helper()

	storeConn, err := pgxdb.NewConnection(t.Context(), dbConnString)
	require.NoError(t, err)

	store, storeCloser := pgxstore.New(storeConn)

	mux := http.NewServeMux()
	handler.NewStrkGetValidators(store, staking.RandomPicker()).AddRoutes(mux)
	handler.NewStrkGetFlow(store, analytics.NewAggregator(), clock.Fixed(now)).AddRoutes(mux)
	handler.NewStrkStake(staking.NewPlanner(richToken{}), staking.NewRecorder(store, nil)).AddRoutes(mux)
	handler.NewStrkGetUnpool(store).AddRoutes(mux)

	testCfg := testcfg.New()
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         testCfg.LogLevel,
		LogHumanFriendly: testCfg.LogHumanFriendly,
	})

	server := httptest.NewServer(logger.NewMiddleware(log)(mux))
	t.Cleanup(func() {
		server.Close()
		storeCloser()
	})

	return server
}

// createMinimalDatabase creates a schema-only database with two validators
func createMinimalDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDB := migratortest.CreateIndexerTestDatabase(t, migrationsDir, 0)
	pgxdbtest.InsertValidator(t, testDB, "0x1a01", "Karnot", "0xa01", 500)
	pgxdbtest.InsertValidator(t, testDB, "0x1a02", "Nethermind", "0xa02", 1000)

	return testDB
}

// insertPendingExit stores a delegation of 25 STRK that is waiting to be unpooled
func insertPendingExit(t *testing.T, testDB *pgxpool.Pool, delegator, pool string, unpoolAt time.Time) {
	t.Helper()

	_, err := testDB.Exec(t.Context(), `
		INSERT INTO delegations (delegator, pool_address, amount, start_time, unpool_time, unpool_amount, block_number)
		VALUES ($1, $2, 0, $3, $4, 25000000000000000000, 1)`,
		delegator, pool, unpoolAt.Add(-30*24*time.Hour), unpoolAt)
	require.NoError(t, err)
}

// =============================================================================
// Action Helpers - HTTP request helpers that express intent
// =============================================================================

func makeGetRequest(t *testing.T, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err, "Should create HTTP request")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "HTTP request should succeed")

	return resp
}

func makePostRequest(t *testing.T, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err, "Should create HTTP request")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "HTTP request should succeed")

	return resp
}

// =============================================================================
// Named Domain Assertions - Business rule assertions
// =============================================================================

func assertSuccessfulResponse(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "Should return HTTP 200 OK")
}

func assertValidatorsOrderedByStakeDesc(t *testing.T, validators []api.Validator) {
	t.Helper()

	for i := 0; i < len(validators)-1; i++ {
		current, next := stakeOf(t, validators[i]), stakeOf(t, validators[i+1])
		assert.GreaterOrEqual(t, current, next,
			"Validators should be ordered by stake (index %d: %s should be >= %s)",
			i, validators[i].TotalStake, validators[i+1].TotalStake)
	}
}

// assertDelegatorsAccountedFor checks that every delegator still staking is counted once
func assertDelegatorsAccountedFor(t *testing.T, validators []api.Validator, delegators int) {
	t.Helper()

	var total int64
	for _, v := range validators {
		total += v.DelegatorCount
	}
	assert.Positive(t, total)
	assert.LessOrEqual(t, total, int64(delegators), "Exited delegators are not counted")
}

func assertPercentagesSumToHundred(t *testing.T, stats []analytics.BucketStat) {
	t.Helper()

	var sum float64
	for _, s := range stats {
		sum += s.Percentage
	}
	assert.InDelta(t, 100, sum, 1e-6)
}

func assertContainsLink(t *testing.T, resp *http.Response, fragment string) {
	t.Helper()
	assert.Contains(t, resp.Header.Get("Link"), fragment)
}

func assertMissingLink(t *testing.T, resp *http.Response, fragment string) {
	t.Helper()
	assert.NotContains(t, resp.Header.Get("Link"), fragment)
}

func assertStakeRecords(t *testing.T, testDB *pgxpool.Pool, expected map[string]string) {
	t.Helper()

	rows, err := testDB.Query(t.Context(), "SELECT transaction_hash, amount_staked::float8::text FROM stake_records")
	require.NoError(t, err)
	defer rows.Close()

	actual := make(map[string]string)
	for rows.Next() {
		var hash, amount string
		require.NoError(t, rows.Scan(&hash, &amount))
		actual[hash] = amount
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, expected, actual)
}

// =============================================================================
// Utility Functions
// =============================================================================

// parseJSONResponse parses HTTP response body as JSON into the specified type
func parseJSONResponse[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer resp.Body.Close()

	var result T
	err := json.NewDecoder(resp.Body).Decode(&result)
	require.NoError(t, err, "Response should be valid JSON")

	return result
}

func stakeOf(t *testing.T, v api.Validator) float64 {
	t.Helper()

	var f float64
	_, err := fmt.Sscan(v.TotalStake, &f)
	require.NoError(t, err)
	return f
}

func nodeIDs(g analytics.Graph) []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func delegationCount(r analytics.Result) int {
	var n int
	for _, s := range r.BucketStats {
		n += s.Count
	}
	return n
}

// richToken is a token the test account holds plenty of and has never approved
type richToken struct{}

func (richToken) Address() string { return "0x4718" }

func (richToken) BalanceOf(context.Context, string) (*big.Int, error) {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil), nil
}

func (richToken) Allowance(context.Context, string, string) (*big.Int, error) {
	return big.NewInt(0), nil
}
