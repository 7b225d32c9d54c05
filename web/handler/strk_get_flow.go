package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/screwyprof/stakeflow/analytics"
	"github.com/screwyprof/stakeflow/pkg/clock"
	"github.com/screwyprof/stakeflow/pkg/httpkit"
	"github.com/screwyprof/stakeflow/web/api"
	"github.com/screwyprof/stakeflow/web/handler/bind"
	"github.com/screwyprof/stakeflow/web/strk"
)

const GetFlowRoute = http.MethodGet + " " + "/strk/flow"

var ErrFlowQueryFailed = errors.New("failed to query flow records")

// StrkGetFlow serves the stake-size flow graph.
type StrkGetFlow struct {
	finder     strk.FlowRecordsFinder
	aggregator *analytics.Aggregator
	clock      clock.Clock
}

func NewStrkGetFlow(finder strk.FlowRecordsFinder, aggregator *analytics.Aggregator, clk clock.Clock) *StrkGetFlow {
	return &StrkGetFlow{
		finder:     finder,
		aggregator: aggregator,
		clock:      clk,
	}
}

func (h *StrkGetFlow) AddRoutes(m *http.ServeMux) {
	m.Handle(GetFlowRoute, httpkit.HandlerFunc(h.GetFlow))
}

func (h *StrkGetFlow) GetFlow(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetFlowRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	dates, err := strk.ParseDateRange(req.From, req.To, h.clock.Now())
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	records, err := h.finder.FindFlowRecords(r.Context(), dates)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrFlowQueryFailed, err)))
	}

	return httpkit.JSON(api.FlowResponse{Data: h.aggregator.Aggregate(records, req.Top)})
}
