package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/screwyprof/stakeflow/pkg/httpkit"
	"github.com/screwyprof/stakeflow/web/api"
	"github.com/screwyprof/stakeflow/web/handler/bind"
	"github.com/screwyprof/stakeflow/web/strk"
)

const GetUnpoolRoute = http.MethodGet + " " + "/strk/delegations/{address}/unpool"

var ErrUnpoolQueryFailed = errors.New("failed to query unpool times")

// StrkGetUnpool serves the on-chain unpool times used to reconcile unstake intents.
type StrkGetUnpool struct {
	finder strk.UnpoolFinder
}

func NewStrkGetUnpool(finder strk.UnpoolFinder) *StrkGetUnpool {
	return &StrkGetUnpool{finder: finder}
}

func (h *StrkGetUnpool) AddRoutes(m *http.ServeMux) {
	m.Handle(GetUnpoolRoute, httpkit.HandlerFunc(h.GetUnpool))
}

func (h *StrkGetUnpool) GetUnpool(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	delegator, err := bind.GetDelegatorAddress(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	unpools, err := h.finder.FindUnpools(r.Context(), delegator)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrUnpoolQueryFailed, err)))
	}

	resp, err := bind.GetUnpoolResponse(unpools)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrUnpoolQueryFailed, err)))
	}

	return httpkit.JSON(resp)
}
