package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/screwyprof/stakeflow/pkg/httpkit"
	"github.com/screwyprof/stakeflow/staking"
	"github.com/screwyprof/stakeflow/web/api"
	"github.com/screwyprof/stakeflow/web/handler/bind"
)

const (
	PostPlanRoute    = http.MethodPost + " " + "/strk/stake/plan"
	PostRecordsRoute = http.MethodPost + " " + "/strk/stake/records"
)

// StakePlanner builds the multicall of a delegation.
type StakePlanner interface {
	Plan(ctx context.Context, intent staking.Intent, pc staking.PlanContext) (staking.CallPlan, error)
}

// StakeRecorder mirrors confirmed delegations.
type StakeRecorder interface {
	RecordStake(ctx context.Context, txHash, sender string, plan staking.CallPlan) staking.RecordOutcome
}

// StrkStake plans delegations and records them once confirmed.
type StrkStake struct {
	planner  StakePlanner
	recorder StakeRecorder
}

func NewStrkStake(planner StakePlanner, recorder StakeRecorder) *StrkStake {
	return &StrkStake{
		planner:  planner,
		recorder: recorder,
	}
}

func (h *StrkStake) AddRoutes(m *http.ServeMux) {
	m.Handle(PostPlanRoute, httpkit.HandlerFunc(h.PostPlan))
	m.Handle(PostRecordsRoute, httpkit.HandlerFunc(h.PostRecords))
}

func (h *StrkStake) PostPlan(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	var req api.PlanRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	intent, pc := bind.PlanIntent(req)
	plan, err := h.planner.Plan(r.Context(), intent, pc)
	if err != nil {
		return httpkit.JsonError(planError(err))
	}

	return httpkit.JSON(bind.GetPlanResponse(plan))
}

// PostRecords always answers 200 once the body is valid: the stake is already
// on chain, so the body only reports whether the mirror write succeeded.
func (h *StrkStake) PostRecords(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	var req api.RecordRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	plan, err := bind.RecordPlan(req)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	outcome := h.recorder.RecordStake(r.Context(), req.TransactionHash, req.SenderAddress, plan)
	return httpkit.JSON(api.RecordResponse{Data: outcome})
}

// planError maps the planning taxonomy onto HTTP status codes.
func planError(err error) *api.Error {
	switch {
	case errors.Is(err, staking.ErrInputValidation):
		return api.BadRequest(err)
	case errors.Is(err, staking.ErrInsufficientBalance):
		return api.UnprocessableEntity(err)
	case errors.Is(err, staking.ErrSecondaryUnavailable):
		return api.Conflict(err)
	case errors.Is(err, staking.ErrChainRPC):
		return api.BadGateway(err)
	default:
		return api.Wrap(err)
	}
}
