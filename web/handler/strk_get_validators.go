package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/screwyprof/stakeflow/pkg/httpkit"
	"github.com/screwyprof/stakeflow/staking"
	"github.com/screwyprof/stakeflow/web/api"
	"github.com/screwyprof/stakeflow/web/handler/bind"
	"github.com/screwyprof/stakeflow/web/strk"
)

const (
	GetValidatorsRoute = http.MethodGet + " " + "/strk/validators"
	GetSecondaryRoute  = http.MethodGet + " " + "/strk/validators/secondary"
)

// Sentinel errors
var (
	ErrValidatorsQueryFailed = errors.New("failed to query validators")
)

// StrkGetValidators serves the validator listing and the split-mode secondary pick.
type StrkGetValidators struct {
	finder strk.ValidatorsFinder
	pick   staking.Picker
}

// NewStrkGetValidators creates the handler. A nil pick draws uniformly at random.
func NewStrkGetValidators(finder strk.ValidatorsFinder, pick staking.Picker) *StrkGetValidators {
	return &StrkGetValidators{
		finder: finder,
		pick:   pick,
	}
}

func (h *StrkGetValidators) AddRoutes(m *http.ServeMux) {
	m.Handle(GetValidatorsRoute, httpkit.HandlerFunc(h.GetValidators))
	m.Handle(GetSecondaryRoute, httpkit.HandlerFunc(h.GetSecondary))
}

func (h *StrkGetValidators) GetValidators(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetValidatorsRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	criteria, err := strk.NewValidatorsCriteria(req.Sort, req.Order, req.Page, req.PerPage)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	page, err := h.finder.FindValidators(r.Context(), criteria)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrValidatorsQueryFailed, err)))
	}

	if linkHeader := buildPaginationLinks(page, r.URL); linkHeader != "" {
		w.Header().Set("Link", linkHeader)
	}

	return httpkit.JSON(bind.GetValidatorsResponse(page.Validators))
}

func (h *StrkGetValidators) GetSecondary(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.GetSecondaryRequest(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	bottom, err := h.finder.FindBottomValidators(r.Context(), req.Bottom)
	if err != nil {
		return httpkit.JsonError(api.InternalServerError(fmt.Errorf("%w: %w", ErrValidatorsQueryFailed, err)))
	}

	picked, err := staking.SelectSecondary(bind.SecondaryCandidates(bottom), req.Exclude, h.pick)
	if err != nil {
		return httpkit.JsonError(api.Conflict(err))
	}

	return httpkit.JSON(bind.GetSecondaryResponse(picked))
}

// buildPaginationLinks creates GitHub-style Link header for pagination navigation
func buildPaginationLinks(page *strk.ValidatorsPage, baseURL *url.URL) string {
	var links []string

	// Keep existing query params such as sort and order
	u := *baseURL
	query := u.Query()

	if page.HasPrevious() {
		query.Set("page", fmt.Sprintf("%d", page.Number-1))
		query.Set("per_page", fmt.Sprintf("%d", page.Size))
		u.RawQuery = query.Encode()
		links = append(links, fmt.Sprintf(`<%s>; rel="prev"`, u.String()))
	}

	// Only when we know there are more pages
	if page.HasNext() {
		query.Set("page", fmt.Sprintf("%d", page.Number+1))
		query.Set("per_page", fmt.Sprintf("%d", page.Size))
		u.RawQuery = query.Encode()
		links = append(links, fmt.Sprintf(`<%s>; rel="next"`, u.String()))
	}

	// first/last are omitted: first is always page=1 and last needs a count(*).
	return strings.Join(links, ", ")
}
