package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// ActionContinue on a time-condition branch means the route's own
// destination applies; any other action overrides it.
const ActionContinue = "continue"

// InboundResult is a resolved inbound call target.
type InboundResult struct {
	Route            *models.InboundRoute
	DestinationType  string
	DestinationValue string
	// Branch is set when a time condition gated the route.
	Branch Branch
}

// OutboundResult is a resolved outbound trunk selection.
type OutboundResult struct {
	Route         *models.OutboundRoute
	Trunk         *models.Trunk
	FailoverTrunk *models.Trunk
	// DialNumber is the dialed number after the route's digit transform.
	DialNumber string
}

// Resolver matches calls against a tenant's inbound and outbound routes.
type Resolver struct {
	inbound   database.InboundRouteRepository
	outbound  database.OutboundRouteRepository
	trunks    database.TrunkRepository
	timeconds database.TimeConditionRepository
	logger    *slog.Logger

	nowFunc func() time.Time
}

// NewResolver creates a Resolver over the given route stores.
func NewResolver(
	inbound database.InboundRouteRepository,
	outbound database.OutboundRouteRepository,
	trunks database.TrunkRepository,
	timeconds database.TimeConditionRepository,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		inbound:   inbound,
		outbound:  outbound,
		trunks:    trunks,
		timeconds: timeconds,
		logger:    logger.With("component", "routing"),
		nowFunc:   time.Now,
	}
}

// ResolveInbound finds the route for a call arriving on a DID. The caller
// number is normalized with the tenant country code before the optional
// caller-id pattern is tested. A route gated by a time condition resolves
// to the active branch's destination unless the branch says to continue.
// No matching route returns ErrNotFound.
func (r *Resolver) ResolveInbound(ctx context.Context, tenantID, did, callerID, countryCode string) (*InboundResult, error) {
	routes, err := r.inbound.ListEnabled(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading inbound routes: %w", err)
	}
	caller := NormalizeNumber(callerID, countryCode)

	for i := range routes {
		route := &routes[i]
		if route.DIDNumber != did && route.DIDNumber != NormalizeNumber(did, countryCode) {
			continue
		}
		if route.CallerIDPattern != "" {
			re, err := regexp.Compile(route.CallerIDPattern)
			if err != nil {
				r.logger.Warn("skipping route with invalid caller-id pattern",
					"route_id", route.ID, "pattern", route.CallerIDPattern, "error", err)
				continue
			}
			if !re.MatchString(caller) {
				continue
			}
		}

		result := &InboundResult{
			Route:            route,
			DestinationType:  route.DestinationType,
			DestinationValue: route.DestinationValue,
		}
		if route.TimeConditionID == nil {
			return result, nil
		}

		outcome, err := r.evaluateGate(ctx, *route.TimeConditionID)
		if err != nil {
			// An unloadable gate must not drop the call; fall back to the
			// route's failover destination when one is configured.
			r.logger.Error("time condition evaluation failed",
				"route_id", route.ID, "time_condition_id", *route.TimeConditionID, "error", err)
			if route.FailoverEnabled {
				result.DestinationType = route.FailoverDestinationType
				result.DestinationValue = route.FailoverDestinationValue
			}
			return result, nil
		}

		result.Branch = outcome.Branch
		if outcome.Action != "" && outcome.Action != ActionContinue {
			result.DestinationType = outcome.Action
			result.DestinationValue = outcome.Destination
		}
		return result, nil
	}

	return nil, voxerr.ErrNotFound
}

func (r *Resolver) evaluateGate(ctx context.Context, timeConditionID string) (*BranchOutcome, error) {
	tc, err := r.timeconds.GetByID(ctx, timeConditionID)
	if err != nil {
		return nil, err
	}
	if !tc.Enabled {
		return &BranchOutcome{Branch: BranchBusiness, Action: ActionContinue}, nil
	}
	return EvaluateTimeCondition(tc, r.nowFunc())
}

// ResolveOutbound selects a trunk for a dialed number. Routes are tested
// ascending by priority; the first dial-pattern match wins and its digit
// transform is applied. No matching route returns ErrNotFound.
func (r *Resolver) ResolveOutbound(ctx context.Context, tenantID, dialed string) (*OutboundResult, error) {
	routes, err := r.outbound.ListEnabled(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading outbound routes: %w", err)
	}

	for i := range routes {
		route := &routes[i]
		re, err := regexp.Compile(route.DialPattern)
		if err != nil {
			r.logger.Warn("skipping route with invalid dial pattern",
				"route_id", route.ID, "pattern", route.DialPattern, "error", err)
			continue
		}
		if !re.MatchString(dialed) {
			continue
		}

		trunk, err := r.trunks.GetByID(ctx, route.TrunkID)
		if err != nil {
			return nil, fmt.Errorf("loading trunk %s: %w", route.TrunkID, err)
		}
		result := &OutboundResult{
			Route:      route,
			Trunk:      trunk,
			DialNumber: TransformNumber(dialed, route.StripDigits, route.Prefix, route.AddDigits),
		}
		if route.FailoverTrunkID != nil {
			failover, err := r.trunks.GetByID(ctx, *route.FailoverTrunkID)
			if err != nil && !errors.Is(err, voxerr.ErrNotFound) {
				return nil, fmt.Errorf("loading failover trunk: %w", err)
			}
			result.FailoverTrunk = failover
		}
		return result, nil
	}

	return nil, voxerr.ErrNotFound
}
