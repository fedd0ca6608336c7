package database

import (
	"context"
	"time"

	"github.com/voxgate/voxgate/internal/database/models"
)

// TenantRepository manages tenant scopes.
type TenantRepository interface {
	Create(ctx context.Context, t *models.Tenant) error
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	GetBySIPDomain(ctx context.Context, domain string) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	Update(ctx context.Context, t *models.Tenant) error
	Delete(ctx context.Context, id string) error
}

// ExtensionRepository manages tenant extensions.
type ExtensionRepository interface {
	Create(ctx context.Context, ext *models.Extension) error
	GetByNumber(ctx context.Context, tenantID, extension string) (*models.Extension, error)
	FindTenantIDByNumber(ctx context.Context, extension string) (string, error)
	List(ctx context.Context, tenantID string) ([]models.Extension, error)
	Update(ctx context.Context, ext *models.Extension) error
	Delete(ctx context.Context, id string) error
}

// DialplanRuleRepository manages tenant dialplan rules. Listing for
// evaluation returns enabled rules sorted ascending by priority.
type DialplanRuleRepository interface {
	Create(ctx context.Context, rule *models.DialplanRule) error
	GetByID(ctx context.Context, id string) (*models.DialplanRule, error)
	ListEnabledByContext(ctx context.Context, tenantID, context string) ([]models.DialplanRule, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.DialplanRule, error)
	Update(ctx context.Context, rule *models.DialplanRule) error
	Delete(ctx context.Context, id string) error
}

// TrunkRepository manages carrier trunks.
type TrunkRepository interface {
	Create(ctx context.Context, trunk *models.Trunk) error
	GetByID(ctx context.Context, id string) (*models.Trunk, error)
	List(ctx context.Context, tenantID string) ([]models.Trunk, error)
	Update(ctx context.Context, trunk *models.Trunk) error
	Delete(ctx context.Context, id string) error
}

// InboundRouteRepository manages DID routes.
type InboundRouteRepository interface {
	Create(ctx context.Context, route *models.InboundRoute) error
	GetByID(ctx context.Context, id string) (*models.InboundRoute, error)
	ListEnabled(ctx context.Context, tenantID string) ([]models.InboundRoute, error)
	List(ctx context.Context, tenantID string) ([]models.InboundRoute, error)
	Update(ctx context.Context, route *models.InboundRoute) error
	Delete(ctx context.Context, id string) error
}

// OutboundRouteRepository manages dial-pattern routes. ListEnabled returns
// routes sorted ascending by priority.
type OutboundRouteRepository interface {
	Create(ctx context.Context, route *models.OutboundRoute) error
	GetByID(ctx context.Context, id string) (*models.OutboundRoute, error)
	ListEnabled(ctx context.Context, tenantID string) ([]models.OutboundRoute, error)
	List(ctx context.Context, tenantID string) ([]models.OutboundRoute, error)
	Update(ctx context.Context, route *models.OutboundRoute) error
	Delete(ctx context.Context, id string) error
}

// TimeConditionRepository manages business-hours/holiday rule sets.
type TimeConditionRepository interface {
	Create(ctx context.Context, tc *models.TimeCondition) error
	GetByID(ctx context.Context, id string) (*models.TimeCondition, error)
	List(ctx context.Context, tenantID string) ([]models.TimeCondition, error)
	Update(ctx context.Context, tc *models.TimeCondition) error
	Delete(ctx context.Context, id string) error
}

// CallSessionRepository manages live call rows. Upsert is idempotent on
// call_uuid: replaying an insert never resets an existing row's state or
// timestamps.
type CallSessionRepository interface {
	Upsert(ctx context.Context, s *models.CallSession) error
	Get(ctx context.Context, callUUID string) (*models.CallSession, error)
	Update(ctx context.Context, s *models.CallSession) error
	ListActive(ctx context.Context, tenantID string) ([]models.CallSession, error)
	CountActive(ctx context.Context) (int64, error)
	// CloseStale marks non-terminal sessions older than cutoff as HANGUP
	// with the given cause, returning the closed sessions so they can be
	// archived.
	CloseStale(ctx context.Context, cutoff time.Time, cause string) ([]models.CallSession, error)
}

// CDRListFilter narrows CDR listings.
type CDRListFilter struct {
	TenantID  string
	Direction string
	Search    string
	StartDate string
	EndDate   string
	Limit     int
	Offset    int
}

// CDRRepository manages finalized call records.
type CDRRepository interface {
	Create(ctx context.Context, cdr *models.CDR) error
	List(ctx context.Context, filter CDRListFilter) ([]models.CDR, int, error)
	CountByDirection(ctx context.Context) (map[string]int64, error)
}

// AdminUserRepository manages administrative accounts.
type AdminUserRepository interface {
	Create(ctx context.Context, user *models.AdminUser) error
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	Count(ctx context.Context) (int64, error)
}
