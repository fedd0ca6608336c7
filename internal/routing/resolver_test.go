package routing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

type fakeInboundRepo struct{ routes []models.InboundRoute }

func (f *fakeInboundRepo) Create(_ context.Context, r *models.InboundRoute) error {
	f.routes = append(f.routes, *r)
	return nil
}
func (f *fakeInboundRepo) GetByID(_ context.Context, id string) (*models.InboundRoute, error) {
	for i := range f.routes {
		if f.routes[i].ID == id {
			return &f.routes[i], nil
		}
	}
	return nil, voxerr.ErrNotFound
}
func (f *fakeInboundRepo) ListEnabled(_ context.Context, tenantID string) ([]models.InboundRoute, error) {
	var out []models.InboundRoute
	for _, r := range f.routes {
		if r.TenantID == tenantID && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeInboundRepo) List(_ context.Context, tenantID string) ([]models.InboundRoute, error) {
	return f.ListEnabled(nil, tenantID)
}
func (f *fakeInboundRepo) Update(_ context.Context, _ *models.InboundRoute) error { return nil }
func (f *fakeInboundRepo) Delete(_ context.Context, _ string) error               { return nil }

type fakeOutboundRepo struct{ routes []models.OutboundRoute }

func (f *fakeOutboundRepo) Create(_ context.Context, r *models.OutboundRoute) error {
	f.routes = append(f.routes, *r)
	return nil
}
func (f *fakeOutboundRepo) GetByID(_ context.Context, id string) (*models.OutboundRoute, error) {
	for i := range f.routes {
		if f.routes[i].ID == id {
			return &f.routes[i], nil
		}
	}
	return nil, voxerr.ErrNotFound
}
func (f *fakeOutboundRepo) ListEnabled(_ context.Context, tenantID string) ([]models.OutboundRoute, error) {
	var out []models.OutboundRoute
	for _, r := range f.routes {
		if r.TenantID == tenantID && r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}
func (f *fakeOutboundRepo) List(_ context.Context, tenantID string) ([]models.OutboundRoute, error) {
	return f.ListEnabled(nil, tenantID)
}
func (f *fakeOutboundRepo) Update(_ context.Context, _ *models.OutboundRoute) error { return nil }
func (f *fakeOutboundRepo) Delete(_ context.Context, _ string) error                { return nil }

type fakeTrunkRepo struct{ trunks []models.Trunk }

func (f *fakeTrunkRepo) Create(_ context.Context, tr *models.Trunk) error {
	f.trunks = append(f.trunks, *tr)
	return nil
}
func (f *fakeTrunkRepo) GetByID(_ context.Context, id string) (*models.Trunk, error) {
	for i := range f.trunks {
		if f.trunks[i].ID == id {
			return &f.trunks[i], nil
		}
	}
	return nil, voxerr.ErrNotFound
}
func (f *fakeTrunkRepo) List(_ context.Context, _ string) ([]models.Trunk, error) {
	return f.trunks, nil
}
func (f *fakeTrunkRepo) Update(_ context.Context, _ *models.Trunk) error { return nil }
func (f *fakeTrunkRepo) Delete(_ context.Context, _ string) error        { return nil }

type fakeTimeCondRepo struct{ conds []models.TimeCondition }

func (f *fakeTimeCondRepo) Create(_ context.Context, tc *models.TimeCondition) error {
	f.conds = append(f.conds, *tc)
	return nil
}
func (f *fakeTimeCondRepo) GetByID(_ context.Context, id string) (*models.TimeCondition, error) {
	for i := range f.conds {
		if f.conds[i].ID == id {
			return &f.conds[i], nil
		}
	}
	return nil, voxerr.ErrNotFound
}
func (f *fakeTimeCondRepo) List(_ context.Context, _ string) ([]models.TimeCondition, error) {
	return f.conds, nil
}
func (f *fakeTimeCondRepo) Update(_ context.Context, _ *models.TimeCondition) error { return nil }
func (f *fakeTimeCondRepo) Delete(_ context.Context, _ string) error                { return nil }

func testResolver(in *fakeInboundRepo, out *fakeOutboundRepo, tr *fakeTrunkRepo, tc *fakeTimeCondRepo) *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(in, out, tr, tc, logger)
}

func TestResolveInboundByDID(t *testing.T) {
	in := &fakeInboundRepo{routes: []models.InboundRoute{
		{ID: "ir-1", TenantID: "t1", DIDNumber: "0591234567", DestinationType: "extension", DestinationValue: "1001", Enabled: true},
		{ID: "ir-2", TenantID: "t1", DIDNumber: "0597654321", DestinationType: "ivr", DestinationValue: "main-menu", Enabled: true},
	}}
	r := testResolver(in, &fakeOutboundRepo{}, &fakeTrunkRepo{}, &fakeTimeCondRepo{})

	got, err := r.ResolveInbound(context.Background(), "t1", "0597654321", "+393331234567", "39")
	if err != nil {
		t.Fatalf("ResolveInbound() error: %v", err)
	}
	if got.Route.ID != "ir-2" || got.DestinationType != "ivr" || got.DestinationValue != "main-menu" {
		t.Errorf("resolved %+v", got)
	}

	if _, err := r.ResolveInbound(context.Background(), "t1", "0000000000", "", "39"); !errors.Is(err, voxerr.ErrNotFound) {
		t.Errorf("unmatched DID error = %v, want ErrNotFound", err)
	}
}

func TestResolveInboundCallerIDPattern(t *testing.T) {
	in := &fakeInboundRepo{routes: []models.InboundRoute{
		{ID: "ir-vip", TenantID: "t1", DIDNumber: "0591234567", CallerIDPattern: `^333`, DestinationType: "extension", DestinationValue: "1000", Enabled: true},
		{ID: "ir-any", TenantID: "t1", DIDNumber: "0591234567", DestinationType: "queue", DestinationValue: "support", Enabled: true},
	}}
	r := testResolver(in, &fakeOutboundRepo{}, &fakeTrunkRepo{}, &fakeTimeCondRepo{})

	// Caller matching the pattern takes the VIP route. The +39 prefix is
	// normalized away before the pattern is tested.
	got, err := r.ResolveInbound(context.Background(), "t1", "0591234567", "+393331234567", "39")
	if err != nil {
		t.Fatalf("ResolveInbound() error: %v", err)
	}
	if got.Route.ID != "ir-vip" {
		t.Errorf("resolved route %s, want ir-vip", got.Route.ID)
	}

	got, err = r.ResolveInbound(context.Background(), "t1", "0591234567", "+390612345678", "39")
	if err != nil {
		t.Fatalf("ResolveInbound() error: %v", err)
	}
	if got.Route.ID != "ir-any" {
		t.Errorf("resolved route %s, want ir-any", got.Route.ID)
	}
}

func TestResolveInboundTimeConditionGate(t *testing.T) {
	tcID := "tc-1"
	in := &fakeInboundRepo{routes: []models.InboundRoute{
		{ID: "ir-1", TenantID: "t1", DIDNumber: "0591234567", DestinationType: "queue", DestinationValue: "support", TimeConditionID: &tcID, Enabled: true},
	}}
	tc := &fakeTimeCondRepo{conds: []models.TimeCondition{*testCondition()}}
	r := testResolver(in, &fakeOutboundRepo{}, &fakeTrunkRepo{}, tc)

	// Business hours: branch action is "continue", route destination holds.
	r.nowFunc = func() time.Time { return romeTime(t, 2026, time.January, 5, 10, 0) }
	got, err := r.ResolveInbound(context.Background(), "t1", "0591234567", "", "39")
	if err != nil {
		t.Fatalf("ResolveInbound() error: %v", err)
	}
	if got.Branch != BranchBusiness || got.DestinationType != "queue" || got.DestinationValue != "support" {
		t.Errorf("business resolution = %+v", got)
	}

	// After hours: branch overrides the destination.
	r.nowFunc = func() time.Time { return romeTime(t, 2026, time.January, 5, 20, 0) }
	got, err = r.ResolveInbound(context.Background(), "t1", "0591234567", "", "39")
	if err != nil {
		t.Fatalf("ResolveInbound() error: %v", err)
	}
	if got.Branch != BranchAfterHours || got.DestinationType != "voicemail" || got.DestinationValue != "1001" {
		t.Errorf("after-hours resolution = %+v", got)
	}
}

func TestResolveInboundMissingConditionUsesFailover(t *testing.T) {
	tcID := "tc-missing"
	in := &fakeInboundRepo{routes: []models.InboundRoute{
		{
			ID: "ir-1", TenantID: "t1", DIDNumber: "0591234567",
			DestinationType: "queue", DestinationValue: "support",
			TimeConditionID: &tcID, Enabled: true,
			FailoverEnabled: true, FailoverDestinationType: "voicemail", FailoverDestinationValue: "1001",
		},
	}}
	r := testResolver(in, &fakeOutboundRepo{}, &fakeTrunkRepo{}, &fakeTimeCondRepo{})

	got, err := r.ResolveInbound(context.Background(), "t1", "0591234567", "", "39")
	if err != nil {
		t.Fatalf("ResolveInbound() error: %v", err)
	}
	if got.DestinationType != "voicemail" || got.DestinationValue != "1001" {
		t.Errorf("failover resolution = %+v", got)
	}
}

func TestResolveOutboundPriorityAndTransform(t *testing.T) {
	failover := "tr-backup"
	out := &fakeOutboundRepo{routes: []models.OutboundRoute{
		{ID: "or-catchall", TenantID: "t1", DialPattern: `^.+$`, TrunkID: "tr-main", Priority: 999, Enabled: true},
		{ID: "or-mobile", TenantID: "t1", DialPattern: `^3\d{9}$`, TrunkID: "tr-mobile", Priority: 10, Prefix: "0039", Enabled: true, FailoverTrunkID: &failover},
	}}
	tr := &fakeTrunkRepo{trunks: []models.Trunk{
		{ID: "tr-main", Name: "main"},
		{ID: "tr-mobile", Name: "mobile"},
		{ID: "tr-backup", Name: "backup"},
	}}
	r := testResolver(&fakeInboundRepo{}, out, tr, &fakeTimeCondRepo{})

	got, err := r.ResolveOutbound(context.Background(), "t1", "3331234567")
	if err != nil {
		t.Fatalf("ResolveOutbound() error: %v", err)
	}
	if got.Route.ID != "or-mobile" {
		t.Errorf("resolved route %s, want or-mobile", got.Route.ID)
	}
	if got.Trunk.Name != "mobile" {
		t.Errorf("trunk = %s, want mobile", got.Trunk.Name)
	}
	if got.DialNumber != "00393331234567" {
		t.Errorf("dial number = %q", got.DialNumber)
	}
	if got.FailoverTrunk == nil || got.FailoverTrunk.Name != "backup" {
		t.Errorf("failover trunk = %+v", got.FailoverTrunk)
	}

	// A landline number misses the mobile route and lands on the catch-all.
	got, err = r.ResolveOutbound(context.Background(), "t1", "0591234567")
	if err != nil {
		t.Fatalf("ResolveOutbound() error: %v", err)
	}
	if got.Route.ID != "or-catchall" || got.DialNumber != "0591234567" {
		t.Errorf("catch-all resolution = %+v", got)
	}
}

func TestResolveOutboundNoMatch(t *testing.T) {
	out := &fakeOutboundRepo{routes: []models.OutboundRoute{
		{ID: "or-1", TenantID: "t1", DialPattern: `^3\d{9}$`, TrunkID: "tr-1", Priority: 10, Enabled: true},
	}}
	r := testResolver(&fakeInboundRepo{}, out, &fakeTrunkRepo{}, &fakeTimeCondRepo{})

	if _, err := r.ResolveOutbound(context.Background(), "t1", "x"); !errors.Is(err, voxerr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
