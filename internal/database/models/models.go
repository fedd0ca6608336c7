// Package models defines the persisted entities shared by the repositories
// and the call-control services.
package models

import "time"

// Tenant is an isolated customer scope. All routing and dialplan state hangs
// off a tenant; its slug prefixes the six per-tenant dialplan contexts
// ("<slug>-internal", "<slug>-outbound", ...).
type Tenant struct {
	ID          string
	Name        string
	Slug        string
	SIPDomain   string
	CountryCode string // trunk country code stripped during number normalization
	Timezone    string
	Status      string // "active" | "suspended"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Extension is a registrable endpoint within a tenant, served to the engine
// through the directory XML callback.
type Extension struct {
	ID           string
	TenantID     string
	Extension    string
	DisplayName  string
	Password     string
	VoicemailPIN string
	DND          bool
	CallForward  string // forward-all destination, empty when disabled
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CallState is the lifecycle state of a tracked call.
type CallState string

const (
	StateRinging  CallState = "RINGING"
	StateAnswered CallState = "ANSWERED"
	StateBridged  CallState = "BRIDGED"
	StateHangup   CallState = "HANGUP"
)

// Rank orders states for monotonic transitions. HANGUP is terminal and
// absorbing: no event may move a call out of it.
func (s CallState) Rank() int {
	switch s {
	case StateRinging:
		return 0
	case StateAnswered:
		return 1
	case StateBridged:
		return 2
	case StateHangup:
		return 3
	}
	return -1
}

// CallSession is the live per-call row, keyed by the engine's channel UUID.
// Exactly one row exists per call_uuid; the persisted row is the single
// source of truth for call state.
type CallSession struct {
	CallUUID          string
	TenantID          string
	Direction         string
	CallerIDName      string
	CallerIDNumber    string
	DestinationNumber string
	Context           string
	State             CallState
	StartTime         time.Time
	AnswerTime        *time.Time
	EndTime           *time.Time
	DurationSec       int
	BillSec           int
	HangupCause       string
	UpdatedAt         time.Time
}

// CDR is the finalized historical record of a completed call, produced at
// the terminal HANGUP transition.
type CDR struct {
	ID             int64
	CallUUID       string
	TenantID       string
	Direction      string
	CallerIDName   string
	CallerIDNumber string
	Destination    string
	Context        string
	StartTime      time.Time
	AnswerTime     *time.Time
	EndTime        time.Time
	DurationSec    int
	BillSec        int
	HangupCause    string
	CreatedAt      time.Time
}

// DialplanRule is one tenant-scoped routing rule. Rules in a context are
// evaluated ascending by priority; the first regex match wins.
type DialplanRule struct {
	ID             string
	TenantID       string
	Context        string
	Name           string
	Description    string
	Priority       int
	MatchPattern   string
	MatchCondition string // optional extra condition, JSON
	Actions        string // JSON array of dialplan actions
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Trunk is an upstream carrier connection referenced by outbound routes.
// Registration and signalling live inside the engine; this row only carries
// what routing needs.
type Trunk struct {
	ID        string
	TenantID  string
	Name      string
	Host      string
	Port      int
	Transport string
	Username  string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InboundRoute maps a DID (and optionally a caller-id pattern) to a
// destination, optionally gated by a time condition.
type InboundRoute struct {
	ID                       string
	TenantID                 string
	Name                     string
	Description              string
	DIDNumber                string
	CallerIDPattern          string
	DestinationType          string
	DestinationValue         string
	TimeConditionID          *string
	Enabled                  bool
	FailoverEnabled          bool
	FailoverDestinationType  string
	FailoverDestinationValue string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// OutboundRoute selects a trunk and digit transform for dialed numbers
// matching its pattern. Routes are evaluated ascending by priority.
type OutboundRoute struct {
	ID              string
	TenantID        string
	Name            string
	Description     string
	DialPattern     string
	TrunkID         string
	Prefix          string
	StripDigits     int
	AddDigits       string
	Priority        int
	Enabled         bool
	FailoverTrunkID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TimeCondition holds per-weekday business-hours windows and a holiday list,
// with distinct actions for the business/after-hours/holiday branches.
// BusinessHours and Holidays are JSON documents evaluated by the routing
// package.
type TimeCondition struct {
	ID                       string
	TenantID                 string
	Name                     string
	Description              string
	Timezone                 string
	BusinessHours            string // JSON: {"monday":{"enabled":true,"start_time":"09:00","end_time":"18:00"},...}
	Holidays                 string // JSON: [{"date":"2026-12-25","name":"Christmas","enabled":true},...]
	BusinessHoursAction      string
	BusinessHoursDestination string
	AfterHoursAction         string
	AfterHoursDestination    string
	HolidayAction            string
	HolidayDestination       string
	Enabled                  bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// AdminUser is an administrative account for the authoring API.
type AdminUser struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
