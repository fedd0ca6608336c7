package dialplan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/database/models"
)

// ContextTypes are the canonical per-tenant routing scopes. A tenant's
// context names are "<slug>-<type>".
var ContextTypes = []string{
	"internal", "outbound", "external", "features", "voicemail", "emergency",
}

// ContextName builds the tenant-scoped context name.
func ContextName(slug, contextType string) string {
	return slug + "-" + contextType
}

// ContextType extracts the type suffix from a context name.
func ContextType(name string) string {
	if i := strings.LastIndexByte(name, '-'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// SeedTenantContexts creates the default rule set for every canonical
// context of a tenant. Called once at tenant creation.
func SeedTenantContexts(ctx context.Context, rules database.DialplanRuleRepository, tenantID, slug string) error {
	for _, contextType := range ContextTypes {
		if err := SeedContextRules(ctx, rules, tenantID, ContextName(slug, contextType)); err != nil {
			return err
		}
	}
	return nil
}

// SeedContextRules creates the fixed default rules for one context. The
// type suffix of the context name selects the rule set.
func SeedContextRules(ctx context.Context, rules database.DialplanRuleRepository, tenantID, contextName string) error {
	var seeds []seedRule

	switch ContextType(contextName) {
	case "internal":
		seeds = []seedRule{{
			name:        "Internal Calls",
			description: "Route calls to internal extensions (1000-1999)",
			priority:    100,
			pattern:     `^(1\d{3})$`,
			actions: []Action{
				{Type: ActionSet, Data: "hangup_after_bridge=true"},
				{Type: ActionBridge, Target: "user/$1@${domain_name}"},
			},
		}}

	case "outbound":
		// Populated dynamically from outbound routes; only the terminal
		// fallback is seeded.
		seeds = []seedRule{{
			name:        "Outbound Default",
			description: "Default outbound routing",
			priority:    999,
			pattern:     `^(.+)$`,
			actions: []Action{
				{Type: ActionHangup, Cause: "NO_ROUTE_DESTINATION"},
			},
		}}

	case "features":
		seeds = []seedRule{
			{
				name:        "Call Forward Enable",
				description: "Enable call forwarding: *21 + extension",
				priority:    10,
				pattern:     `^\*21(\d+)$`,
				actions: []Action{
					{Type: ActionSet, Data: "user_data(${caller_id_number}@${domain_name} var call_forward_number)=$1"},
					{Type: ActionAnswer},
					{Type: ActionPlayback, Data: "ivr/ivr-call_forwarding_has_been_set.wav"},
					{Type: ActionHangup},
				},
			},
			{
				name:        "Call Forward Disable",
				description: "Disable call forwarding: *22",
				priority:    11,
				pattern:     `^\*22$`,
				actions: []Action{
					{Type: ActionSet, Data: "user_data(${caller_id_number}@${domain_name} var call_forward_number)="},
					{Type: ActionAnswer},
					{Type: ActionPlayback, Data: "ivr/ivr-call_forwarding_has_been_cancelled.wav"},
					{Type: ActionHangup},
				},
			},
			{
				name:        "Voicemail Check",
				description: "Check voicemail: *98",
				priority:    20,
				pattern:     `^\*98$`,
				actions: []Action{
					{Type: ActionAnswer},
					{Type: ActionVoicemail, Data: "check default ${domain_name} ${caller_id_number}"},
				},
			},
			{
				name:        "DND Enable",
				description: "Enable Do Not Disturb: *76",
				priority:    30,
				pattern:     `^\*76$`,
				actions: []Action{
					{Type: ActionSet, Data: "user_data(${caller_id_number}@${domain_name} var dnd)=true"},
					{Type: ActionAnswer},
					{Type: ActionPlayback, Data: "ivr/ivr-dnd_activated.wav"},
					{Type: ActionHangup},
				},
			},
			{
				name:        "DND Disable",
				description: "Disable Do Not Disturb: *77",
				priority:    31,
				pattern:     `^\*77$`,
				actions: []Action{
					{Type: ActionSet, Data: "user_data(${caller_id_number}@${domain_name} var dnd)=false"},
					{Type: ActionAnswer},
					{Type: ActionPlayback, Data: "ivr/ivr-dnd_cancelled.wav"},
					{Type: ActionHangup},
				},
			},
		}

	case "voicemail":
		seeds = []seedRule{{
			name:        "Voicemail Deposit",
			description: "Send caller to voicemail for extension",
			priority:    100,
			pattern:     `^(\d+)$`,
			actions: []Action{
				{Type: ActionAnswer},
				{Type: ActionVoicemail, Data: "default ${domain_name} $1"},
			},
		}}

	case "emergency":
		seeds = []seedRule{{
			name:        "Emergency Numbers",
			description: "Route emergency calls (112, 113, 115, 118)",
			priority:    1,
			pattern:     `^(112|113|115|118)$`,
			actions: []Action{
				{Type: ActionSet, Data: "effective_caller_id_number=${outbound_caller_id_number}"},
				{Type: ActionBridge, Target: "sofia/external/$1"},
			},
		}}

	case "external":
		// Populated dynamically from inbound routes.
		seeds = []seedRule{{
			name:        "External Inbound Default",
			description: "Default inbound routing",
			priority:    999,
			pattern:     `^(.+)$`,
			actions: []Action{
				{Type: ActionAnswer},
				{Type: ActionPlayback, Data: "ivr/ivr-no_route_destination.wav"},
				{Type: ActionHangup},
			},
		}}

	default:
		return fmt.Errorf("unknown context type in %q", contextName)
	}

	for _, seed := range seeds {
		raw, err := EncodeActions(seed.actions)
		if err != nil {
			return err
		}
		rule := &models.DialplanRule{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			Context:      contextName,
			Name:         seed.name,
			Description:  seed.description,
			Priority:     seed.priority,
			MatchPattern: seed.pattern,
			Actions:      raw,
			Enabled:      true,
		}
		if err := rules.Create(ctx, rule); err != nil {
			return fmt.Errorf("seeding %s rule %q: %w", contextName, seed.name, err)
		}
	}
	return nil
}

type seedRule struct {
	name        string
	description string
	priority    int
	pattern     string
	actions     []Action
}
