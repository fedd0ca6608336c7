package xmlcurl

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/voxgate/voxgate/internal/database"
	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/dialplan"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// Handler answers the engine's xml_curl lookups. A directory request
// resolves an extension to a user document; a dialplan request renders a
// context's rules. Anything unresolvable gets the not-found stub with
// status 200, because the engine requires a well-formed document even for
// misses.
type Handler struct {
	tenants    database.TenantRepository
	extensions database.ExtensionRepository
	rules      database.DialplanRuleRepository
	logger     *slog.Logger
}

// NewHandler creates the callback handler.
func NewHandler(
	tenants database.TenantRepository,
	extensions database.ExtensionRepository,
	rules database.DialplanRuleRepository,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		tenants:    tenants,
		extensions: extensions,
		rules:      rules,
		logger:     logger.With("component", "xmlcurl"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.notFound(w, "unparseable request", "error", err)
		return
	}

	params := flatten(r.Form)
	sipDomain, userID := extractLookupKeys(params)
	section := params["section"]

	ctx := r.Context()
	tenant, err := h.resolveTenant(ctx, sipDomain, userID)
	if err != nil {
		h.notFound(w, "tenant not resolvable", "domain", sipDomain, "user", userID)
		return
	}

	var doc string
	switch section {
	case "directory":
		doc, err = h.directoryDoc(ctx, tenant, userID)
	case "dialplan":
		doc, err = h.dialplanDoc(ctx, tenant, params)
	default:
		h.notFound(w, "unhandled section", "section", section)
		return
	}
	if err != nil {
		h.notFound(w, "lookup failed", "section", section, "error", err)
		return
	}

	writeXML(w, doc)
}

// extractLookupKeys pulls domain and user out of the request. xml_locate
// sends several shapes: plain domain/user fields, channel variables, or a
// key_value of the form "user <ext>".
func extractLookupKeys(params map[string]string) (sipDomain, userID string) {
	sipDomain = params["domain"]
	if sipDomain == "" {
		sipDomain = params["variable_domain_name"]
	}
	userID = params["user"]
	if userID == "" {
		userID = params["Caller-Caller-ID-Number"]
	}

	if kv := params["key_value"]; kv != "" {
		if rest, ok := strings.CutPrefix(kv, "user "); ok {
			userID = strings.TrimSpace(rest)
			if sipDomain == "" {
				sipDomain = params["key_name"]
			}
		} else if sipDomain == "" {
			sipDomain = kv
		}
	}
	if sipDomain == "" {
		sipDomain = params["key_name"]
	}
	return sipDomain, userID
}

// resolveTenant finds the tenant by SIP domain, falling back to a reverse
// lookup through the extension number when the domain is absent or unknown.
func (h *Handler) resolveTenant(ctx context.Context, sipDomain, userID string) (*models.Tenant, error) {
	if sipDomain != "" {
		tenant, err := h.tenants.GetBySIPDomain(ctx, sipDomain)
		if err == nil && tenant.Status == "active" {
			return tenant, nil
		}
	}
	if userID != "" {
		tenantID, err := h.extensions.FindTenantIDByNumber(ctx, userID)
		if err == nil {
			return h.tenants.GetByID(ctx, tenantID)
		}
	}
	return nil, voxerr.ErrNotFound
}

func (h *Handler) directoryDoc(ctx context.Context, tenant *models.Tenant, userID string) (string, error) {
	if userID == "" {
		return "", voxerr.ErrNotFound
	}
	ext, err := h.extensions.GetByNumber(ctx, tenant.ID, userID)
	if err != nil {
		return "", err
	}
	displayName := ext.DisplayName
	if displayName == "" {
		displayName = ext.Extension
	}

	doc := document{
		Type: "freeswitch/xml",
		Section: section{
			Name: "directory",
			Domain: &domain{
				Name: tenant.SIPDomain,
				Params: []param{{
					Name:  "dial-string",
					Value: "{presence_id=${dialed_user}@${dialed_domain}}${sofia_contact(${dialed_user}@${dialed_domain})}",
				}},
				Groups: []group{{
					Name: "default",
					Users: []user{{
						ID: ext.Extension,
						Params: []param{
							{Name: "password", Value: ext.Password},
							{Name: "vm-password", Value: ext.VoicemailPIN},
						},
						Variables: []variable{
							{Name: "tenant_id", Value: tenant.ID},
							{Name: "tenant_slug", Value: tenant.Slug},
							{Name: "accountcode", Value: ext.Extension},
							{Name: "user_context", Value: dialplan.ContextName(tenant.Slug, "internal")},
							{Name: "effective_caller_id_name", Value: displayName},
							{Name: "effective_caller_id_number", Value: ext.Extension},
							{Name: "callgroup", Value: tenant.ID},
							{Name: "outbound_caller_id_number", Value: ext.Extension},
						},
					}},
				}},
			},
		},
	}
	return render(doc)
}

func (h *Handler) dialplanDoc(ctx context.Context, tenant *models.Tenant, params map[string]string) (string, error) {
	callContext := params["Caller-Context"]
	if callContext == "" {
		callContext = params["context"]
	}
	if callContext == "" {
		callContext = dialplan.ContextName(tenant.Slug, "internal")
	}

	rules, err := h.rules.ListEnabledByContext(ctx, tenant.ID, callContext)
	if err != nil {
		return "", err
	}

	exts := make([]extension, 0, len(rules))
	for _, rule := range rules {
		actions, err := dialplan.ParseActions(rule.Actions)
		if err != nil {
			h.logger.Warn("skipping rule with invalid actions", "rule_id", rule.ID, "error", err)
			continue
		}
		xas := make([]xmlAction, 0, len(actions))
		for _, a := range actions {
			xas = append(xas, toXMLAction(a))
		}
		exts = append(exts, extension{
			Name: rule.Name,
			Condition: condition{
				Field:      "destination_number",
				Expression: rule.MatchPattern,
				Actions:    xas,
			},
		})
	}

	doc := document{
		Type: "freeswitch/xml",
		Section: section{
			Name:    "dialplan",
			Context: &xmContext{Name: callContext, Extensions: exts},
		},
	}
	return render(doc)
}

func (h *Handler) notFound(w http.ResponseWriter, msg string, args ...any) {
	h.logger.Debug("xmlcurl miss: "+msg, args...)
	writeXML(w, NotFoundXML)
}

func writeXML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func flatten(form map[string][]string) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
