// Package dialplan evaluates tenant-scoped routing rules. A rule pairs a
// regular expression with an ordered action list; within a context the
// enabled rules are tried ascending by priority and the first match wins.
package dialplan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/voxgate/voxgate/internal/voxerr"
)

// Action types understood by the engine. The set is closed: authoring an
// unknown type is rejected at write time.
const (
	ActionSet        = "set"
	ActionBridge     = "bridge"
	ActionAnswer     = "answer"
	ActionHangup     = "hangup"
	ActionPlayback   = "playback"
	ActionVoicemail  = "voicemail"
	ActionTransfer   = "transfer"
	ActionCallcenter = "callcenter"
)

// Action is one step in a rule's action list. Which field carries the
// payload depends on Type: set/playback/voicemail use Data, bridge/transfer
// use Target, hangup optionally names a Cause.
type Action struct {
	Type   string `json:"type"`
	Data   string `json:"data,omitempty"`
	Target string `json:"target,omitempty"`
	Cause  string `json:"cause,omitempty"`
}

// Validate checks that the action type is known and its payload field is set.
func (a Action) Validate() error {
	switch a.Type {
	case ActionSet, ActionPlayback, ActionVoicemail, ActionCallcenter:
		if a.Data == "" {
			return voxerr.Validationf("actions", "%s action requires data", a.Type)
		}
	case ActionBridge, ActionTransfer:
		if a.Target == "" {
			return voxerr.Validationf("actions", "%s action requires target", a.Type)
		}
	case ActionAnswer, ActionHangup:
		// No payload required.
	default:
		return voxerr.Validationf("actions", "unknown action type %q", a.Type)
	}
	return nil
}

// ParseActions decodes and validates a rule's stored action list.
func ParseActions(raw string) ([]Action, error) {
	var actions []Action
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		return nil, voxerr.Validationf("actions", "invalid action list: %v", err)
	}
	if len(actions) == 0 {
		return nil, voxerr.Validationf("actions", "action list must not be empty")
	}
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return actions, nil
}

// EncodeActions serializes an action list for storage.
func EncodeActions(actions []Action) (string, error) {
	raw, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("encoding actions: %w", err)
	}
	return string(raw), nil
}

// ExpandGroups substitutes $1..$9 references in s with the corresponding
// capture group. Unmatched references expand to the empty string.
func ExpandGroups(s string, groups []string) string {
	if !strings.ContainsRune(s, '$') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && s[i+1] >= '1' && s[i+1] <= '9' {
			n, _ := strconv.Atoi(string(s[i+1]))
			if n <= len(groups) {
				b.WriteString(groups[n-1])
			}
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
