package dharma

import "strings"

// quarantined reports whether an agent or action is operating under
// quarantine, per §4.5.3: either the agent id is prefixed "quarantine:" or
// the action explicitly opts in via args.quarantine.
func quarantined(action Action, ctx Context) bool {
	if strings.HasPrefix(ctx.AgentID, "quarantine:") {
		return true
	}
	if v, ok := action.Args["quarantine"]; ok {
		if b, ok := v.(bool); ok && b {
			return true
		}
	}
	return false
}

// networkTools are names commonly associated with network access, used by
// SkillNetworkIsolation to catch tool-call actions that aren't literally
// ActionNetworkRequest.
var networkTools = map[string]bool{
	"http_get": true, "http_post": true, "fetch_url": true, "web_search": true,
}

// SkillRequiresReview denies registering an external skill unless it was
// explicitly approved or comes from an already-trusted source.
func SkillRequiresReview() PolicyRule {
	return NewRuleFunc("skill-requires-review", CategorySecurity, func(a Action, c Context) Verdict {
		if a.ToolName != "register_skill" && a.Type != ActionAgentSpawn {
			return Verdict{Status: StatusAllow, RuleID: "skill-requires-review"}
		}
		if approved, ok := a.Args["approved"].(bool); ok && approved {
			return Verdict{Status: StatusAllow, RuleID: "skill-requires-review"}
		}
		if source, ok := a.Args["source"].(string); ok {
			switch source {
			case "tool", "mcp-server", "plugin":
				return Verdict{Status: StatusAllow, RuleID: "skill-requires-review"}
			}
		}
		return Verdict{
			Status:     StatusDeny,
			RuleID:     "skill-requires-review",
			Reason:     "external skill registration requires explicit review approval",
			Suggestion: "set args.approved=true after human review, or register via a trusted source",
		}
	})
}

// SkillNetworkIsolation denies network access from a quarantined context.
func SkillNetworkIsolation() PolicyRule {
	return NewRuleFunc("skill-network-isolation", CategorySecurity, func(a Action, c Context) Verdict {
		if !quarantined(a, c) {
			return Verdict{Status: StatusAllow, RuleID: "skill-network-isolation"}
		}
		if a.Type == ActionNetworkRequest || networkTools[a.ToolName] {
			return Verdict{
				Status: StatusDeny,
				RuleID: "skill-network-isolation",
				Reason: "network access is denied from a quarantined context",
			}
		}
		return Verdict{Status: StatusAllow, RuleID: "skill-network-isolation"}
	})
}

// SkillFileSandbox denies file operations outside the skill staging
// directory from a quarantined context.
func SkillFileSandbox(stagingDir string) PolicyRule {
	return NewRuleFunc("skill-file-sandbox", CategorySecurity, func(a Action, c Context) Verdict {
		if !quarantined(a, c) {
			return Verdict{Status: StatusAllow, RuleID: "skill-file-sandbox"}
		}
		switch a.Type {
		case ActionFileRead, ActionFileWrite, ActionFileDelete:
		default:
			return Verdict{Status: StatusAllow, RuleID: "skill-file-sandbox"}
		}
		if strings.HasPrefix(a.FilePath, stagingDir) {
			return Verdict{Status: StatusAllow, RuleID: "skill-file-sandbox"}
		}
		return Verdict{
			Status:     StatusDeny,
			RuleID:     "skill-file-sandbox",
			Reason:     "file operations outside the skill staging directory are denied under quarantine",
			Suggestion: "stage files under " + stagingDir,
		}
	})
}

// SkillSecuritySet bundles the three canonical skill-security rules into a
// single policy set, ready to append to an Engine.
func SkillSecuritySet(stagingDir string) PolicySet {
	return PolicySet{
		Name: "skill-security",
		Rules: []PolicyRule{
			SkillRequiresReview(),
			SkillNetworkIsolation(),
			SkillFileSandbox(stagingDir),
		},
	}
}
