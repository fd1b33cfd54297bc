package capability

// Error codes surfaced by the adapter and the gate. Every failure the user
// can see is one of these; raw errors never cross the adapter boundary.
const (
	CodeToolRuntimeUnavailable = "TOOL_RUNTIME_UNAVAILABLE"
	CodeToolNotEnabled         = "TOOL_NOT_ENABLED"
	CodeToolExecutionFailed    = "TOOL_EXECUTION_FAILED"
	CodeEmptyToolResponse      = "EMPTY_TOOL_RESPONSE"
	CodeNonJSONToolResponse    = "NON_JSON_TOOL_RESPONSE"
	CodeConsentRequired        = "CONSENT_REQUIRED"
	CodeDisconnected           = "DISCONNECTED"
	CodeAuthFailed             = "AUTH_FAILED"
	CodeAuthUnsupported        = "AUTH_UNSUPPORTED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeRolloutBlocked         = "ROLLOUT_BLOCKED"
	CodeUpstreamUnavailable    = "UPSTREAM_UNAVAILABLE"
)

// defaultGuidance is the fallback next step when a failure carries none.
const defaultGuidance = "Retry in a moment."

type codeDefaults struct {
	safeMessage string
	guidance    string
}

var defaults = map[string]codeDefaults{
	CodeToolRuntimeUnavailable: {
		"The exchange integration isn't available right now.",
		"Check that the integration is connected in settings, then retry.",
	},
	CodeToolNotEnabled: {
		"That capability is disabled by admin policy.",
		"Ask an admin to enable it, or try a different request.",
	},
	CodeToolExecutionFailed: {
		"The exchange request didn't complete.",
		defaultGuidance,
	},
	CodeEmptyToolResponse: {
		"The exchange returned no data.",
		defaultGuidance,
	},
	CodeNonJSONToolResponse: {
		"The exchange returned data I couldn't read.",
		defaultGuidance,
	},
	CodeConsentRequired: {
		"I need your permission before reading exchange data.",
		"Grant access in settings, then ask again.",
	},
	CodeDisconnected: {
		"Your exchange account isn't connected.",
		"Reconnect the account in settings.",
	},
	CodeAuthFailed: {
		"The exchange rejected the stored credentials.",
		"Reconnect the account to refresh credentials.",
	},
	CodeAuthUnsupported: {
		"This account's authentication method isn't supported.",
		"Reconnect using an API key.",
	},
	CodeRateLimited: {
		"The exchange is rate limiting requests.",
		"Wait a minute before asking again.",
	},
	CodeRolloutBlocked: {
		"This feature isn't enabled for your account yet.",
		"It's rolling out gradually; check back soon.",
	},
	CodeUpstreamUnavailable: {
		"The exchange looks unavailable right now.",
		"I'll stop retrying briefly; ask again in a minute.",
	},
}

// SafeMessageFor returns the default user-facing message for a code.
func SafeMessageFor(code string) string {
	if d, ok := defaults[code]; ok {
		return d.safeMessage
	}
	return "Something went wrong with that request."
}

// GuidanceFor returns the default actionable next step for a code.
func GuidanceFor(code string) string {
	if d, ok := defaults[code]; ok {
		return d.guidance
	}
	return defaultGuidance
}
