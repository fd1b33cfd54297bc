// Package capability wraps the injected exchange executor behind a boundary
// that cannot throw: every outcome, including panics and garbage responses,
// becomes an Envelope with an explicit OK flag and a safe user message.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Capability names the router can invoke.
const (
	CapPrice        = "price"
	CapPortfolio    = "portfolio"
	CapTransactions = "transactions"
	CapReports      = "reports"
	CapStatus       = "status"
)

// Executor is the injected external capability. The authenticated exchange
// client implements this elsewhere; tests inject fakes.
type Executor interface {
	Invoke(ctx context.Context, capabilityName string, input map[string]any) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, capabilityName string, input map[string]any) (string, error)

// Invoke implements Executor.
func (f ExecutorFunc) Invoke(ctx context.Context, name string, input map[string]any) (string, error) {
	return f(ctx, name, input)
}

// Envelope is the uniform result of a capability invocation.
type Envelope struct {
	OK          bool           `json:"ok"`
	Data        map[string]any `json:"data,omitempty"`
	ErrorCode   string         `json:"errorCode,omitempty"`
	SafeMessage string         `json:"safeMessage,omitempty"`
	Guidance    string         `json:"guidance,omitempty"`
}

// Failure builds an error envelope for code, filling message and guidance
// from the taxonomy defaults when the caller has nothing better.
func Failure(code, safeMessage, guidance string) Envelope {
	if safeMessage == "" {
		safeMessage = SafeMessageFor(code)
	}
	if guidance == "" {
		guidance = GuidanceFor(code)
	}
	return Envelope{ErrorCode: code, SafeMessage: safeMessage, Guidance: guidance}
}

// EnabledSet is the configured capability allow/deny lists. Deny wins.
type EnabledSet struct {
	Allow []string
	Deny  []string
}

// Enabled reports whether name may be invoked. An empty allow list means
// everything is allowed unless denied.
func (s EnabledSet) Enabled(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range s.Deny {
		if strings.EqualFold(strings.TrimSpace(d), name) {
			return false
		}
	}
	if len(s.Allow) == 0 {
		return true
	}
	for _, a := range s.Allow {
		if strings.EqualFold(strings.TrimSpace(a), name) {
			return true
		}
	}
	return false
}

// Adapter validates, invokes, and normalizes capability calls.
type Adapter struct {
	executor Executor
	enabled  EnabledSet
}

// NewAdapter creates an adapter over the injected executor.
func NewAdapter(executor Executor, enabled EnabledSet) *Adapter {
	return &Adapter{executor: executor, enabled: enabled}
}

// Invoke runs one capability call. It never returns an error: all failure
// modes are folded into the envelope, with the raw cause preserved only in
// Guidance (internal field, never the primary user message).
func (a *Adapter) Invoke(ctx context.Context, name string, input map[string]any) (env Envelope) {
	if !a.enabled.Enabled(name) {
		return Failure(CodeToolNotEnabled, "", "")
	}
	if a.executor == nil {
		return Failure(CodeToolRuntimeUnavailable, "", "")
	}

	defer func() {
		if r := recover(); r != nil {
			env = Failure(CodeToolExecutionFailed, "",
				fmt.Sprintf("executor panic: %v", r))
		}
	}()

	raw, err := a.executor.Invoke(ctx, name, input)
	if err != nil {
		return Failure(CodeToolExecutionFailed, "", err.Error())
	}
	return Parse(raw)
}

// Parse decodes the executor's raw text response into an envelope.
func Parse(raw string) Envelope {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Failure(CodeEmptyToolResponse, "", "")
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return Failure(CodeNonJSONToolResponse, "", err.Error())
	}

	ok, _ := body["ok"].(bool)
	if !ok {
		code, _ := body["errorCode"].(string)
		if code == "" {
			code = CodeToolExecutionFailed
		}
		msg, _ := body["safeMessage"].(string)
		guidance, _ := body["guidance"].(string)
		return Failure(code, msg, guidance)
	}

	delete(body, "ok")
	return Envelope{OK: true, Data: body}
}
