package services

import (
	"fmt"

	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
)

type Verdict int

const (
	VerdictApprove Verdict = iota
	VerdictDeny
	VerdictDefer
)

func (v Verdict) String() string {
	switch v {
	case VerdictApprove:
		return "approve"
	case VerdictDeny:
		return "deny"
	case VerdictDefer:
		return "defer"
	}
	return "unknown"
}

// Decision is the reduction of a set of integration outcomes.
type Decision struct {
	Verdict Verdict
	Reason  string
	// Cause is the outcome that decided a deny or defer.
	Cause *gateway.Outcome
}

// Reduce folds outcomes into a single decision. A business rejection from
// any partner denies, even when other calls failed transiently. Otherwise
// any failure defers, and only an all-success set approves.
func Reduce(outcomes []gateway.Outcome) Decision {
	var deferred *gateway.Outcome

	for i := range outcomes {
		o := &outcomes[i]
		if o.Succeeded() {
			continue
		}
		if o.Err != nil && o.Err.IsBusinessRejection() {
			return Decision{Verdict: VerdictDeny, Reason: rejectionReason(o), Cause: o}
		}
		if deferred == nil {
			deferred = o
		}
	}

	if deferred != nil {
		return Decision{Verdict: VerdictDefer, Reason: deferralReason(deferred), Cause: deferred}
	}
	return Decision{Verdict: VerdictApprove}
}

func rejectionReason(o *gateway.Outcome) string {
	if o.Err.Reason != "" {
		return fmt.Sprintf("%s rejected: %s", o.Call.Partner, o.Err.Reason)
	}
	return fmt.Sprintf("%s rejected the request", o.Call.Partner)
}

func deferralReason(o *gateway.Outcome) string {
	if o.Err == nil {
		return fmt.Sprintf("%s returned no response", o.Call.Partner)
	}
	kind := o.Err.Kind
	if kind == gateway.KindRetriesExhausted {
		if last, ok := gateway.AsIntegrationError(o.Err.Err); ok {
			return fmt.Sprintf("%s unavailable: retries exhausted after %s", o.Call.Partner, last.Kind)
		}
	}
	return fmt.Sprintf("%s unavailable: %s", o.Call.Partner, kind)
}
