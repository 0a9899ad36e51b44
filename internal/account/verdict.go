package account

// Decision is the outcome of evaluating a proposed operation.
type Decision int

const (
	Allow Decision = iota
	Reject
	RequireApproval
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Reject:
		return "reject"
	case RequireApproval:
		return "require_approval"
	default:
		return "unknown"
	}
}

// Verdict is the result of evaluating a single operation. Reject and
// RequireApproval verdicts carry the domain error identifying the failed
// rule plus a human-readable reason.
type Verdict struct {
	Decision Decision
	Reason   string
	Err      error
}

// Allowed reports whether the operation may proceed.
func (v Verdict) Allowed() bool { return v.Decision == Allow }

// Pass returns an Allow verdict.
func Pass() Verdict {
	return Verdict{Decision: Allow, Reason: "all checks passed"}
}

// Rejected returns a Reject verdict wrapping the given domain error.
func Rejected(err error, reason string) Verdict {
	return Verdict{Decision: Reject, Reason: reason, Err: err}
}

// NeedsApproval returns a RequireApproval verdict.
func NeedsApproval(reason string) Verdict {
	return Verdict{Decision: RequireApproval, Reason: reason, Err: ErrApprovalRequired}
}
