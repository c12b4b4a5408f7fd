package cart

import (
	"github.com/campuseats/storefront/pkg/catalog"
)

// Verdict is the guard's answer for a candidate item.
type Verdict int

const (
	Allow Verdict = iota
	NeedsVendorSelection
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case NeedsVendorSelection:
		return "needs-vendor-selection"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// ReasonVendorMismatch is the reason given when a candidate's vendor differs
// from the cart's.
const ReasonVendorMismatch = "vendor-mismatch"

// Decision is the result of CanAdd. PinnedVendorID is set when a vendor must
// still be chosen but only one vendor is acceptable.
type Decision struct {
	Verdict        Verdict
	Reason         string
	PinnedVendorID string
}

// CanAdd decides whether candidate may go into current without breaking the
// one-vendor rule. It does no I/O and ignores stock: a same-vendor item that
// is out of stock is still allowed here and caught when the mutation is made.
func CanAdd(candidate catalog.Item, current Cart) Decision {
	bound := current.BoundVendor()

	if bound == "" {
		if candidate.VendorID == "" {
			return Decision{Verdict: NeedsVendorSelection}
		}
		return Decision{Verdict: Allow}
	}

	switch candidate.VendorID {
	case "":
		return Decision{Verdict: NeedsVendorSelection, PinnedVendorID: bound}
	case bound:
		return Decision{Verdict: Allow}
	default:
		return Decision{Verdict: Reject, Reason: ReasonVendorMismatch}
	}
}
