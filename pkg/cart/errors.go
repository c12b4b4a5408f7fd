package cart

import (
	"fmt"

	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/errs"
)

// VendorSelectionError is returned when an item cannot be added until the
// user picks one of Candidates. It matches errs.ErrNeedsVendorSelection.
type VendorSelectionError struct {
	ItemID         string
	PinnedVendorID string
	Candidates     []catalog.VendorOffer
}

func (e *VendorSelectionError) Error() string {
	if e.PinnedVendorID != "" {
		return fmt.Sprintf("item %s: %v (cart is bound to vendor %s)", e.ItemID, errs.ErrNeedsVendorSelection, e.PinnedVendorID)
	}
	return fmt.Sprintf("item %s: %v (%d candidates)", e.ItemID, errs.ErrNeedsVendorSelection, len(e.Candidates))
}

func (e *VendorSelectionError) Unwrap() error {
	return errs.ErrNeedsVendorSelection
}
