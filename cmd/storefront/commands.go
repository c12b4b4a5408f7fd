package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"

	"github.com/campuseats/storefront"
	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/cart"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/dashboard"
	"github.com/campuseats/storefront/pkg/session"
)

type app struct {
	sf   *storefront.Storefront
	opts options
	sess session.Session
	out  io.Writer
}

func (a *app) item() (catalog.Item, error) {
	if a.opts.itemID == "" {
		return catalog.Item{}, errors.New("--item is required")
	}
	return catalog.Item{
		ID:       a.opts.itemID,
		Name:     a.opts.itemName,
		Category: a.opts.category,
		VendorID: a.opts.vendorID,
	}, nil
}

func (a *app) cart(ctx context.Context, action string) error {
	c := a.sf.Cart
	if action == "show" {
		if _, err := c.Refresh(ctx, a.sess); err != nil {
			return err
		}
		a.printCart(c.Cart())
		return nil
	}
	if action == "clear" {
		return c.ClearCart(ctx, a.sess)
	}

	item, err := a.item()
	if err != nil {
		return err
	}
	switch action {
	case "add":
		err = c.AddItem(ctx, a.sess, item, a.opts.vendorID, a.opts.quantity)
	case "inc":
		err = c.IncreaseQuantity(ctx, a.sess, item)
	case "dec":
		err = c.DecreaseQuantity(ctx, a.sess, item)
	case "remove":
		err = c.RemoveItem(ctx, a.sess, item)
	default:
		return fmt.Errorf("unknown cart action %q", action)
	}
	if err := a.explainSelection(err); err != nil {
		return err
	}
	a.printCart(c.Cart())
	return nil
}

func (a *app) favorites(ctx context.Context, action string) error {
	favs := a.sf.Favorites
	switch action {
	case "list":
		list, err := favs.List(ctx, a.sess, a.opts.uniID)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ITEM\tNAME\tVENDOR")
		for _, f := range list {
			name := ""
			if f.Item != nil {
				name = f.Item.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", f.ItemID, name, vendorLabel(f.VendorID, f.VendorName))
		}
		return w.Flush()

	case "toggle":
		if a.opts.itemID == "" || a.opts.vendorID == "" {
			return errors.New("--item and --vendor are required")
		}
		on, err := favs.Toggle(ctx, a.sess, a.opts.itemID, a.opts.vendorID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s at %s favorited: %t\n", a.opts.itemID, a.opts.vendorID, on)
		return nil

	case "readd":
		item, err := a.item()
		if err != nil {
			return err
		}
		if _, err := favs.List(ctx, a.sess, a.opts.uniID); err != nil {
			return err
		}
		if err := a.explainSelection(a.sf.ReAddFavorite(ctx, a.sess, item)); err != nil {
			return err
		}
		a.printCart(a.sf.Cart.Cart())
		return nil
	}
	return fmt.Errorf("unknown fav action %q", action)
}

func (a *app) dashboard(ctx context.Context, action string) error {
	if a.opts.vendorID == "" {
		return errors.New("--vendor is required")
	}

	switch action {
	case "watch":
		cfg := a.sf.Config.Dashboard
		var db *dashboard.Dashboard
		db = dashboard.New(a.sf.Backend,
			dashboard.WithPollInterval(cfg.PollInterval),
			dashboard.WithLowStockThreshold(cfg.LowStockThreshold),
			dashboard.WithLogger(a.sf.Logger),
			dashboard.WithTelemetry(a.sf.Telemetry),
			dashboard.WithOnUpdate(func(s dashboard.Snapshot) { a.printSnapshot(s, db.LowStock(-1)) }),
		)
		if err := db.Start(ctx, a.sess, a.opts.vendorID); err != nil {
			return err
		}
		<-ctx.Done()
		db.Stop()
		return nil

	case "stock":
		if a.opts.itemID == "" || a.opts.value == "" {
			return errors.New("--item and --value are required")
		}
		kind, value, err := parseInventory(a.opts.kind, a.opts.value)
		if err != nil {
			return err
		}
		db := a.sf.Dashboard
		if err := db.Start(ctx, a.sess, a.opts.vendorID); err != nil {
			return err
		}
		defer db.Stop()
		return db.SetInventory(ctx, a.sess, a.opts.itemID, kind, value)

	case "status":
		if a.opts.orderID == "" || a.opts.status == "" {
			return errors.New("--order and --status are required")
		}
		db := a.sf.Dashboard
		if err := db.Start(ctx, a.sess, a.opts.vendorID); err != nil {
			return err
		}
		defer db.Stop()
		return db.UpdateOrderStatus(ctx, a.sess, a.opts.orderID, a.opts.status)
	}
	return fmt.Errorf("unknown dashboard action %q", action)
}

// explainSelection prints the vendor choices carried by a selection error and
// passes every other error through.
func (a *app) explainSelection(err error) error {
	var sel *cart.VendorSelectionError
	if !errors.As(err, &sel) {
		return err
	}
	if sel.PinnedVendorID != "" {
		fmt.Fprintf(a.out, "Your cart is from %s. Add %s from that vendor with --vendor %s\n", sel.PinnedVendorID, sel.ItemID, sel.PinnedVendorID)
		return nil
	}
	fmt.Fprintf(a.out, "Choose a vendor for %s with --vendor:\n", sel.ItemID)
	for _, v := range sel.Candidates {
		fmt.Fprintf(a.out, "  %s\t%s\n", v.ID, v.Name)
	}
	return nil
}

func (a *app) printCart(c cart.Cart) {
	if c.IsEmpty() {
		fmt.Fprintln(a.out, "Cart is empty")
		return
	}
	fmt.Fprintf(a.out, "Vendor: %s\n", vendorLabel(c.VendorID, c.VendorName))
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tNAME\tKIND\tQTY\tSUBTOTAL")
	for _, l := range c.Lines {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", l.ID, l.Name, l.Kind, l.Quantity, l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t\t%d\t%s\n", c.Count(), c.Total().StringFixed(2))
	_ = w.Flush()
}

func (a *app) printSnapshot(s dashboard.Snapshot, low []backend.InventoryEntry) {
	lowIDs := make(map[string]bool, len(low))
	for _, e := range low {
		lowIDs[e.ItemID] = true
	}
	fmt.Fprintf(a.out, "\n== %s @ %s ==\n", s.VendorID, s.FetchedAt.Format("15:04:05"))
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tSTATUS\tITEMS\tTOTAL")
	for _, o := range s.Orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.Status, orderItems(o), o.Total.StringFixed(2))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "ITEM\tKIND\tSTOCK\t")
	for _, e := range s.Inventory {
		marker := ""
		if lowIDs[e.ItemID] {
			marker = "LOW"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ItemID, e.Kind, stockLabel(e), marker)
	}
	_ = w.Flush()
}

func parseInventory(kind, value string) (catalog.Kind, catalog.InventoryValue, error) {
	switch catalog.Kind(kind) {
	case catalog.Retail:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", catalog.InventoryValue{}, fmt.Errorf("retail stock must be a number: %w", err)
		}
		return catalog.Retail, catalog.QuantityValue(n), nil
	case catalog.Produce:
		return catalog.Produce, catalog.FlagValue(value), nil
	}
	return "", catalog.InventoryValue{}, fmt.Errorf("--kind must be Retail or Produce, got %q", kind)
}

func stockLabel(e backend.InventoryEntry) string {
	if n, ok := e.InventoryValue.Count(); ok {
		return n.String()
	}
	if flag, ok := e.InventoryValue.Flag(); ok {
		return flag
	}
	return "-"
}

func orderItems(o backend.Order) string {
	parts := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		parts = append(parts, fmt.Sprintf("%dx %s", l.Quantity, l.ItemID))
	}
	return strings.Join(parts, ", ")
}

func vendorLabel(id, name string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}
