package fakebackend

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/session"
)

// SeedFile is the YAML layout accepted by LoadSeed.
//
//	accounts:
//	  - {token: tok-asha, id: U1, name: Asha, uni_id: uni-1}
//	items:
//	  - {id: I1, name: Masala Chips, price: "50", category: snacks}
//	vendors:
//	  - id: V1
//	    name: Campus Cafe
//	    stock:
//	      I1: {quantity: 10}
//	      I3: {is_available: "Y"}
type SeedFile struct {
	MaxQuantity int           `yaml:"max_quantity"`
	Accounts    []seedAccount `yaml:"accounts"`
	Items       []seedItem    `yaml:"items"`
	Vendors     []seedVendor  `yaml:"vendors"`
}

type seedAccount struct {
	Token string `yaml:"token"`
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	UniID string `yaml:"uni_id"`
	Role  string `yaml:"role"`
}

type seedItem struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Image    string `yaml:"image"`
	Category string `yaml:"category"`
}

type seedStock struct {
	Quantity    *int    `yaml:"quantity"`
	IsAvailable *string `yaml:"is_available"`
}

type seedVendor struct {
	ID    string               `yaml:"id"`
	Name  string               `yaml:"name"`
	Stock map[string]seedStock `yaml:"stock"`
}

// LoadSeed reads a YAML seed file into s.
func LoadSeed(s *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return Apply(s, f)
}

// Apply loads the contents of f into s.
func Apply(s *Store, f SeedFile) error {
	if f.MaxQuantity > 0 {
		s.SetMaxQuantity(f.MaxQuantity)
	}
	for _, a := range f.Accounts {
		s.AddAccount(a.Token, session.User{ID: a.ID, Name: a.Name, Email: a.Email, UniID: a.UniID, Role: a.Role})
	}
	for _, it := range f.Items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return fmt.Errorf("item %s: invalid price %q: %w", it.ID, it.Price, err)
		}
		s.AddItem(catalog.Item{ID: it.ID, Name: it.Name, Price: price, Image: it.Image, Category: it.Category})
	}
	for _, v := range f.Vendors {
		s.AddVendor(v.ID, v.Name)
		for itemID, st := range v.Stock {
			switch {
			case st.Quantity != nil:
				s.Stock(v.ID, itemID, catalog.QuantityValue(*st.Quantity))
			case st.IsAvailable != nil:
				s.Stock(v.ID, itemID, catalog.FlagValue(*st.IsAvailable))
			default:
				return fmt.Errorf("vendor %s item %s: stock needs quantity or is_available", v.ID, itemID)
			}
		}
	}
	return nil
}

// Seed fills s with a small campus: two vendors sharing some items, two
// students and one vendor account, and a couple of open orders.
func Seed(s *Store) {
	intp := func(n int) *int { return &n }
	strp := func(v string) *string { return &v }

	_ = Apply(s, SeedFile{
		Accounts: []seedAccount{
			{Token: "tok-asha", ID: "U1", Name: "Asha", Email: "asha@campus.edu", UniID: "uni-1", Role: "student"},
			{Token: "tok-ravi", ID: "U2", Name: "Ravi", Email: "ravi@campus.edu", UniID: "uni-1", Role: "student"},
			{Token: "tok-cafe", ID: "U-V1", Name: "Campus Cafe", Role: "vendor"},
		},
		Items: []seedItem{
			{ID: "I1", Name: "Masala Chips", Price: "50", Category: "snacks"},
			{ID: "I2", Name: "Cold Coffee", Price: "80", Category: "drinks"},
			{ID: "I3", Name: "Veg Thali", Price: "120", Category: "meals"},
			{ID: "I4", Name: "Paneer Roll", Price: "90", Category: "veg"},
			{ID: "I5", Name: "Notebook", Price: "45.50", Category: "stationery"},
		},
		Vendors: []seedVendor{
			{ID: "V1", Name: "Campus Cafe", Stock: map[string]seedStock{
				"I1": {Quantity: intp(10)},
				"I2": {Quantity: intp(0)},
				"I3": {IsAvailable: strp("Y")},
				"I5": {Quantity: intp(4)},
			}},
			{ID: "V2", Name: "Green Kitchen", Stock: map[string]seedStock{
				"I1": {Quantity: intp(3)},
				"I3": {IsAvailable: strp("N")},
				"I4": {IsAvailable: strp("Y")},
			}},
		},
	})

	now := time.Now().UTC()
	s.AddOrder(backend.Order{
		ID: "O1", OrderNumber: "1001", UserID: "U2", VendorID: "V1", Status: "placed",
		Lines:     []backend.OrderLine{{ItemID: "I3", Name: "Veg Thali", Quantity: 1, Kind: catalog.Produce}},
		Total:     decimal.NewFromInt(120),
		CreatedAt: now.Add(-10 * time.Minute),
	})
	s.AddOrder(backend.Order{
		ID: "O2", OrderNumber: "1002", UserID: "U1", VendorID: "V1", Status: "preparing",
		Lines:     []backend.OrderLine{{ItemID: "I1", Name: "Masala Chips", Quantity: 2, Kind: catalog.Retail}},
		Total:     decimal.NewFromInt(100),
		CreatedAt: now.Add(-5 * time.Minute),
	})
}
