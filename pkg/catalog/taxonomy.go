package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/campuseats/storefront/pkg/errs"
)

// Taxonomy partitions category labels into retail and produce sets.
// Labels compare case-insensitively.
type Taxonomy struct {
	retail  map[string]struct{}
	produce map[string]struct{}
}

// NewTaxonomy builds a taxonomy and rejects a label present in both sets.
func NewTaxonomy(retail, produce []string) (*Taxonomy, error) {
	t := &Taxonomy{
		retail:  toSet(retail),
		produce: toSet(produce),
	}
	for label := range t.produce {
		if _, dup := t.retail[label]; dup {
			return nil, &errs.Error{
				Op:       "catalog.NewTaxonomy",
				Category: errs.CategoryConfig,
				Message:  fmt.Sprintf("category %q is listed as both retail and produce", label),
				Err:      errs.ErrInvalidConfiguration,
			}
		}
	}
	return t, nil
}

// taxonomyFile is the on-disk YAML form.
type taxonomyFile struct {
	Retail  []string `yaml:"retail"`
	Produce []string `yaml:"produce"`
}

// LoadTaxonomy reads a YAML file with "retail" and "produce" lists.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file %s: %w", path, err)
	}
	var f taxonomyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file %s: %v: %w", path, err, errs.ErrInvalidConfiguration)
	}
	return NewTaxonomy(f.Retail, f.Produce)
}

// KindOf classifies an item. Category membership decides first; an explicit
// Type is honored only for categories in neither set; everything else is
// Produce.
func (t *Taxonomy) KindOf(item Item) Kind {
	label := normalize(item.Category)
	if _, ok := t.retail[label]; ok {
		return Retail
	}
	if _, ok := t.produce[label]; ok {
		return Produce
	}
	if item.Type.Valid() {
		return item.Type
	}
	return Produce
}

// IsRetail reports whether the category label is in the retail set.
func (t *Taxonomy) IsRetail(category string) bool {
	_, ok := t.retail[normalize(category)]
	return ok
}

// Retail returns the retail labels, sorted.
func (t *Taxonomy) Retail() []string { return sortedKeys(t.retail) }

// Produce returns the produce labels, sorted.
func (t *Taxonomy) Produce() []string { return sortedKeys(t.produce) }

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if n := normalize(l); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
