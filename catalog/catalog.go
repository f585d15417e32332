/*
Package catalog provides the static reference data the ledger runs on.

PURPOSE:
  Container-type capacities, supported bottle sizes, the default product list
  and the hydrometer temperature-correction table. None of it changes at
  runtime, so it lives in YAML: an embedded default, optionally replaced by a
  file at startup.

YAML SCHEMA:
  container_types:
    - type: barrel            # must be a known inventory.ContainerType
      label: Barrel
      capacity_gallons: 53    # 0 = not capacity-checked
  bottle_sizes_ml: [375, 750, 1750]
  products:
    - name: Bourbon
      description: Straight bourbon whiskey
  temperature_corrections:
    - temperature_f: 60       # even degrees
      corrections: {80: 0.0, 85: 0.0}   # observed proof (multiples of 5) -> degrees to add

USAGE:
  cat, err := catalog.Load(cfg.CatalogPath)   // "" = embedded default
  svc := inventory.NewService(store, cat.Options()...)

SEE ALSO:
  - gauge/correction.go: how the correction table is applied
  - inventory/ledger.go: capacity checks
*/
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/spirits-ledger/gauge"
	"github.com/warp/spirits-ledger/inventory"
)

//go:embed default.yaml
var defaultYAML []byte

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

type Catalog struct {
	ContainerTypes         []ContainerTypeYAML `yaml:"container_types"`
	BottleSizesML          []int               `yaml:"bottle_sizes_ml"`
	Products               []ProductYAML       `yaml:"products"`
	TemperatureCorrections []CorrectionRowYAML `yaml:"temperature_corrections"`
}

type ContainerTypeYAML struct {
	Type            string  `yaml:"type"`
	Label           string  `yaml:"label"`
	CapacityGallons float64 `yaml:"capacity_gallons"`
}

type ProductYAML struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// CorrectionRowYAML is one temperature row of the correction table.
type CorrectionRowYAML struct {
	TemperatureF int             `yaml:"temperature_f"`
	Corrections  map[int]float64 `yaml:"corrections"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid catalog YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the catalog for unknown types, duplicates and table keys
// that lookups could never hit.
func (c *Catalog) Validate() error {
	seen := map[string]bool{}
	for _, t := range c.ContainerTypes {
		if !inventory.ContainerType(t.Type).Valid() {
			return fmt.Errorf("catalog: unknown container type %q", t.Type)
		}
		if seen[t.Type] {
			return fmt.Errorf("catalog: container type %q listed twice", t.Type)
		}
		seen[t.Type] = true
		if t.CapacityGallons < 0 {
			return fmt.Errorf("catalog: capacity for %s cannot be negative", t.Type)
		}
	}

	for _, ml := range c.BottleSizesML {
		if ml <= 0 {
			return fmt.Errorf("catalog: bottle size must be positive, got %d", ml)
		}
	}

	names := map[string]bool{}
	for _, p := range c.Products {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			return fmt.Errorf("catalog: product name is required")
		}
		if names[key] {
			return fmt.Errorf("catalog: product %q listed twice", p.Name)
		}
		names[key] = true
	}

	for _, row := range c.TemperatureCorrections {
		if row.TemperatureF%2 != 0 {
			return fmt.Errorf("catalog: correction temperature %d°F is not even", row.TemperatureF)
		}
		for proof := range row.Corrections {
			if proof%5 != 0 || proof < 0 || proof > 200 {
				return fmt.Errorf("catalog: correction proof %d at %d°F is not a multiple of 5 in 0..200", proof, row.TemperatureF)
			}
		}
	}
	return nil
}

// =============================================================================
// DOMAIN VIEWS
// =============================================================================

// Capacities returns the capacity table keyed by container type.
func (c *Catalog) Capacities() inventory.Capacities {
	caps := make(inventory.Capacities, len(c.ContainerTypes))
	for _, t := range c.ContainerTypes {
		caps[inventory.ContainerType(t.Type)] = decimal.NewFromFloat(t.CapacityGallons)
	}
	return caps
}

// BottleSizes returns the supported bottle sizes in ascending order.
func (c *Catalog) BottleSizes() []int {
	sizes := append([]int(nil), c.BottleSizesML...)
	sort.Ints(sizes)
	return sizes
}

func (c *Catalog) CorrectionTable() gauge.CorrectionTable {
	if len(c.TemperatureCorrections) == 0 {
		return nil
	}
	table := make(gauge.CorrectionTable, len(c.TemperatureCorrections))
	for _, row := range c.TemperatureCorrections {
		cols := make(map[int]decimal.Decimal, len(row.Corrections))
		for proof, v := range row.Corrections {
			cols[proof] = decimal.NewFromFloat(v)
		}
		table[row.TemperatureF] = cols
	}
	return table
}

// DefaultProducts returns the product list to seed, without ids.
func (c *Catalog) DefaultProducts() []inventory.Product {
	out := make([]inventory.Product, 0, len(c.Products))
	for _, p := range c.Products {
		out = append(out, inventory.Product{Name: strings.TrimSpace(p.Name), Description: p.Description})
	}
	return out
}

// Label returns the display label for a container type, or the type itself.
func (c *Catalog) Label(t inventory.ContainerType) string {
	for _, ct := range c.ContainerTypes {
		if ct.Type == string(t) && ct.Label != "" {
			return ct.Label
		}
	}
	return string(t)
}

// Options binds the catalog into an inventory.Service.
func (c *Catalog) Options() []inventory.Option {
	return []inventory.Option{
		inventory.WithCapacities(c.Capacities()),
		inventory.WithBottleSizes(c.BottleSizes()),
		inventory.WithGauge(gauge.Engine{Corrections: c.CorrectionTable()}),
	}
}
