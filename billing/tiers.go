package billing

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	TierUnknown = "Unknown"
	TierFree    = "Free"
)

type Tier struct {
	Name       string `yaml:"tier" json:"tier"`
	Credits    int    `yaml:"credits" json:"credits"`
	BrandLimit int    `yaml:"brand_limit" json:"brandLimit"`
}

// Catalog maps a payment price id to the plan it grants.
type Catalog struct {
	tiers map[string]Tier
}

var defaultTiers = map[string]Tier{
	"price_1Rw3Am09B4tvq6CDhYHJ1Tl0": {Name: "Essential", Credits: 350, BrandLimit: 1},
	"price_1Rw3BL09B4tvq6CDYgOfacYx": {Name: "Growth", Credits: 1050, BrandLimit: 3},
	"price_1Rw3CB09B4tvq6CDFSp6F3pP": {Name: "Creator", Credits: 2500, BrandLimit: 5},
	"price_1Rw3Cd09B4tvq6CDuZ9Z9x4h": {Name: "Professional", Credits: 5200, BrandLimit: 7},
	"price_1Rw3DN09B4tvq6CDWhcrlYoc": {Name: "Enterprise", Credits: 10750, BrandLimit: 10},
}

func DefaultCatalog() *Catalog {
	return NewCatalog(defaultTiers)
}

func NewCatalog(tiers map[string]Tier) *Catalog {
	copied := make(map[string]Tier, len(tiers))
	for priceID, tier := range tiers {
		priceID = strings.TrimSpace(priceID)
		if priceID == "" {
			continue
		}
		copied[priceID] = tier
	}
	return &Catalog{tiers: copied}
}

type catalogFile struct {
	Replace bool            `yaml:"replace"`
	Prices  map[string]Tier `yaml:"prices"`
}

// LoadCatalog reads a YAML price table. Entries are merged over the built-in
// table unless the file sets replace: true.
//
//	replace: false
//	prices:
//	  price_123:
//	    tier: Growth
//	    credits: 1050
//	    brand_limit: 3
func LoadCatalog(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("billing: read tier catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("billing: parse tier catalog: %w", err)
	}
	merged := map[string]Tier{}
	if !file.Replace {
		for priceID, tier := range defaultTiers {
			merged[priceID] = tier
		}
	}
	for priceID, tier := range file.Prices {
		if strings.TrimSpace(tier.Name) == "" {
			return nil, fmt.Errorf("billing: tier name is required for price %q", priceID)
		}
		if tier.Credits < 0 || tier.BrandLimit < 0 {
			return nil, fmt.Errorf("billing: tier %q has negative limits", tier.Name)
		}
		merged[priceID] = tier
	}
	return NewCatalog(merged), nil
}

// Lookup never fails; unknown prices map to the Unknown tier with no credits
// and a single brand.
func (c *Catalog) Lookup(priceID string) Tier {
	if c != nil {
		if tier, ok := c.tiers[strings.TrimSpace(priceID)]; ok {
			return tier
		}
	}
	return Tier{Name: TierUnknown, Credits: 0, BrandLimit: 1}
}

func (c *Catalog) PriceIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.tiers))
	for id := range c.tiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
