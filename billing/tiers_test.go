package billing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCatalog_DefaultTiers(t *testing.T) {
	catalog := DefaultCatalog()
	cases := map[string]Tier{
		"price_1Rw3Am09B4tvq6CDhYHJ1Tl0": {Name: "Essential", Credits: 350, BrandLimit: 1},
		"price_1Rw3BL09B4tvq6CDYgOfacYx": {Name: "Growth", Credits: 1050, BrandLimit: 3},
		"price_1Rw3CB09B4tvq6CDFSp6F3pP": {Name: "Creator", Credits: 2500, BrandLimit: 5},
		"price_1Rw3Cd09B4tvq6CDuZ9Z9x4h": {Name: "Professional", Credits: 5200, BrandLimit: 7},
		"price_1Rw3DN09B4tvq6CDWhcrlYoc": {Name: "Enterprise", Credits: 10750, BrandLimit: 10},
	}
	for priceID, want := range cases {
		if got := catalog.Lookup(priceID); got != want {
			t.Fatalf("lookup %s: expected %+v, got %+v", priceID, want, got)
		}
	}
	if len(catalog.PriceIDs()) != len(cases) {
		t.Fatalf("expected %d prices, got %v", len(cases), catalog.PriceIDs())
	}
}

func TestCatalog_UnknownPrice(t *testing.T) {
	got := DefaultCatalog().Lookup("price_missing")
	if got.Name != TierUnknown || got.Credits != 0 || got.BrandLimit != 1 {
		t.Fatalf("unexpected fallback tier %+v", got)
	}
	var nilCatalog *Catalog
	if nilCatalog.Lookup("x").Name != TierUnknown {
		t.Fatalf("expected nil catalog to fall back")
	}
}

func TestParseCatalog_MergesOverDefaults(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`
prices:
  price_custom:
    tier: Studio
    credits: 900
    brand_limit: 2
  price_1Rw3Am09B4tvq6CDhYHJ1Tl0:
    tier: Essential
    credits: 400
    brand_limit: 1
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := catalog.Lookup("price_custom"); got.Name != "Studio" || got.Credits != 900 || got.BrandLimit != 2 {
		t.Fatalf("unexpected custom tier %+v", got)
	}
	if got := catalog.Lookup("price_1Rw3Am09B4tvq6CDhYHJ1Tl0"); got.Credits != 400 {
		t.Fatalf("expected override to win, got %+v", got)
	}
	if got := catalog.Lookup("price_1Rw3DN09B4tvq6CDWhcrlYoc"); got.Name != "Enterprise" {
		t.Fatalf("expected defaults retained, got %+v", got)
	}
}

func TestParseCatalog_Replace(t *testing.T) {
	catalog, err := ParseCatalog([]byte("replace: true\nprices:\n  price_only:\n    tier: Solo\n    credits: 10\n    brand_limit: 1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ids := catalog.PriceIDs(); len(ids) != 1 || ids[0] != "price_only" {
		t.Fatalf("expected only replacement prices, got %v", ids)
	}
}

func TestParseCatalog_RejectsUnnamedTier(t *testing.T) {
	if _, err := ParseCatalog([]byte("prices:\n  price_x:\n    credits: 10\n")); err == nil {
		t.Fatalf("expected missing tier name to fail")
	}
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog("")
	if err != nil || catalog.Lookup("price_1Rw3BL09B4tvq6CDYgOfacYx").Name != "Growth" {
		t.Fatalf("expected empty path to load defaults, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "tiers.yaml")
	if err := os.WriteFile(path, []byte("prices:\n  price_file:\n    tier: File\n    credits: 5\n    brand_limit: 1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog, err = LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if catalog.Lookup("price_file").Name != "File" {
		t.Fatalf("expected file tier")
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
