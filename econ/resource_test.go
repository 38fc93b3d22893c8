package econ

import (
	"slices"
	"testing"
)

func TestResourceNamesComplete(t *testing.T) {
	for r := Resource(0); r < resourceCount; r++ {
		if r.String() == "unknown" {
			t.Errorf("resource %d has no name", r)
		}
	}
}

func TestTradeableExcludesSentinels(t *testing.T) {
	if ResourceNone.Tradeable() {
		t.Error("ResourceNone reported tradeable")
	}
	if ResourceCash.Tradeable() {
		t.Error("ResourceCash reported tradeable")
	}
	if !ResourceGrain.Tradeable() {
		t.Error("ResourceGrain reported not tradeable")
	}
}

func TestEveryTradeableHasCategory(t *testing.T) {
	for _, r := range Resources() {
		if r.Category() == CategoryNone {
			t.Errorf("%s has no category", r)
		}
	}
}

func TestSentinelsHaveNoCategory(t *testing.T) {
	if ResourceNone.Category() != CategoryNone {
		t.Error("ResourceNone has a category")
	}
	if ResourceCash.Category() != CategoryNone {
		t.Error("ResourceCash has a category")
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name string
		want Category
		ok   bool
	}{
		{"civic", CategoryCivic, true},
		{"office", CategoryOffice, true},
		{"agriculture", CategoryAgriculture, true},
		{"none", CategoryNone, false},
		{"banking", CategoryNone, false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCategory(%q) = %v, %v, want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCategoryNamesListsAll(t *testing.T) {
	names := CategoryNames()
	for _, want := range []string{"agriculture", "extraction", "processed", "manufactured", "service", "office", "civic"} {
		if !slices.Contains(names, want) {
			t.Errorf("CategoryNames() missing %q", want)
		}
	}
	if slices.Contains(names, "none") {
		t.Error("CategoryNames() includes the none sentinel")
	}
}

func TestResourcesOrderedAndTradeable(t *testing.T) {
	rs := Resources()
	if len(rs) == 0 {
		t.Fatal("Resources() returned nothing")
	}
	for i, r := range rs {
		if !r.Tradeable() {
			t.Errorf("Resources()[%d] = %s is not tradeable", i, r)
		}
		if i > 0 && rs[i-1] >= r {
			t.Errorf("Resources() not in enumeration order at %d", i)
		}
	}
}
