// Package econ defines the resource enumeration and shared numeric
// helpers used by every regulation sub-engine.
package econ

// Resource identifies a tradeable commodity or service. The set is small
// and fixed; ResourceNone and ResourceCash are sentinels — cash never
// participates in elasticity and "none" is ignored everywhere.
type Resource uint8

const (
	ResourceNone Resource = iota
	ResourceCash

	// Agriculture
	ResourceGrain
	ResourceProduce
	ResourceLivestock
	ResourceFish
	ResourceCotton

	// Extraction
	ResourceWood
	ResourceOre
	ResourceCoal
	ResourceStone
	ResourceCrudeOil

	// Processed
	ResourceTimber
	ResourcePaper
	ResourceMetal
	ResourceSteel
	ResourceConcrete
	ResourceFuel
	ResourcePlastics
	ResourceFood
	ResourceBeverages

	// Manufactured
	ResourceTextiles
	ResourceFurniture
	ResourceVehicles
	ResourceMachinery
	ResourceElectronics
	ResourceChemicals
	ResourcePharmaceuticals
	ResourceAppliances

	// Service
	ResourceMeals
	ResourceLodging
	ResourceEntertainment
	ResourceRecreation
	ResourceHealthcare
	ResourceEducation

	// Office
	ResourceSoftware
	ResourceFinance
	ResourceMedia
	ResourceTelecom
	ResourceResearch

	// Civic
	ResourceElectricity
	ResourceWater
	ResourceSanitation

	resourceCount
)

// Category groups resources for neutral-split forcing and tax area
// classification.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryAgriculture
	CategoryExtraction
	CategoryProcessed
	CategoryManufactured
	CategoryService
	CategoryOffice
	CategoryCivic
)

var resourceNames = map[Resource]string{
	ResourceNone:            "none",
	ResourceCash:            "cash",
	ResourceGrain:           "grain",
	ResourceProduce:         "produce",
	ResourceLivestock:       "livestock",
	ResourceFish:            "fish",
	ResourceCotton:          "cotton",
	ResourceWood:            "wood",
	ResourceOre:             "ore",
	ResourceCoal:            "coal",
	ResourceStone:           "stone",
	ResourceCrudeOil:        "crude_oil",
	ResourceTimber:          "timber",
	ResourcePaper:           "paper",
	ResourceMetal:           "metal",
	ResourceSteel:           "steel",
	ResourceConcrete:        "concrete",
	ResourceFuel:            "fuel",
	ResourcePlastics:        "plastics",
	ResourceFood:            "food",
	ResourceBeverages:       "beverages",
	ResourceTextiles:        "textiles",
	ResourceFurniture:       "furniture",
	ResourceVehicles:        "vehicles",
	ResourceMachinery:       "machinery",
	ResourceElectronics:     "electronics",
	ResourceChemicals:       "chemicals",
	ResourcePharmaceuticals: "pharmaceuticals",
	ResourceAppliances:      "appliances",
	ResourceMeals:           "meals",
	ResourceLodging:         "lodging",
	ResourceEntertainment:   "entertainment",
	ResourceRecreation:      "recreation",
	ResourceHealthcare:      "healthcare",
	ResourceEducation:       "education",
	ResourceSoftware:        "software",
	ResourceFinance:         "finance",
	ResourceMedia:           "media",
	ResourceTelecom:         "telecom",
	ResourceResearch:        "research",
	ResourceElectricity:     "electricity",
	ResourceWater:           "water",
	ResourceSanitation:      "sanitation",
}

var resourceCategories = map[Resource]Category{
	ResourceGrain:           CategoryAgriculture,
	ResourceProduce:         CategoryAgriculture,
	ResourceLivestock:       CategoryAgriculture,
	ResourceFish:            CategoryAgriculture,
	ResourceCotton:          CategoryAgriculture,
	ResourceWood:            CategoryExtraction,
	ResourceOre:             CategoryExtraction,
	ResourceCoal:            CategoryExtraction,
	ResourceStone:           CategoryExtraction,
	ResourceCrudeOil:        CategoryExtraction,
	ResourceTimber:          CategoryProcessed,
	ResourcePaper:           CategoryProcessed,
	ResourceMetal:           CategoryProcessed,
	ResourceSteel:           CategoryProcessed,
	ResourceConcrete:        CategoryProcessed,
	ResourceFuel:            CategoryProcessed,
	ResourcePlastics:        CategoryProcessed,
	ResourceFood:            CategoryProcessed,
	ResourceBeverages:       CategoryProcessed,
	ResourceTextiles:        CategoryManufactured,
	ResourceFurniture:       CategoryManufactured,
	ResourceVehicles:        CategoryManufactured,
	ResourceMachinery:       CategoryManufactured,
	ResourceElectronics:     CategoryManufactured,
	ResourceChemicals:       CategoryManufactured,
	ResourcePharmaceuticals: CategoryManufactured,
	ResourceAppliances:      CategoryManufactured,
	ResourceMeals:           CategoryService,
	ResourceLodging:         CategoryService,
	ResourceEntertainment:   CategoryService,
	ResourceRecreation:      CategoryService,
	ResourceHealthcare:      CategoryService,
	ResourceEducation:       CategoryService,
	ResourceSoftware:        CategoryOffice,
	ResourceFinance:         CategoryOffice,
	ResourceMedia:           CategoryOffice,
	ResourceTelecom:         CategoryOffice,
	ResourceResearch:        CategoryOffice,
	ResourceElectricity:     CategoryCivic,
	ResourceWater:           CategoryCivic,
	ResourceSanitation:      CategoryCivic,
}

var categoryNames = map[Category]string{
	CategoryNone:         "none",
	CategoryAgriculture:  "agriculture",
	CategoryExtraction:   "extraction",
	CategoryProcessed:    "processed",
	CategoryManufactured: "manufactured",
	CategoryService:      "service",
	CategoryOffice:       "office",
	CategoryCivic:        "civic",
}

// String returns the lowercase config/telemetry name of the resource.
func (r Resource) String() string {
	if name, ok := resourceNames[r]; ok {
		return name
	}
	return "unknown"
}

// Category returns the resource's category, CategoryNone for sentinels.
func (r Resource) Category() Category {
	return resourceCategories[r]
}

// Tradeable reports whether the resource participates in the market at
// all. Sentinels do not.
func (r Resource) Tradeable() bool {
	return r != ResourceNone && r != ResourceCash && r < resourceCount
}

// String returns the lowercase name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCategory resolves a category by its lowercase name. The bool is
// false for unknown names.
func ParseCategory(name string) (Category, bool) {
	for c, n := range categoryNames {
		if n == name && c != CategoryNone {
			return c, true
		}
	}
	return CategoryNone, false
}

// CategoryNames lists the valid category names in enumeration order,
// for config validation messages.
func CategoryNames() []string {
	names := make([]string, 0, len(categoryNames)-1)
	for c := CategoryAgriculture; c <= CategoryCivic; c++ {
		names = append(names, categoryNames[c])
	}
	return names
}

// Resources returns every tradeable resource in enumeration order.
func Resources() []Resource {
	out := make([]Resource, 0, int(resourceCount)-2)
	for r := Resource(0); r < resourceCount; r++ {
		if r.Tradeable() {
			out = append(out, r)
		}
	}
	return out
}
