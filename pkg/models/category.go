package models

// CostCategory tags a qualified B+R cost with its statutory category
type CostCategory string

const (
	CategoryPersonnelEmployment CostCategory = "personnel_employment"
	CategoryPersonnelCivil      CostCategory = "personnel_civil"
	CategoryMaterials           CostCategory = "materials"
	CategoryEquipment           CostCategory = "equipment"
	CategoryDepreciation        CostCategory = "depreciation"
	CategoryExpertise           CostCategory = "expertise"
	CategoryExternalServices    CostCategory = "external_services"
	CategoryRelatedServices     CostCategory = "related_services"
	CategoryIPPurchase          CostCategory = "ip_purchase"
	CategoryOther               CostCategory = "other"
)

// AllCostCategories lists every recognised category tag.
var AllCostCategories = []CostCategory{
	CategoryPersonnelEmployment,
	CategoryPersonnelCivil,
	CategoryMaterials,
	CategoryEquipment,
	CategoryDepreciation,
	CategoryExpertise,
	CategoryExternalServices,
	CategoryRelatedServices,
	CategoryIPPurchase,
	CategoryOther,
}

// categoryNamesPL maps category tags to their Polish display names used in
// generated documents.
var categoryNamesPL = map[CostCategory]string{
	CategoryPersonnelEmployment: "Wynagrodzenia pracowników (umowa o pracę)",
	CategoryPersonnelCivil:      "Wynagrodzenia (umowy cywilnoprawne)",
	CategoryMaterials:           "Materiały i surowce",
	CategoryEquipment:           "Sprzęt specjalistyczny",
	CategoryDepreciation:        "Odpisy amortyzacyjne",
	CategoryExpertise:           "Ekspertyzy i opinie",
	CategoryExternalServices:    "Usługi zewnętrzne (podmioty niepowiązane)",
	CategoryRelatedServices:     "Usługi podmiotów powiązanych",
	CategoryIPPurchase:          "Nabycie kwalifikowanego IP",
	CategoryOther:               "Pozostałe koszty kwalifikowane",
}

// IsValid reports whether the tag is one of the recognised categories.
func (c CostCategory) IsValid() bool {
	_, ok := categoryNamesPL[c]
	return ok
}

// NamePL returns the Polish display name for the category, or the raw tag
// when the category is unknown.
func (c CostCategory) NamePL() string {
	if name, ok := categoryNamesPL[c]; ok {
		return name
	}
	return string(c)
}

// DeductionRate returns the statutory deduction multiplier for the category:
// 200% for personnel categories, 100% for everything else.
func (c CostCategory) DeductionRate() float64 {
	switch c {
	case CategoryPersonnelEmployment, CategoryPersonnelCivil:
		return 2.0
	default:
		return 1.0
	}
}

// NexusComponent returns the Nexus formula component the category feeds:
// a - own direct B+R activity, b - services bought from unrelated parties,
// c - services bought from related parties, d - purchased qualified IP.
func (c CostCategory) NexusComponent() string {
	switch c {
	case CategoryExpertise, CategoryExternalServices:
		return "b"
	case CategoryRelatedServices:
		return "c"
	case CategoryIPPurchase:
		return "d"
	default:
		return "a"
	}
}
