package coverage

// Estimates are the assumed denominators for categories the bundle does not
// declare a total for.
type Estimates struct {
	SkillCheckVariety int `json:"skill_check_variety" yaml:"skill_check_variety"`
	ConditionVariety  int `json:"condition_variety" yaml:"condition_variety"`
	CraftingVariety   int `json:"crafting_variety" yaml:"crafting_variety"`
	VendorVariety     int `json:"vendor_variety" yaml:"vendor_variety"`
	WeatherVariety    int `json:"weather_variety" yaml:"weather_variety"`
}

// Default estimate values.
const (
	DefaultSkillCheckVariety = 20
	DefaultConditionVariety  = 10
	DefaultCraftingVariety   = 10
	DefaultVendorVariety     = 5
	DefaultWeatherVariety    = 5
)

// DefaultEstimates returns the calibration defaults.
func DefaultEstimates() Estimates {
	return Estimates{
		SkillCheckVariety: DefaultSkillCheckVariety,
		ConditionVariety:  DefaultConditionVariety,
		CraftingVariety:   DefaultCraftingVariety,
		VendorVariety:     DefaultVendorVariety,
		WeatherVariety:    DefaultWeatherVariety,
	}
}
