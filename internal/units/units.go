// Package units normalizes nutrient values at the data-entry boundary.
// OCR output and client payloads arrive with inconsistent key spellings and
// units (salt vs sodium, kJ vs kcal); everything downstream works with a
// single canonical form: grams for macros, milligrams for sodium, kcal for
// energy. Conversions happen here exactly once.
package units

import "strings"

const (
	// Salt is 40% sodium by mass; dietitian convention is salt_g * 400 mg,
	// commonly written as salt / 2.5 * 1000.
	saltToSodiumFactor = 1000.0 / 2.5

	kjPerKcal = 4.184
)

// SaltToSodiumMg converts grams of salt to milligrams of sodium.
func SaltToSodiumMg(saltGrams float64) float64 {
	return saltGrams * saltToSodiumFactor
}

// KJToKcal converts kilojoules to kilocalories.
func KJToKcal(kj float64) float64 {
	return kj / kjPerKcal
}

// Nutrients is the canonical nutrient set consumed by the GI model and the
// food diary. Absent fields are zero, never an error.
type Nutrients struct {
	Carbs    float64 `json:"carbs"`
	Sugar    float64 `json:"sugar"`
	Fiber    float64 `json:"fiber"`
	Fat      float64 `json:"fat"`
	Protein  float64 `json:"protein"`
	Sodium   float64 `json:"sodium"`   // mg
	Calories float64 `json:"calories"` // kcal
}

// raw payload keys accepted per canonical field, checked in order
var keyAliases = map[string][]string{
	"carbs":    {"carbs", "carbohydrate", "carb"},
	"sugar":    {"sugar", "sugars"},
	"fiber":    {"fiber", "fibre", "dietary fiber"},
	"fat":      {"fat", "total fat"},
	"protein":  {"protein"},
	"sodium":   {"sodium"},
	"calories": {"calories", "energy", "kcal"},
}

// Normalize maps a loosely-keyed nutrient payload (OCR output or client
// JSON) onto the canonical Nutrients form. Keys are matched
// case-insensitively against known aliases; salt is converted to sodium and
// kJ energy to kcal. Missing keys default to 0.
func Normalize(raw map[string]float64) Nutrients {
	lower := make(map[string]float64, len(raw))
	for k, v := range raw {
		lower[strings.ToLower(k)] = v
	}

	pick := func(field string) float64 {
		for _, alias := range keyAliases[field] {
			if v, ok := lower[alias]; ok {
				return v
			}
		}
		return 0
	}

	n := Nutrients{
		Carbs:    pick("carbs"),
		Sugar:    pick("sugar"),
		Fiber:    pick("fiber"),
		Fat:      pick("fat"),
		Protein:  pick("protein"),
		Sodium:   pick("sodium"),
		Calories: pick("calories"),
	}

	// Salt only substitutes for sodium when sodium itself is absent.
	if n.Sodium == 0 {
		if salt, ok := lower["salt"]; ok && salt > 0 {
			n.Sodium = SaltToSodiumMg(salt)
		}
	}

	// Labels reporting energy in kJ only.
	if n.Calories == 0 {
		if kj, ok := lower["kj"]; ok && kj > 0 {
			n.Calories = KJToKcal(kj)
		}
	}

	return n
}
