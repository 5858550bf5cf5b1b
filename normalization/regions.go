package normalization

import (
	"strings"

	"discoveryserver/types"
)

// PriceBand is one level of a region's price table: a display string
// plus minor-currency-unit bounds for a typical meal.
type PriceBand struct {
	Display string
	Min     int64
	Max     int64
}

// Region carries everything address-derived that normalization needs:
// currency, the centroid used when a candidate has no coordinates, and
// the display table for provider price levels 0-4.
type Region struct {
	Name     string
	Currency string
	Centroid types.Coordinates
	Keywords []string
	Bands    [5]PriceBand
}

// regionTable is matched against lowercased addresses by substring.
// Order matters: first match wins, more specific entries go first.
var regionTable = []Region{
	{
		Name:     "nigeria",
		Currency: "NGN",
		Centroid: types.Coordinates{Lat: 6.5244, Lng: 3.3792}, // Lagos
		Keywords: []string{
			"nigeria", "lagos", "ikeja", "lekki", "surulere", "yaba",
			"victoria island", "abuja", "ibadan", "port harcourt", "ogba",
		},
		Bands: [5]PriceBand{
			{Display: "Under ₦2,000", Min: 0, Max: 200000},
			{Display: "₦2,000–₦5,000", Min: 200000, Max: 500000},
			{Display: "₦5,000–₦15,000", Min: 500000, Max: 1500000},
			{Display: "₦15,000–₦40,000", Min: 1500000, Max: 4000000},
			{Display: "₦40,000+", Min: 4000000, Max: 0},
		},
	},
	{
		Name:     "ghana",
		Currency: "GHS",
		Centroid: types.Coordinates{Lat: 5.6037, Lng: -0.1870}, // Accra
		Keywords: []string{"ghana", "accra", "kumasi", "osu", "east legon"},
		Bands: [5]PriceBand{
			{Display: "Under GH₵50", Min: 0, Max: 5000},
			{Display: "GH₵50–GH₵150", Min: 5000, Max: 15000},
			{Display: "GH₵150–GH₵400", Min: 15000, Max: 40000},
			{Display: "GH₵400–GH₵1,000", Min: 40000, Max: 100000},
			{Display: "GH₵1,000+", Min: 100000, Max: 0},
		},
	},
	{
		Name:     "kenya",
		Currency: "KES",
		Centroid: types.Coordinates{Lat: -1.2921, Lng: 36.8219}, // Nairobi
		Keywords: []string{"kenya", "nairobi", "mombasa", "westlands", "kilimani"},
		Bands: [5]PriceBand{
			{Display: "Under KSh500", Min: 0, Max: 50000},
			{Display: "KSh500–KSh1,500", Min: 50000, Max: 150000},
			{Display: "KSh1,500–KSh4,000", Min: 150000, Max: 400000},
			{Display: "KSh4,000–KSh10,000", Min: 400000, Max: 1000000},
			{Display: "KSh10,000+", Min: 1000000, Max: 0},
		},
	},
}

// defaultRegion is the fallback for addresses that match none of the
// keyword tables, and for candidates with no address at all. The
// deployment is Lagos-scoped, so the fallback mirrors the Nigeria row.
var defaultRegion = regionTable[0]

// DetectRegion infers the region from an address by keyword substring
// match. Unknown or empty addresses fall back to the default region.
func DetectRegion(address string) Region {
	lower := strings.ToLower(address)
	if lower == "" {
		return defaultRegion
	}

	for _, region := range regionTable {
		for _, keyword := range region.Keywords {
			if strings.Contains(lower, keyword) {
				return region
			}
		}
	}

	return defaultRegion
}

// PriceForLevel maps a provider price level (0-4) into the region's
// table. Out-of-range levels yield an empty PriceInfo, "unknown".
func (r Region) PriceForLevel(level int) types.PriceInfo {
	if level < 0 || level > 4 {
		return types.PriceInfo{}
	}

	band := r.Bands[level]
	info := types.PriceInfo{
		Display:  band.Display,
		Currency: r.Currency,
	}
	minVal := band.Min
	info.PriceMin = &minVal
	if band.Max > 0 {
		maxVal := band.Max
		info.PriceMax = &maxVal
	}
	return info
}
