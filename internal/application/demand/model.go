package demand

import (
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/andrescamacho/commuter-go/internal/domain/geo"
)

// Base demand per zone type, in passengers per hour per unit spawn weight at
// multiplier 1. Tuned against the corridor simulations; overridable through
// passenger_spawning.rates.base_density.<zone_type>.
var defaultBaseDensity = map[geo.ZoneType]float64{
	geo.ZoneResidential: 12.0,
	geo.ZoneCommercial:  10.0,
	geo.ZoneIndustrial:  6.0,
	geo.ZoneSchool:      8.0,
	geo.ZoneHospital:    5.0,
	geo.ZoneRecreation:  3.0,
	geo.ZoneMixed:       8.0,
}

// defaultTimeOfDay holds the 24-slot multiplier tables. Residential peaks in
// the morning rush, commercial mirrors it in the evening, late night falls
// to 0.1-0.2 of baseline.
var defaultTimeOfDay = map[geo.ZoneType][24]float64{
	geo.ZoneResidential: {0.1, 0.1, 0.1, 0.1, 0.2, 0.8, 2.0, 3.0, 2.5, 1.2, 0.8, 0.7, 0.7, 0.7, 0.8, 1.0, 1.3, 1.5, 1.2, 0.9, 0.6, 0.4, 0.2, 0.1},
	geo.ZoneCommercial:  {0.1, 0.1, 0.1, 0.1, 0.1, 0.2, 0.5, 0.8, 1.2, 1.5, 1.5, 1.6, 1.8, 1.6, 1.5, 1.6, 2.0, 2.8, 2.5, 1.8, 1.2, 0.8, 0.4, 0.2},
	geo.ZoneIndustrial:  {0.2, 0.2, 0.2, 0.3, 0.6, 1.2, 2.0, 1.8, 1.0, 0.8, 0.7, 0.7, 0.9, 0.8, 0.7, 1.0, 1.8, 2.2, 1.5, 0.8, 0.5, 0.4, 0.3, 0.2},
	geo.ZoneSchool:      {0.1, 0.1, 0.1, 0.1, 0.1, 0.3, 1.5, 2.8, 2.0, 0.8, 0.5, 0.5, 0.8, 1.2, 2.2, 2.5, 1.5, 0.8, 0.4, 0.2, 0.1, 0.1, 0.1, 0.1},
	geo.ZoneHospital:    {0.5, 0.4, 0.4, 0.4, 0.5, 0.7, 1.0, 1.4, 1.6, 1.5, 1.4, 1.3, 1.3, 1.4, 1.5, 1.4, 1.3, 1.2, 1.0, 0.9, 0.8, 0.7, 0.6, 0.5},
	geo.ZoneRecreation:  {0.1, 0.1, 0.1, 0.1, 0.1, 0.2, 0.3, 0.5, 0.8, 1.2, 1.5, 1.8, 1.8, 1.6, 1.6, 1.8, 2.0, 2.2, 2.0, 1.8, 1.5, 1.0, 0.5, 0.2},
	geo.ZoneMixed:       {0.1, 0.1, 0.1, 0.1, 0.2, 0.5, 1.2, 1.8, 1.6, 1.2, 1.0, 1.0, 1.1, 1.0, 1.0, 1.2, 1.5, 1.8, 1.5, 1.1, 0.8, 0.5, 0.3, 0.2},
}

// defaultDayOfWeek indexes time.Weekday (Sunday = 0)
var defaultDayOfWeek = [7]float64{0.5, 1.0, 1.0, 1.0, 1.0, 1.1, 0.7}

// peakHours marks the slots reported as peak for downstream accounting
var peakHours = map[int]bool{6: true, 7: true, 8: true, 16: true, 17: true, 18: true}

// timeOfDayMultiplier resolves the slot for a zone type. Unknown zone types
// fall back to the mixed profile.
func timeOfDayMultiplier(zoneType geo.ZoneType, hour int) float64 {
	table, ok := defaultTimeOfDay[zoneType]
	if !ok {
		table = defaultTimeOfDay[geo.ZoneMixed]
	}
	return table[hour%24]
}

func baseDensity(zoneType geo.ZoneType) float64 {
	if d, ok := defaultBaseDensity[zoneType]; ok {
		return d
	}
	return defaultBaseDensity[geo.ZoneMixed]
}

// sanitizeMultiplier treats negative or NaN multipliers as zero. The caller
// logs the warning so the offending key can be named.
func sanitizeMultiplier(m float64) (float64, bool) {
	if math.IsNaN(m) || m < 0 {
		return 0, false
	}
	return m, true
}

// parseMultiplierCSV parses a comma-separated multiplier override of the
// expected slot count. Returns false on any malformed slot.
func parseMultiplierCSV(raw string, slots int) ([]float64, bool) {
	if raw == "" {
		return nil, false
	}
	parts := strings.Split(raw, ",")
	if len(parts) != slots {
		return nil, false
	}
	out := make([]float64, slots)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// samplePoisson draws from Poisson(mean) by Knuth's method. The mean is
// bounded to keep the loop cheap; per-zone-per-tick rates sit well under it.
func samplePoisson(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 500 {
		mean = 500
	}
	l := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}
