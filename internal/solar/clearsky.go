package solar

import "math"

// Clear-sky direct-normal irradiance. The DNI is advisory (used for
// intensity grading); cloud cover is not modeled, so consumers fall back to
// elevation-based grading when DNI is zero.

const solarConstant = 1353.0 // W/m2, extraterrestrial normal irradiance

// airMass returns the relative optical air mass for an apparent elevation,
// using the Kasten-Young approximation. Infinite at and below the horizon.
func airMass(apparent float64) float64 {
	if apparent <= 0 {
		return math.Inf(1)
	}
	zenith := 90.0 - apparent
	return 1.0 / (math.Cos(zenith*degToRad) + 0.50572*math.Pow(96.07995-zenith, -1.6364))
}

// clearSkyDNI estimates direct-normal irradiance (W/m2) for an apparent
// elevation and site altitude (meters), using the Meinel/Laue model with an
// altitude correction.
func clearSkyDNI(apparent, altitude float64) float64 {
	if apparent <= 0 {
		return 0
	}
	am := airMass(apparent)
	if math.IsInf(am, 1) {
		return 0
	}

	hKm := altitude / 1000.0
	if hKm < 0 {
		hKm = 0
	}

	attenuated := math.Pow(0.7, math.Pow(am, 0.678))
	dni := solarConstant * ((1-0.14*hKm)*attenuated + 0.14*hKm)
	if dni < 0 {
		return 0
	}
	return dni
}
