package solar

import (
	"fmt"
	"math"
	"strings"
)

// Orientation is a window's compass facing
type Orientation string

const (
	North     Orientation = "north"
	Northeast Orientation = "northeast"
	East      Orientation = "east"
	Southeast Orientation = "southeast"
	South     Orientation = "south"
	Southwest Orientation = "southwest"
	West      Orientation = "west"
	Northwest Orientation = "northwest"
)

// Intensity categorizes how strongly the sun hits a window
type Intensity string

const (
	IntensityNone    Intensity = "none"
	IntensityMinimal Intensity = "minimal"
	IntensityLow     Intensity = "low"
	IntensityMedium  Intensity = "medium"
	IntensityHigh    Intensity = "high"
)

// Glare categorizes glare potential from surface irradiance
type Glare string

const (
	GlareLow    Glare = "low"
	GlareMedium Glare = "medium"
	GlareHigh   Glare = "high"
)

// acceptanceRange is a 90-degree azimuth window within which a window
// orientation receives direct sun. Ranges are centered on the compass
// point; north wraps across 0.
type acceptanceRange struct {
	start, end float64
}

var orientationRanges = map[Orientation]acceptanceRange{
	North:     {315, 45},
	Northeast: {0, 90},
	East:      {45, 135},
	Southeast: {90, 180},
	South:     {135, 225},
	Southwest: {180, 270},
	West:      {225, 315},
	Northwest: {270, 360},
}

// surfaceAzimuth is the outward-normal azimuth used for irradiance on the
// window plane.
var surfaceAzimuth = map[Orientation]float64{
	North:     0,
	Northeast: 45,
	East:      90,
	Southeast: 135,
	South:     180,
	Southwest: 225,
	West:      270,
	Northwest: 315,
}

var compassNames = [...]string{
	"north", "northeast", "east", "southeast",
	"south", "southwest", "west", "northwest",
}

// DNI thresholds for intensity classification (W/m2)
const (
	dniHigh    = 800.0
	dniMedium  = 500.0
	dniLow     = 200.0
	dniMinimal = 50.0
)

// Elevation thresholds for fallback intensity classification (degrees)
const (
	elevationHigh    = 60.0
	elevationMedium  = 40.0
	elevationLow     = 20.0
	elevationMinimal = 5.0
)

// Irradiance thresholds for glare potential (W/m2)
const (
	glareHigh   = 300.0
	glareMedium = 100.0
)

// Exposure is the analyzed sun exposure of one window
type Exposure struct {
	Orientation Orientation `json:"orientation"`
	IsSunny     bool        `json:"is_sunny"`
	Intensity   Intensity   `json:"sun_intensity"`
	Irradiance  float64     `json:"irradiance_w_per_m2"`
	Glare       Glare       `json:"glare_potential"`
}

// ParseOrientation validates an orientation string
func ParseOrientation(s string) (Orientation, error) {
	o := Orientation(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := orientationRanges[o]; !ok {
		return "", fmt.Errorf("unknown window orientation: %q", s)
	}
	return o, nil
}

// CompassDirection names the 45-degree compass sector containing an azimuth
func CompassDirection(azimuth float64) string {
	idx := int(math.Mod(azimuth+22.5, 360.0)/45.0) % 8
	if idx < 0 {
		idx += 8
	}
	return compassNames[idx]
}

// IsSunny reports whether a window receives direct sun. The raw elevation
// check is intentionally stricter than the snapshot's refraction-tolerant
// IsUp flag.
func IsSunny(o Orientation, azimuth, elevation float64) bool {
	if elevation < 0 {
		return false
	}

	r, ok := orientationRanges[o]
	if !ok {
		return false
	}

	if o == North {
		// North's acceptance window wraps across 0 degrees
		return azimuth >= r.start || azimuth <= r.end
	}
	return azimuth >= r.start && azimuth <= r.end
}

// SunIntensity grades sun intensity on a window. DNI thresholds are used
// when a clear-sky value is available; otherwise elevation provides a
// coarser but always-computable grading.
func SunIntensity(o Orientation, azimuth, elevation, dni float64) Intensity {
	if !IsSunny(o, azimuth, elevation) {
		return IntensityNone
	}

	if dni > 0 {
		switch {
		case dni > dniHigh:
			return IntensityHigh
		case dni > dniMedium:
			return IntensityMedium
		case dni > dniLow:
			return IntensityLow
		case dni > dniMinimal:
			return IntensityMinimal
		default:
			return IntensityNone
		}
	}

	switch {
	case elevation > elevationHigh:
		return IntensityHigh
	case elevation > elevationMedium:
		return IntensityMedium
	case elevation > elevationLow:
		return IntensityLow
	case elevation > elevationMinimal:
		return IntensityMinimal
	default:
		return IntensityNone
	}
}

// SurfaceIrradiance computes the direct irradiance on a vertical window
// surface from the angle of incidence between the sun vector and the
// window's outward normal.
func SurfaceIrradiance(o Orientation, azimuth, elevation, dni float64) float64 {
	if !IsSunny(o, azimuth, elevation) {
		return 0
	}

	surfAz, ok := surfaceAzimuth[o]
	if !ok {
		surfAz = 180 // default south
	}

	// For a vertical plane (tilt 90), the cosine of the angle of incidence
	// reduces to cos(elevation) * cos(sun azimuth - surface azimuth)
	cosAOI := math.Cos(elevation*degToRad) * math.Cos((azimuth-surfAz)*degToRad)
	if cosAOI <= 0 {
		return 0
	}

	return dni * cosAOI
}

// GlarePotential categorizes glare from the irradiance on the window
func GlarePotential(irradiance float64) Glare {
	switch {
	case irradiance > glareHigh:
		return GlareHigh
	case irradiance > glareMedium:
		return GlareMedium
	default:
		return GlareLow
	}
}

// Analyze derives the full exposure of a window from a snapshot.
// Pure function: no I/O, no caching.
func Analyze(o Orientation, snap *Snapshot) Exposure {
	irradiance := SurfaceIrradiance(o, snap.Azimuth, snap.Elevation, snap.DNI)

	return Exposure{
		Orientation: o,
		IsSunny:     IsSunny(o, snap.Azimuth, snap.Elevation),
		Intensity:   SunIntensity(o, snap.Azimuth, snap.Elevation, snap.DNI),
		Irradiance:  math.Round(irradiance*10) / 10,
		Glare:       GlarePotential(irradiance),
	}
}
