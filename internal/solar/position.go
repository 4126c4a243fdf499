// Package solar computes solar position, clear-sky irradiance and
// per-window sun exposure for shade automation.
package solar

import (
	"math"
	"time"
)

const (
	// CivilTwilightThreshold is the apparent elevation below which the sun
	// is considered down (accounts for atmospheric refraction at horizon).
	CivilTwilightThreshold = -0.833

	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// julianDay converts a time to Julian day including the day fraction
func julianDay(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5

	dayFraction := (float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0) / 24.0
	return jd + dayFraction
}

// sunPosition calculates true elevation and azimuth for a Julian day and
// observer coordinates. Azimuth is degrees from north (0=N, 90=E, 180=S).
func sunPosition(jd, lat, lon float64) (elevation, azimuth float64) {
	// Days since J2000.0
	n := jd - 2451545.0

	// Mean longitude of the Sun
	l := math.Mod(280.460+0.9856474*n, 360.0)

	// Mean anomaly of the Sun
	g := math.Mod(357.528+0.9856003*n, 360.0)
	gRad := g * degToRad

	// Ecliptic longitude
	lambda := l + 1.915*math.Sin(gRad) + 0.020*math.Sin(2*gRad)
	lambdaRad := lambda * degToRad

	// Obliquity of the ecliptic
	epsilon := 23.439 - 0.0000004*n
	epsilonRad := epsilon * degToRad

	// Right ascension and declination
	alpha := math.Atan2(math.Cos(epsilonRad)*math.Sin(lambdaRad), math.Cos(lambdaRad))
	delta := math.Asin(math.Sin(epsilonRad) * math.Sin(lambdaRad))

	// Greenwich mean sidereal time -> local hour angle
	gmst := math.Mod(280.460+360.9856474*n, 360.0)
	lst := gmst + lon
	h := lst*degToRad - alpha

	latRad := lat * degToRad

	sinAlt := math.Sin(latRad)*math.Sin(delta) + math.Cos(latRad)*math.Cos(delta)*math.Cos(h)
	elevation = math.Asin(sinAlt) * radToDeg

	cosAz := (math.Sin(delta) - math.Sin(latRad)*sinAlt) / (math.Cos(latRad) * math.Cos(math.Asin(sinAlt)))
	// Guard against rounding outside acos domain
	if cosAz > 1 {
		cosAz = 1
	} else if cosAz < -1 {
		cosAz = -1
	}
	azimuth = math.Acos(cosAz) * radToDeg

	if math.Sin(h) > 0 {
		azimuth = 360.0 - azimuth
	}
	azimuth = math.Mod(azimuth, 360.0)
	if azimuth < 0 {
		azimuth += 360.0
	}

	return elevation, azimuth
}

// refractionCorrection returns the atmospheric refraction in degrees for a
// true elevation (Saemundsson's formula). Near-zero above 85 degrees.
func refractionCorrection(elevation float64) float64 {
	if elevation > 85 {
		return 0
	}
	if elevation < -2 {
		return 0
	}
	// Result is in arc minutes
	r := 1.02 / math.Tan((elevation+10.3/(elevation+5.11))*degToRad)
	return r / 60.0
}

// apparentElevation applies refraction correction to a true elevation
func apparentElevation(elevation float64) float64 {
	apparent := elevation + refractionCorrection(elevation)
	if apparent > 90 {
		apparent = 90
	}
	return apparent
}

// sunEventTime calculates sunrise or sunset for a calendar date using the
// solar transit and hour angle at the given horizon angle.
// Returns a zero time when the sun never crosses the angle (polar regions).
func sunEventTime(date time.Time, lat, lon, angle float64, rising bool, tz *time.Location) time.Time {
	// The sunrise equation expects the Julian day at noon
	jd := julianDay(time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)) + 0.5

	n := jd - 2451545.0 + 0.0008
	jStar := n - lon/360.0

	m := math.Mod(357.5291+0.98560028*jStar, 360.0)
	mRad := m * degToRad

	c := 1.9148*math.Sin(mRad) + 0.02*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)

	lambda := math.Mod(m+c+180+102.9372, 360.0)
	lambdaRad := lambda * degToRad

	jTransit := 2451545.0 + jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambdaRad)

	sinDec := math.Sin(lambdaRad) * math.Sin(23.44*degToRad)
	dec := math.Asin(sinDec)

	latRad := lat * degToRad
	angleRad := angle * degToRad

	cosOmega := (math.Sin(angleRad) - math.Sin(latRad)*math.Sin(dec)) / (math.Cos(latRad) * math.Cos(dec))

	// Polar day/night: the sun never reaches the angle
	if cosOmega > 1 || cosOmega < -1 {
		return time.Time{}
	}

	omega := math.Acos(cosOmega) * radToDeg

	var jTime float64
	if rising {
		jTime = jTransit - omega/360.0
	} else {
		jTime = jTransit + omega/360.0
	}

	return julianToTime(jTime, tz)
}

// julianToTime converts a Julian day to a time.Time in the given timezone
func julianToTime(jd float64, tz *time.Location) time.Time {
	unixTime := (jd - 2440587.5) * 86400.0
	sec := int64(unixTime)
	nsec := int64((unixTime - math.Floor(unixTime)) * 1e9)
	return time.Unix(sec, nsec).In(tz)
}
