package projection

import (
	"fmt"
	"math"

	"github.com/jengzang/vehicle-forensics-go/internal/spatial"
)

const (
	utmScale         = 0.9996
	utmFalseEasting  = 500000.0
	utmFalseNorthing = 10000000.0
)

// Krüger series coefficients (third order) for WGS84
var utmSeries = func() struct {
	n, a, e          float64
	alpha, beta, del [3]float64
} {
	f := spatial.WGS84Flattening
	n := f / (2 - f)
	n2, n3 := n*n, n*n*n
	var s struct {
		n, a, e          float64
		alpha, beta, del [3]float64
	}
	s.n = n
	s.a = spatial.WGS84SemiMajorAxis / (1 + n) * (1 + n2/4 + n2*n2/64)
	s.e = 2 * math.Sqrt(n) / (1 + n)
	s.alpha = [3]float64{
		n/2 - 2*n2/3 + 5*n3/16,
		13*n2/48 - 3*n3/5,
		61 * n3 / 240,
	}
	s.beta = [3]float64{
		n/2 - 2*n2/3 + 37*n3/96,
		n2/48 + n3/15,
		17 * n3 / 480,
	}
	s.del = [3]float64{
		2*n - 2*n2/3 - 2*n3,
		7*n2/3 - 8*n3/5,
		56 * n3 / 15,
	}
	return s
}()

// UTMZone returns the zone number for a longitude
func UTMZone(lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return zone
}

// GetUTMProjection builds the UTM projection of the zone containing center.
// The hemisphere follows the sign of the center latitude.
func GetUTMProjection(center spatial.Point) (*Projection, error) {
	if err := validateCenter(center); err != nil {
		return nil, err
	}
	if center.Lat < -80 || center.Lat > 84 {
		return nil, fmt.Errorf("%w: lat=%f", ErrOutsideUTM, center.Lat)
	}

	zone := UTMZone(center.Lon)
	south := center.Lat < 0
	lon0 := float64(zone-1)*6 - 180 + 3
	northing0 := 0.0
	hemi := "N"
	if south {
		northing0 = utmFalseNorthing
		hemi = "S"
	}

	s := utmSeries
	forward := func(lat, lon float64) (float64, float64) {
		phi := lat * math.Pi / 180
		dl := spatial.AngularDifferenceDegrees(lon0, lon) * math.Pi / 180
		t := math.Sinh(math.Atanh(math.Sin(phi)) - s.e*math.Atanh(s.e*math.Sin(phi)))
		xi := math.Atan2(t, math.Cos(dl))
		eta := math.Atanh(math.Sin(dl) / math.Sqrt(1+t*t))

		easting, northing := eta, xi
		for j := 0; j < 3; j++ {
			k := float64(2 * (j + 1))
			easting += s.alpha[j] * math.Cos(k*xi) * math.Sinh(k*eta)
			northing += s.alpha[j] * math.Sin(k*xi) * math.Cosh(k*eta)
		}
		return utmFalseEasting + utmScale*s.a*easting, northing0 + utmScale*s.a*northing
	}

	inverse := func(x, y float64) (float64, float64) {
		xi := (y - northing0) / (utmScale * s.a)
		eta := (x - utmFalseEasting) / (utmScale * s.a)

		xiP, etaP := xi, eta
		for j := 0; j < 3; j++ {
			k := float64(2 * (j + 1))
			xiP -= s.beta[j] * math.Sin(k*xi) * math.Cosh(k*eta)
			etaP -= s.beta[j] * math.Cos(k*xi) * math.Sinh(k*eta)
		}
		chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
		phi := chi
		for j := 0; j < 3; j++ {
			phi += s.del[j] * math.Sin(float64(2*(j+1))*chi)
		}
		lon := lon0 + math.Atan2(math.Sinh(etaP), math.Cos(xiP))*180/math.Pi
		return phi * 180 / math.Pi, spatial.NormalizeDegrees(lon+180) - 180
	}

	p := &Projection{
		Kind:    KindUTM,
		Label:   fmt.Sprintf("UTM zone %d%s", zone, hemi),
		Center:  center,
		Zone:    zone,
		South:   south,
		forward: forward,
		inverse: inverse,
	}
	if err := selfCheck(p, false); err != nil {
		return nil, err
	}
	return p, nil
}
