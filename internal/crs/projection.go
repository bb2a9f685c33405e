package crs

import (
	"math"

	"github.com/wroge/wgs84"
)

// transverseMercator implements wgs84.Projection with the USGS series of
// Snyder (1987) pp. 60-64, accurate to the millimeter within a UTM zone.
type transverseMercator struct {
	lonf, latf, scale, eastf, northf float64
}

var _ wgs84.Projection = transverseMercator{}

func eccentricity2(s wgs84.Spheroid) float64 {
	if s.Fi() == 0 {
		return 0
	}
	f := 1 / s.Fi()
	return f * (2 - f)
}

// meridionalArc returns the distance along the meridian from the equator to
// latitude phi (radians), per Snyder (1987) eq. 3-21.
func meridionalArc(a, e2, phi float64) float64 {
	e4 := e2 * e2
	e6 := e4 * e2
	return a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func (p transverseMercator) FromLonLat(lon, lat float64, s wgs84.Spheroid) (east, north float64) {
	a := s.A()
	e2 := eccentricity2(s)
	ep2 := e2 / (1 - e2)
	k0 := p.scale

	phi := lat * math.Pi / 180
	lam := (lon - p.lonf) * math.Pi / 180
	phi0 := p.latf * math.Pi / 180

	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)
	n := a / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	al := lam * cos
	m := meridionalArc(a, e2, phi)
	m0 := meridionalArc(a, e2, phi0)

	east = p.eastf + k0*n*(al+(1-t+c)*math.Pow(al, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(al, 5)/120)
	north = p.northf + k0*(m-m0+n*tan*(al*al/2+
		(5-t+9*c+4*c*c)*math.Pow(al, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(al, 6)/720))
	return east, north
}

func (p transverseMercator) ToLonLat(east, north float64, s wgs84.Spheroid) (lon, lat float64) {
	a := s.A()
	e2 := eccentricity2(s)
	ep2 := e2 / (1 - e2)
	k0 := p.scale
	e4 := e2 * e2
	e6 := e4 * e2

	m0 := meridionalArc(a, e2, p.latf*math.Pi/180)
	m := m0 + (north-p.northf)/k0
	mu := m / (a * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	phi1 := mu + (3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin, cos, tan := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := ep2 * cos * cos
	t1 := tan * tan
	n1 := a / math.Sqrt(1-e2*sin*sin)
	r1 := a * (1 - e2) / math.Pow(1-e2*sin*sin, 1.5)
	d := (east - p.eastf) / (n1 * k0)

	phi := phi1 - (n1*tan/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lam := (d - (1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cos

	return p.lonf + lam*180/math.Pi, phi * 180 / math.Pi
}

// scaledOrigin applies a natural-origin scale factor and false origin to a
// projection built with unit scale and a zero false origin. It turns the
// library's two-parallel Lambert into the one-parallel variant.
type scaledOrigin struct {
	wgs84.Projection
	scale, eastf, northf float64
}

func (p scaledOrigin) ToLonLat(east, north float64, s wgs84.Spheroid) (lon, lat float64) {
	return p.Projection.ToLonLat((east-p.eastf)/p.scale, (north-p.northf)/p.scale, s)
}

func (p scaledOrigin) FromLonLat(lon, lat float64, s wgs84.Spheroid) (east, north float64) {
	e, n := p.Projection.FromLonLat(lon, lat, s)
	return p.eastf + p.scale*e, p.northf + p.scale*n
}
