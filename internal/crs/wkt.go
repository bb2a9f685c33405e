package crs

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/wroge/wgs84"
)

// node is one KEYWORD[...] element of a WKT1 CRS definition.
type node struct {
	keyword string
	args    []any // string, float64 or *node
}

func (n *node) child(keyword string) *node {
	for _, a := range n.args {
		if c, ok := a.(*node); ok && c.keyword == keyword {
			return c
		}
	}
	return nil
}

func (n *node) children(keyword string) []*node {
	var out []*node
	for _, a := range n.args {
		if c, ok := a.(*node); ok && c.keyword == keyword {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) name() string {
	if len(n.args) == 0 {
		return ""
	}
	s, _ := n.args[0].(string)
	return s
}

func (n *node) number(i int) (float64, bool) {
	if i >= len(n.args) {
		return 0, false
	}
	f, ok := n.args[i].(float64)
	return f, ok
}

// ParseWKT parses an OGC or ESRI WKT1 definition such as the content of a
// shapefile .prj file.
func ParseWKT(s string) (*CRS, error) {
	p := &wktParser{src: s}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}

	// Prefer an authority code we know when one is attached to the root.
	if auth := root.child("AUTHORITY"); auth != nil && strings.EqualFold(auth.name(), "EPSG") && len(auth.args) > 1 {
		if code, ok := authorityCode(auth.args[1]); ok {
			if c, err := FromEPSG(code); err == nil {
				return c, nil
			}
		}
	}

	switch root.keyword {
	case "GEOGCS", "GEOGCRS", "GEODCRS":
		return geographicFromWKT(root)
	case "PROJCS", "PROJCRS":
		return projectedFromWKT(root)
	}
	return nil, eris.Errorf("crs: unsupported WKT root %s", root.keyword)
}

func authorityCode(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		code, err := strconv.Atoi(t)
		return code, err == nil
	case float64:
		return int(t), true
	}
	return 0, false
}

func geographicFromWKT(n *node) (*CRS, error) {
	c := geographic(n.name(), 0, datumFromWKT(n))
	if u := n.child("UNIT"); u != nil {
		// Angular units are given in radians per unit.
		if f, ok := u.number(1); ok && f > 0 {
			c.unit = f * 180 / math.Pi
		}
	}
	return c, nil
}

func projectedFromWKT(n *node) (*CRS, error) {
	proj := n.child("PROJECTION")
	if proj == nil {
		return nil, eris.Errorf("crs: projected CRS %q has no PROJECTION", n.name())
	}

	unit := 1.0
	// The linear unit is the PROJCS-level UNIT, not the one inside GEOGCS.
	if u := n.child("UNIT"); u != nil {
		if f, ok := u.number(1); ok && f > 0 {
			unit = f
		}
	}

	params := make(map[string]float64)
	for _, p := range n.children("PARAMETER") {
		if v, ok := p.number(1); ok {
			params[normalize(p.name())] = v
		}
	}
	lonf := firstParam(params, "central_meridian", "longitude_of_center", "longitude_of_natural_origin", "longitude_of_false_origin")
	latf := firstParam(params, "latitude_of_origin", "latitude_of_center", "latitude_of_natural_origin", "latitude_of_false_origin")
	// False easting/northing are expressed in the projected unit.
	eastf := firstParam(params, "false_easting", "easting_at_false_origin") * unit
	northf := firstParam(params, "false_northing", "northing_at_false_origin") * unit
	scale := firstParam(params, "scale_factor", "scale_factor_at_natural_origin")
	if scale == 0 {
		scale = 1
	}
	lat1, hasLat1 := lookupParam(params, "standard_parallel_1", "latitude_of_1st_standard_parallel")
	lat2, hasLat2 := lookupParam(params, "standard_parallel_2", "latitude_of_2nd_standard_parallel")

	datum := datumFromWKT(n)
	method := normalize(proj.name())
	name := normalize(n.name())
	switch {
	case strings.Contains(method, "pseudo_mercator") ||
		strings.Contains(method, "mercator_auxiliary_sphere") ||
		strings.Contains(name, "pseudo_mercator") ||
		strings.Contains(name, "web_mercator"):
		wm := wgs84.WebMercator()
		return projected(n.name(), 0, wm.Datum, wm.Projection, unit), nil

	case method == "transverse_mercator" || method == "gauss_kruger":
		tm := transverseMercator{lonf: lonf, latf: latf, scale: scale, eastf: eastf, northf: northf}
		return projected(n.name(), 0, datum, tm, unit), nil

	case strings.HasPrefix(method, "lambert_conformal_conic"):
		if !hasLat1 || strings.HasSuffix(method, "1sp") {
			lat1, hasLat2 = latf, false
		}
		if !hasLat2 {
			// One standard parallel, scaled by k0 at the natural origin.
			if err := checkConic(n.name(), lat1, lat1); err != nil {
				return nil, err
			}
			lcc := datum.LambertConformalConic2SP(lonf, latf, lat1, lat1, 0, 0)
			p := scaledOrigin{Projection: lcc.Projection, scale: scale, eastf: eastf, northf: northf}
			return projected(n.name(), 0, datum, p, unit), nil
		}
		if err := checkConic(n.name(), lat1, lat2); err != nil {
			return nil, err
		}
		lcc := datum.LambertConformalConic2SP(lonf, latf, lat1, lat2, eastf, northf)
		return projected(n.name(), 0, datum, lcc.Projection, unit), nil

	case strings.HasPrefix(method, "albers"):
		if !hasLat1 {
			return nil, eris.Errorf("crs: Albers projection %q has no standard parallel", n.name())
		}
		if !hasLat2 {
			lat2 = lat1
		}
		if err := checkConic(n.name(), lat1, lat2); err != nil {
			return nil, err
		}
		aea := datum.AlbersEqualAreaConic(lonf, latf, lat1, lat2, eastf, northf)
		return projected(n.name(), 0, datum, aea.Projection, unit), nil
	}

	return nil, eris.Errorf("crs: unsupported projection %q in %q", proj.name(), n.name())
}

// checkConic rejects standard parallels symmetric about the equator, for
// which a conic projection has no cone constant.
func checkConic(name string, lat1, lat2 float64) error {
	if math.Abs(lat1+lat2) < 1e-10 {
		return eris.Errorf("crs: conic projection %q has standard parallels symmetric about the equator", name)
	}
	return nil
}

// datumFromWKT reads the ellipsoid and any TOWGS84 shift of a GEOGCS, or of
// the GEOGCS nested in a PROJCS. Anything missing falls back to WGS 84.
func datumFromWKT(n *node) wgs84.Datum {
	geog := n
	if n.keyword == "PROJCS" || n.keyword == "PROJCRS" {
		if geog = n.child("GEOGCS"); geog == nil {
			geog = n.child("BASEGEOGCRS")
		}
	}
	if geog == nil {
		return wgs84.WGS84()
	}
	datum := geog.child("DATUM")
	if datum == nil {
		return wgs84.WGS84()
	}
	ell := WGS84Ellipsoid
	sph := datum.child("SPHEROID")
	if sph == nil {
		sph = datum.child("ELLIPSOID")
	}
	if sph != nil {
		a, okA := sph.number(1)
		invf, okF := sph.number(2)
		if okA && okF && a > 0 {
			ell = Ellipsoid{SemiMajor: a, InverseFlattening: invf}
		}
	}

	if shift := datum.child("TOWGS84"); shift != nil {
		var h [7]float64
		nonzero := false
		for i := range h {
			h[i], _ = shift.number(i)
			nonzero = nonzero || h[i] != 0
		}
		if nonzero {
			return wgs84.Helmert(ell.A(), ell.Fi(), h[0], h[1], h[2], h[3], h[4], h[5], h[6])
		}
	}
	return wgs84.Datum{Spheroid: ell}
}

func lookupParam(params map[string]float64, names ...string) (float64, bool) {
	for _, n := range names {
		if v, ok := params[n]; ok {
			return v, true
		}
	}
	return 0, false
}

func firstParam(params map[string]float64, names ...string) float64 {
	v, _ := lookupParam(params, names...)
	return v
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(s)
}

type wktParser struct {
	src string
	pos int
}

func (p *wktParser) parse() (*node, error) {
	n, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, eris.Errorf("crs: unexpected trailing WKT at offset %d", p.pos)
	}
	return n, nil
}

func (p *wktParser) parseNode() (*node, error) {
	p.skipSpace()
	kw := p.ident()
	if kw == "" {
		return nil, eris.Errorf("crs: expected WKT keyword at offset %d", p.pos)
	}
	n := &node{keyword: strings.ToUpper(kw)}

	p.skipSpace()
	if p.pos >= len(p.src) || (p.src[p.pos] != '[' && p.src[p.pos] != '(') {
		return nil, eris.Errorf("crs: expected '[' after %s", kw)
	}
	p.pos++

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, eris.Errorf("crs: unterminated %s", kw)
		}
		switch ch := p.src[p.pos]; {
		case ch == ']' || ch == ')':
			p.pos++
			return n, nil
		case ch == ',':
			p.pos++
		case ch == '"':
			s, err := p.quoted()
			if err != nil {
				return nil, err
			}
			n.args = append(n.args, s)
		case ch == '-' || ch == '+' || ch == '.' || (ch >= '0' && ch <= '9'):
			f, err := p.number()
			if err != nil {
				return nil, err
			}
			n.args = append(n.args, f)
		default:
			start := p.pos
			id := p.ident()
			if id == "" {
				return nil, eris.Errorf("crs: unexpected %q at offset %d", ch, p.pos)
			}
			p.skipSpace()
			if p.pos < len(p.src) && (p.src[p.pos] == '[' || p.src[p.pos] == '(') {
				p.pos = start
				child, err := p.parseNode()
				if err != nil {
					return nil, err
				}
				n.args = append(n.args, child)
			} else {
				// Bare enumerations such as NORTH or EAST.
				n.args = append(n.args, id)
			}
		}
	}
}

func (p *wktParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *wktParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '_' || (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *wktParser) quoted() (string, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		p.pos++
		if ch == '"' {
			// Doubled quotes escape a literal quote.
			if p.pos < len(p.src) && p.src[p.pos] == '"' {
				sb.WriteByte('"')
				p.pos++
				continue
			}
			return sb.String(), nil
		}
		sb.WriteByte(ch)
	}
	return "", eris.New("crs: unterminated quoted string")
}

func (p *wktParser) number() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '-' || ch == '+' || ch == '.' || ch == 'e' || ch == 'E' || (ch >= '0' && ch <= '9') {
			p.pos++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, eris.Wrapf(err, "crs: parse number at offset %d", start)
	}
	return f, nil
}
