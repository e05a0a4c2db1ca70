package enrich

import (
	"context"
	"errors"
	"net"

	"github.com/oschwald/geoip2-golang"

	"linkpulse/internal/types"
)

var ErrUnresolvable = errors.New("ip address not resolvable")

// Resolver maps an IP address to an approximate location. Implementations
// must honor the context deadline; the enricher treats every failure shape
// the same way and degrades to an Unknown record.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (types.Location, error)
}

// GeoIP resolves locations from a local MaxMind City database.
type GeoIP struct {
	reader *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIP, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIP{reader: reader}, nil
}

func (g *GeoIP) Resolve(ctx context.Context, ip string) (types.Location, error) {
	if err := ctx.Err(); err != nil {
		return types.Location{}, err
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return types.Location{}, ErrUnresolvable
	}
	record, err := g.reader.City(parsed)
	if err != nil {
		return types.Location{}, err
	}

	loc := types.UnknownLocation()
	if name, ok := record.Country.Names["en"]; ok && name != "" {
		loc.Country = name
	}
	if len(record.Subdivisions) > 0 {
		if name, ok := record.Subdivisions[0].Names["en"]; ok && name != "" {
			loc.Region = name
		}
	}
	if name, ok := record.City.Names["en"]; ok && name != "" {
		loc.City = name
	}
	loc.Lat = record.Location.Latitude
	loc.Lon = record.Location.Longitude
	return loc, nil
}

func (g *GeoIP) Close() error {
	return g.reader.Close()
}
