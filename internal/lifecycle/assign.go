package lifecycle

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// City is one entry of the assignable location pool.
type City struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// ParseCityPool parses pool entries of the form "name,country,lat,lon".
func ParseCityPool(entries []string) ([]City, error) {
	cities := make([]City, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("city entry %q: expected 4 comma-separated fields, got %d", entry, len(fields))
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("city entry %q: bad latitude: %w", entry, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("city entry %q: bad longitude: %w", entry, err)
		}
		cities = append(cities, City{
			Name:      strings.TrimSpace(fields[0]),
			Country:   strings.TrimSpace(fields[1]),
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return cities, nil
}

// nearestCity returns the pool city closest to the given coordinates.
func nearestCity(cities []City, lat, lon float64) *City {
	var best *City
	bestDist := math.Inf(1)
	for i := range cities {
		c := &cities[i]
		// Equirectangular approximation, good enough to rank cities.
		dLat := c.Latitude - lat
		dLon := (c.Longitude - lon) * math.Cos(lat*math.Pi/180)
		dist := dLat*dLat + dLon*dLon
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	return best
}

// identityPool assigns display names and cities to imported accounts.
type identityPool struct {
	names  []string
	cities []City
	rng    *rand.Rand
}

func newIdentityPool(names []string, cityEntries []string, rng *rand.Rand) (*identityPool, error) {
	cities, err := ParseCityPool(cityEntries)
	if err != nil {
		return nil, err
	}
	trimmed := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			trimmed = append(trimmed, n)
		}
	}
	return &identityPool{names: trimmed, cities: cities, rng: rng}, nil
}

// pickName returns a random pool name, or nil when the pool is empty.
func (p *identityPool) pickName() *string {
	if len(p.names) == 0 {
		return nil
	}
	name := p.names[p.rng.Intn(len(p.names))]
	return &name
}

// pickCity returns the pool city nearest to the given coordinates, or a
// random one when the account carries no coordinates.
func (p *identityPool) pickCity(lat, lon *float64) *City {
	if len(p.cities) == 0 {
		return nil
	}
	if lat != nil && lon != nil {
		return nearestCity(p.cities, *lat, *lon)
	}
	city := p.cities[p.rng.Intn(len(p.cities))]
	return &city
}
