// Package geo turns GPS coordinates into short place names suitable for
// folder names.
package geo

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"family-atlas/model"
)

const (
	Home            = "Home"
	UnknownLocation = "Unknown_Location"

	// EarthRadiusKm is the mean earth radius.
	EarthRadiusKm = 6371.0088

	DefaultHomeRadiusKm = 1.0
	DefaultTimeout      = 5 * time.Second
)

// DefaultHome is the home point used when none is configured.
var DefaultHome = model.Coordinates{Lat: 37.519355555555556, Lon: 127.01368611111111}

var koreaNames = map[string]bool{
	"South Korea":       true,
	"Republic of Korea": true,
	"Korea":             true,
}

// Resolver maps coordinates to place names: "Home" near the home point,
// otherwise a cached or freshly geocoded area name.
type Resolver struct {
	Home         model.Coordinates
	HomeRadiusKm float64
	Geocoder     Geocoder
	Cache        *Cache
	Timeout      time.Duration
	Log          *zap.Logger

	group singleflight.Group
}

func NewResolver(geocoder Geocoder, cache *Cache, log *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		Home:         DefaultHome,
		HomeRadiusKm: DefaultHomeRadiusKm,
		Geocoder:     geocoder,
		Cache:        cache,
		Timeout:      DefaultTimeout,
		Log:          log,
	}
}

// Resolve never fails: lookup errors degrade to UnknownLocation and are
// not cached, so a later call retries.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) string {
	if d, ok := DistanceKm(r.Home, model.Coordinates{Lat: lat, Lon: lon}); ok && d <= r.HomeRadiusKm {
		return Home
	}

	key := KeyFor(lat, lon)
	if name, ok := r.Cache.Get(key); ok {
		return name
	}
	if r.Geocoder == nil {
		return UnknownLocation
	}

	v, err, _ := r.group.Do(cacheKeyString(key), func() (interface{}, error) {
		if name, ok := r.Cache.Get(key); ok {
			return name, nil
		}
		timeout := r.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		lookupCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		addr, err := r.Geocoder.Reverse(lookupCtx, lat, lon)
		if err != nil {
			return nil, err
		}
		name := areaName(addr)
		r.Cache.Put(key, name)
		r.Log.Debug("resolved place",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.String("place", name),
			zap.Duration("took", time.Since(start)),
		)
		return name, nil
	})
	if err != nil {
		r.Log.Warn("geocoding failed",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err),
		)
		return UnknownLocation
	}
	return v.(string)
}

func cacheKeyString(k CacheKey) string {
	return strconv.FormatFloat(k.Lat, 'f', 1, 64) + "," + strconv.FormatFloat(k.Lon, 'f', 1, 64)
}

// areaName picks a sub-national area inside Korea and the country name
// everywhere else.
func areaName(a Address) string {
	if koreaNames[a.Country] {
		switch {
		case a.County != "":
			return a.County
		case a.Province != "":
			return a.Province
		default:
			return UnknownLocation
		}
	}
	if a.Country == "" {
		return UnknownLocation
	}
	return a.Country
}

// DistanceKm is the great-circle distance between a and b. ok is false for
// coordinates outside the valid latitude/longitude ranges.
func DistanceKm(a, b model.Coordinates) (float64, bool) {
	if !valid(a) || !valid(b) {
		return 0, false
	}
	p := s2.LatLngFromDegrees(a.Lat, a.Lon)
	q := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p.Distance(q).Radians() * EarthRadiusKm, true
}

func valid(c model.Coordinates) bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lon) &&
		math.Abs(c.Lat) <= 90 && math.Abs(c.Lon) <= 180
}

// Sanitize makes a place name safe as a single folder name: everything from
// the first "/" on is dropped and surrounding space trimmed.
func Sanitize(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	switch name {
	case "", ".", "..":
		return UnknownLocation
	}
	return name
}
