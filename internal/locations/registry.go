// Package locations defines the fixed itinerary of places the weather
// service reports on. The set is ordered and immutable after construction;
// every lookup and listing preserves itinerary order.
package locations

import "strings"

// Location is a named point on the itinerary.
type Location struct {
	Name string
	Lat  float64
	Lon  float64
}

// Key returns the canonical lookup key for the location name.
func (l Location) Key() string {
	return Normalize(l.Name)
}

// Slug returns the URL path segment for the location name.
func (l Location) Slug() string {
	return Slug(l.Name)
}

// Registry resolves location names to coordinates. Lookups are
// case-insensitive and treat hyphens as spaces, so the slug form used in
// URLs resolves to the same location as the display name.
type Registry struct {
	ordered []Location
	byKey   map[string]Location
}

// New builds a registry from the given locations, preserving their order.
// Later duplicates of the same normalized name are ignored.
func New(locs []Location) *Registry {
	r := &Registry{
		ordered: make([]Location, 0, len(locs)),
		byKey:   make(map[string]Location, len(locs)),
	}
	for _, loc := range locs {
		key := loc.Key()
		if _, exists := r.byKey[key]; exists {
			continue
		}
		r.byKey[key] = loc
		r.ordered = append(r.ordered, loc)
	}
	return r
}

// Default returns the ten-stop England itinerary.
func Default() *Registry {
	return New([]Location{
		{Name: "Cumbria", Lat: 54.4609, Lon: -3.0886},
		{Name: "Corfe Castle", Lat: 50.6395, Lon: -2.0566},
		{Name: "The Cotswolds", Lat: 51.8330, Lon: -1.8433},
		{Name: "Cambridge", Lat: 52.2053, Lon: 0.1218},
		{Name: "Bristol", Lat: 51.4545, Lon: -2.5879},
		{Name: "Oxford", Lat: 51.7520, Lon: -1.2577},
		{Name: "Norwich", Lat: 52.6309, Lon: 1.2974},
		{Name: "Stonehenge", Lat: 51.1789, Lon: -1.8262},
		{Name: "Watergate Bay", Lat: 50.4429, Lon: -5.0553},
		{Name: "Birmingham", Lat: 52.4862, Lon: -1.8904},
	})
}

// Resolve looks up a location by display name, slug, or any casing of
// either. The second return value is false when the name is not on the
// itinerary.
func (r *Registry) Resolve(name string) (Location, bool) {
	loc, ok := r.byKey[Normalize(name)]
	return loc, ok
}

// All returns the locations in itinerary order.
func (r *Registry) All() []Location {
	out := make([]Location, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the display names in itinerary order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, loc := range r.ordered {
		names[i] = loc.Name
	}
	return names
}

// Len returns the number of locations on the itinerary.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// Normalize lowercases a name, converts hyphens to spaces, and collapses
// runs of whitespace. "corfe-castle" and "Corfe Castle" normalize to the
// same key.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Slug lowercases a name and replaces every character outside [a-z0-9]
// with a hyphen, matching how location links are built.
func Slug(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
