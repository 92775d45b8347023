package options

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

var _ IOptions = (*MapOptions)(nil)

// MapOptions is pass-through configuration for map consumers. Only presence
// and range are checked.
type MapOptions struct {
	DefaultLatitude  float64 `json:"default-latitude" mapstructure:"default-latitude"`
	DefaultLongitude float64 `json:"default-longitude" mapstructure:"default-longitude"`
	StyleToken       string  `json:"style-token" mapstructure:"style-token"`

	// Position is the tracker's own fixed position as "lat,lng". When empty
	// the position is unknown and the default center is used.
	Position string `json:"position" mapstructure:"position"`
}

func NewMapOptions() *MapOptions {
	return &MapOptions{
		DefaultLatitude:  40.7128,
		DefaultLongitude: -74.0060,
	}
}

func (o *MapOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.DefaultLatitude < -90 || o.DefaultLatitude > 90 {
		errors = append(errors, fmt.Errorf("--map.default-latitude %g out of range", o.DefaultLatitude))
	}
	if o.DefaultLongitude < -180 || o.DefaultLongitude > 180 {
		errors = append(errors, fmt.Errorf("--map.default-longitude %g out of range", o.DefaultLongitude))
	}

	if lat, lng, ok, err := o.ParsePosition(); err != nil {
		errors = append(errors, err)
	} else if ok && (lat < -90 || lat > 90 || lng < -180 || lng > 180) {
		errors = append(errors, fmt.Errorf("--map.position %q out of range", o.Position))
	}

	return errors
}

// ParsePosition returns the configured fixed position. ok is false when
// none is set.
func (o *MapOptions) ParsePosition() (lat, lng float64, ok bool, err error) {
	if strings.TrimSpace(o.Position) == "" {
		return 0, 0, false, nil
	}
	latStr, lngStr, found := strings.Cut(o.Position, ",")
	if !found {
		return 0, 0, false, fmt.Errorf("--map.position %q must be lat,lng", o.Position)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64); err != nil {
		return 0, 0, false, fmt.Errorf("--map.position latitude: %w", err)
	}
	if lng, err = strconv.ParseFloat(strings.TrimSpace(lngStr), 64); err != nil {
		return 0, 0, false, fmt.Errorf("--map.position longitude: %w", err)
	}
	return lat, lng, true, nil
}

func (o *MapOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Float64Var(&o.DefaultLatitude, "map.default-latitude", o.DefaultLatitude, "Latitude of the default map center and simulation start.")
	fs.Float64Var(&o.DefaultLongitude, "map.default-longitude", o.DefaultLongitude, "Longitude of the default map center and simulation start.")
	fs.StringVar(&o.Position, "map.position", o.Position, "Fixed position of this tracker as lat,lng. Unset falls back to the default center.")
	fs.StringVar(&o.StyleToken, "map.style-token", o.StyleToken, "Map style access token handed to map clients.")
}
