// Package weather holds the weather observation schema and the store that reads and writes observations through
// whichever router of the cluster is healthy.
package weather

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/xerrors"
	"k8s.io/utils/ptr"
)

// ErrInvalidRecord is wrapped by every record validation failure.
var ErrInvalidRecord = xerrors.New("invalid weather record")

const pointType = "Point"

// GeoPoint is a GeoJSON point, coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

func Point(lon, lat float64) GeoPoint {
	return GeoPoint{Type: pointType, Coordinates: []float64{lon, lat}}
}

func (p GeoPoint) Longitude() float64 {
	if len(p.Coordinates) < 1 {
		return 0
	}
	return p.Coordinates[0]
}

func (p GeoPoint) Latitude() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

func (p GeoPoint) Validate() error {
	if p.Type != pointType {
		return xerrors.Errorf("geolocation type must be %q, got %q: %w", pointType, p.Type, ErrInvalidRecord)
	}
	if len(p.Coordinates) != 2 {
		return xerrors.Errorf("geolocation needs [longitude, latitude], got %d coordinates: %w", len(p.Coordinates), ErrInvalidRecord)
	}
	return ValidateCoordinates(p.Longitude(), p.Latitude())
}

// ValidateCoordinates checks that lon and lat are within the WGS84 ranges.
func ValidateCoordinates(lon, lat float64) error {
	var errs *multierror.Error
	if lon < -180 || lon > 180 {
		errs = multierror.Append(errs, xerrors.Errorf("longitude %v out of range [-180, 180]: %w", lon, ErrInvalidRecord))
	}
	if lat < -90 || lat > 90 {
		errs = multierror.Append(errs, xerrors.Errorf("latitude %v out of range [-90, 90]: %w", lat, ErrInvalidRecord))
	}
	return errs.ErrorOrNil()
}

// TimestampFormat is the layout of Record.Timestamp. Timestamps in this layout sort chronologically as strings.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// Timestamp formats t the way records store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Record is one weather observation of a station. Only geolocation and timestamp are required; the sections of the
// observation are kept as they were received.
type Record struct {
	ID                       *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	License                  *string             `json:"license,omitempty" bson:"license,omitempty"`
	Timestamp                string              `json:"timestamp" bson:"timestamp"`
	Geolocation              GeoPoint            `json:"geolocation" bson:"geolocation"`
	StationLongitude         *float64            `json:"stationLongitude,omitempty" bson:"stationLongitude,omitempty"`
	DistanceToWeatherStation *float64            `json:"distanceToWeatherStation,omitempty" bson:"distanceToWeatherStation,omitempty"`
	Location                 interface{}         `json:"location,omitempty" bson:"location,omitempty"`
	DateTime                 interface{}         `json:"dateTime,omitempty" bson:"dateTime,omitempty"`
	Warnings                 interface{}         `json:"warnings,omitempty" bson:"warnings,omitempty"`
	CurrentConditions        interface{}         `json:"currentConditions,omitempty" bson:"currentConditions,omitempty"`
	ForecastGroup            interface{}         `json:"forecastGroup,omitempty" bson:"forecastGroup,omitempty"`
	HourlyForecastGroup      interface{}         `json:"hourlyForecastGroup,omitempty" bson:"hourlyForecastGroup,omitempty"`
	YesterdayConditions      interface{}         `json:"yesterdayConditions,omitempty" bson:"yesterdayConditions,omitempty"`
	RiseSet                  interface{}         `json:"riseSet,omitempty" bson:"riseSet,omitempty"`
	Almanac                  interface{}         `json:"almanac,omitempty" bson:"almanac,omitempty"`
}

// Validate checks the fields a record cannot be stored or found without.
func (r Record) Validate() error {
	var errs *multierror.Error
	if err := r.Geolocation.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if r.Timestamp == "" {
		errs = multierror.Append(errs, xerrors.Errorf("timestamp is required: %w", ErrInvalidRecord))
	} else if _, err := time.Parse(time.RFC3339Nano, r.Timestamp); err != nil {
		errs = multierror.Append(errs, xerrors.Errorf("timestamp %q is not an RFC 3339 time: %w", r.Timestamp, ErrInvalidRecord))
	}
	return errs.ErrorOrNil()
}

// ForInsert returns the record as it is stored: without id and computed distance, with the timestamp in
// TimestampFormat, and with the station longitude, the shard key, derived from the geolocation when absent.
func (r Record) ForInsert() Record {
	r.ID = nil
	r.DistanceToWeatherStation = nil
	if t, err := time.Parse(time.RFC3339Nano, r.Timestamp); err == nil {
		r.Timestamp = Timestamp(t)
	}
	if r.StationLongitude == nil {
		r.StationLongitude = ptr.To(r.Geolocation.Longitude())
	}
	return r
}
