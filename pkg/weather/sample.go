package weather

import (
	"time"
)

// Sample locations as longitude/latitude.
var (
	Ottawa   = Point(-75, 45)
	Toronto  = Point(-79, 45)
	Windsor  = Point(-83, 42)
	Cornwall = Point(-74, 45)
)

var (
	sampleToday     = time.Date(2023, 3, 26, 0, 0, 0, 0, time.UTC)
	sampleYesterday = sampleToday.AddDate(0, 0, -1)
)

// SampleRecords returns today's and yesterday's records for Ottawa and Toronto.
func SampleRecords() []Record {
	record := func(location, dateTime string, at time.Time, p GeoPoint) Record {
		return Record{
			Location:    location,
			DateTime:    dateTime,
			Geolocation: Point(p.Longitude(), p.Latitude()),
			Timestamp:   Timestamp(at),
		}
	}
	return []Record{
		record("OTTAWA", "TODAY", sampleToday, Ottawa),
		record("OTTAWA", "YESTERDAY", sampleYesterday, Ottawa),
		record("TORONTO", "TODAY", sampleToday, Toronto),
		record("TORONTO", "YESTERDAY", sampleYesterday, Toronto),
	}
}
