// Package domain models the weather data the radar renderer consumes.
//
// # Data Source
//
// Both payloads come from the checkweather.sg API, which republishes the
// Meteorological Service Singapore rain radar and station observations.
// The rainarea endpoint returns the latest radar frame; the observations
// endpoint returns the latest reading of every weather station.
//
// # Radar Frame Conventions
//
// Dataset id:
//
//	"YYYYMMDDHHMM" in Singapore local time, e.g. "202404261430".
//	Only the trailing HHMM is read; see package timestamp.
//
// Radar payload:
//
//	One text line per grid row, top row first. Each character is one cell:
//	a space is clear air and any other character c encodes intensity c − 33,
//	so '!' is 0 and '~' is 93. Leading blanks are common; trailing blanks are
//	usually trimmed by the publisher. See package grid.
//
// Observations:
//
//	Stations report longitude and latitude in WGS-84 degrees. Temperature and
//	wind direction are optional; a station that does not measure one omits
//	the field. The upstream spells the temperature key "temp_celcius".
//	Wind direction is the compass bearing the wind blows from, in degrees.
package domain
