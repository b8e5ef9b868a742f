// Package nmea turns NMEA-0183 GPS sentences into time-indexed fix records.
//
// A Parser classifies each line, decodes the fields of the six supported
// GP sentences (GGA, GLL, GSA, GSV, RMC, VTG) and merges them into one
// Record per UTC time-of-day. Sentences that carry a timestamp (GGA, GLL,
// RMC) move the parser's cursor; the others are merged into the record the
// cursor names.
//
// A Parser is not safe for concurrent use. Feed it from one goroutine, in
// arrival order, or guard it externally.
package nmea
