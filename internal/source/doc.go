// Package source produces raw NMEA lines from serial ports, TCP feeds,
// gpsd and files.
//
// Every source implements Run(ctx, onLine), which blocks until ctx ends or
// the input is exhausted. Lines are handed over trimmed and non-empty.
package source
