// Package gps runs the ingest pipeline: a line source feeds the NMEA
// parser, and every record the cursor leaves behind is finished and, if it
// passes the publish policy, handed to the finish callback.
package gps
