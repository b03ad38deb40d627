// Package gps turns raw receiver byte streams into a shared Fix record.
//
// Each supported wire protocol is a byte-at-a-time Decoder that owns its own
// framing buffer (bounded, resynchronizing on overflow) and merges decoded
// fields into the Fix, flagging which categories changed:
//   - NMEA-0183 text sentences
//   - Trimble TSIP and Garmin binary (DLE/ETX framed)
//   - Rockwell Zodiac binary (DeLorme Earthmate)
//   - Trimble TAIP text
//   - gpsd JSON reports
//   - tracklog replay of previously recorded drives
//
// A Registry maps protocol names to their line settings and constructors.
package gps
