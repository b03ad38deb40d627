package gps

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gpsapp/internal/geo"
	"gpsapp/internal/opt"
)

type gpsdMsgBase struct {
	Class string `json:"class"`
}

type gpsdTPV struct {
	Class string `json:"class"`
	Mode  *int   `json:"mode"`
	Time  string `json:"time"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	Alt     *float64 `json:"alt"`
	AltMSL  *float64 `json:"altMSL"`
	SpeedMS *float64 `json:"speed"`
	Track   *float64 `json:"track"`
	ClimbMS *float64 `json:"climb"`
}

type gpsdSat struct {
	PRN  int      `json:"PRN"`
	El   *float64 `json:"el"`
	Az   *float64 `json:"az"`
	SS   *float64 `json:"ss"`
	Used bool     `json:"used"`
}

type gpsdSKY struct {
	Class      string    `json:"class"`
	HDOP       *float64  `json:"hdop"`
	Satellites []gpsdSat `json:"satellites"`
}

// GPSD decodes the JSON report stream of a gpsd daemon (?WATCH json mode).
// Only TPV and SKY reports are used.
type GPSD struct {
	counters
	env  Env
	line []byte
}

func NewGPSD(env Env) *GPSD {
	return &GPSD{env: env, line: make([]byte, 0, 1024)}
}

// GPSDWatchJSON is the request that switches a gpsd connection to JSON
// reports.
const GPSDWatchJSON = "?WATCH={\"enable\":true,\"json\":true,\"scaled\":true}\n"

func (d *GPSD) Init() error {
	if _, err := d.env.out().Write([]byte(GPSDWatchJSON)); err != nil {
		return fmt.Errorf("gpsd: watch: %w", err)
	}
	return nil
}

// gpsd reports can be much longer than receiver frames.
const gpsdMaxLine = 16 * 1024

func (d *GPSD) Update(b byte, fix *Fix) bool {
	if b != '\n' {
		if len(d.line) >= gpsdMaxLine {
			d.line = d.line[:0]
			d.drop()
		}
		d.line = append(d.line, b)
		return false
	}
	line := strings.TrimSpace(string(d.line))
	d.line = d.line[:0]
	if line == "" {
		return false
	}
	upd, err := d.applyLine(line, fix)
	if err != nil {
		d.drop()
		return false
	}
	d.frame()
	return upd
}

func (d *GPSD) applyLine(line string, fix *Fix) (bool, error) {
	var base gpsdMsgBase
	if err := json.Unmarshal([]byte(line), &base); err != nil {
		return false, fmt.Errorf("gpsd: json parse failed: %w", err)
	}

	switch strings.ToUpper(strings.TrimSpace(base.Class)) {
	case "TPV":
		var tpv gpsdTPV
		if err := json.Unmarshal([]byte(line), &tpv); err != nil {
			return false, fmt.Errorf("gpsd: tpv parse failed: %w", err)
		}
		return d.applyTPV(tpv, fix), nil
	case "SKY":
		var sky gpsdSKY
		if err := json.Unmarshal([]byte(line), &sky); err != nil {
			return false, fmt.Errorf("gpsd: sky parse failed: %w", err)
		}
		return d.applySKY(sky, fix), nil
	default:
		// Ignore other gpsd messages (e.g. VERSION/DEVICES/WATCH).
		return false, nil
	}
}

func (d *GPSD) applyTPV(tpv gpsdTPV, fix *Fix) bool {
	updated := false

	if tpv.Mode != nil {
		switch *tpv.Mode {
		case 2:
			fix.setQuality(Quality2D)
		case 3:
			fix.setQuality(Quality3D)
		default:
			fix.setQuality(QualityNone)
		}
		updated = true
	}

	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(tpv.Time)); err == nil {
		fix.Time = t.Unix()
	} else {
		fix.Time = d.env.now().Unix()
	}

	if tpv.Lat != nil && tpv.Lon != nil {
		fix.setCoord(geo.Deg2Rad(*tpv.Lat), geo.Deg2Rad(*tpv.Lon))
		updated = true
	}

	altM := tpv.AltMSL
	if altM == nil {
		altM = tpv.Alt
	}
	if altM != nil {
		fix.Alt = *altM
	}

	if tpv.Track != nil && fix.Quality != QualityNone {
		fix.Bearing = opt.Known(geo.NormalizeDeg(*tpv.Track))
		fix.Updated |= UpdatedBearing
		updated = true
	}
	if tpv.SpeedMS != nil {
		fix.setVelocity(*tpv.SpeedMS, fix.Bearing.Or(0))
		updated = true
	}
	if tpv.ClimbMS != nil {
		fix.Up = *tpv.ClimbMS
	}
	return updated
}

func (d *GPSD) applySKY(sky gpsdSKY, fix *Fix) bool {
	updated := false
	if sky.HDOP != nil {
		fix.HDOP = *sky.HDOP
		updated = true
	}
	if len(sky.Satellites) > 0 {
		fix.Sats.ClearUsed()
		now := opt.Known(fix.Time)
		for _, s := range sky.Satellites {
			u := SatUpdate{Time: now, Used: opt.Known(s.Used)}
			if s.El != nil {
				u.Elev = opt.Known(geo.Deg2Rad(*s.El))
			}
			if s.Az != nil {
				u.Azim = opt.Known(geo.Deg2Rad(*s.Az))
			}
			if s.SS != nil {
				u.SNR = opt.Known(int(math.Round(*s.SS)))
			}
			fix.Sats.Merge(s.PRN, u)
		}
		fix.Updated |= UpdatedSignals | UpdatedSats | UpdatedFix
		updated = true
	}
	return updated
}
