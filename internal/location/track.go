package location

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/shared/geo"
	"github.com/tormoder/fit"
)

var ErrNoTrackData = errors.New("no track points found")

// LoadTrackFile reads a recorded track for replay, picking the decoder from
// the file extension.
func LoadTrackFile(path string) ([]geo.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpx":
		return LoadGPX(f)
	case ".fit":
		return LoadFIT(f)
	default:
		return nil, fmt.Errorf("unsupported track file %q", path)
	}
}

type gpxFile struct {
	XMLName xml.Name   `xml:"gpx"`
	Tracks  []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
}

const untimedStepMs = 1000

func LoadGPX(r io.Reader) ([]geo.Point, error) {
	var doc gpxFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode gpx: %w", err)
	}

	var points []geo.Point
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				p := geo.Point{Lat: pt.Lat, Lng: pt.Lon}
				if t, err := time.Parse(time.RFC3339, pt.Time); err == nil {
					p.Timestamp = t.UnixMilli()
				} else if n := len(points); n > 0 {
					// untimed routes replay one point per second
					p.Timestamp = points[n-1].Timestamp + untimedStepMs
				}
				points = append(points, p)
			}
		}
	}
	if len(points) == 0 {
		return nil, ErrNoTrackData
	}
	return points, nil
}

func LoadFIT(r io.Reader) ([]geo.Point, error) {
	f, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	activity, err := f.Activity()
	if err != nil {
		return nil, fmt.Errorf("fit activity: %w", err)
	}

	points := pointsFromRecords(activity.Records)
	if len(points) == 0 {
		return nil, ErrNoTrackData
	}
	return points, nil
}

// pointsFromRecords keeps records that carry a position; indoor and paused
// records leave the position fields invalid.
func pointsFromRecords(records []*fit.RecordMsg) []geo.Point {
	points := make([]geo.Point, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.PositionLat.Invalid() || rec.PositionLong.Invalid() {
			continue
		}
		points = append(points, geo.Point{
			Lat:       rec.PositionLat.Degrees(),
			Lng:       rec.PositionLong.Degrees(),
			Timestamp: rec.Timestamp.UnixMilli(),
		})
	}
	return points
}
