package camera

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"

	"orbitcam/internal/geotag"
)

// ifdPaths maps tag key prefixes to IFD paths.
var ifdPaths = map[string]string{
	"GPS":   "IFD/GPSInfo",
	"EXIF":  "IFD/Exif",
	"IFD0":  "IFD",
	"Image": "IFD",
}

// EmbedTags writes tags ("GPS.GPSLatitude" -> "51/1,30/1,0/10") into the
// EXIF segment of a JPEG. Values in rational list form are stored as
// RATIONAL, everything else as ASCII.
func EmbedTags(jpeg []byte, tags map[string]string) ([]byte, error) {
	if len(tags) == 0 {
		return jpeg, nil
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("failed to create IFD mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prefix, name, ok := strings.Cut(key, ".")
		ifdPath, known := ifdPaths[prefix]
		if !ok || !known || name == "" {
			return nil, fmt.Errorf("unsupported metadata tag %q", key)
		}

		ib := rootIb
		if ifdPath != "IFD" {
			ib, err = exif.GetOrCreateIbFromRootIb(rootIb, ifdPath)
			if err != nil {
				return nil, fmt.Errorf("failed to get IFD %s: %w", ifdPath, err)
			}
		}

		if err := ib.SetStandardWithName(name, tagValue(tags[key])); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(jpeg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JPEG: %w", err)
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("unexpected JPEG media context %T", intfc)
	}
	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("failed to set EXIF segment: %w", err)
	}

	var out bytes.Buffer
	if err := sl.Write(&out); err != nil {
		return nil, fmt.Errorf("failed to write JPEG: %w", err)
	}
	return out.Bytes(), nil
}

func tagValue(value string) interface{} {
	if strings.Contains(value, "/") {
		if rs, err := geotag.ParseRationals(value); err == nil {
			out := make([]exifcommon.Rational, len(rs))
			for i, r := range rs {
				out[i] = exifcommon.Rational{Numerator: r.Numerator, Denominator: r.Denominator}
			}
			return out
		}
	}
	return value
}

// ReadGeoTag recovers the GPS position embedded by EmbedTags.
func ReadGeoTag(jpeg []byte) (geotag.Point, error) {
	rawExif, err := exif.SearchAndExtractExif(jpeg)
	if err != nil {
		return geotag.Point{}, fmt.Errorf("no EXIF segment: %w", err)
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return geotag.Point{}, fmt.Errorf("failed to read EXIF: %w", err)
	}

	values := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		values[e.TagName] = e.Value
	}

	lat, err := angle(values, "GPSLatitude", "GPSLatitudeRef", "S")
	if err != nil {
		return geotag.Point{}, err
	}
	lon, err := angle(values, "GPSLongitude", "GPSLongitudeRef", "W")
	if err != nil {
		return geotag.Point{}, err
	}

	p := geotag.Point{Latitude: lat, Longitude: lon}
	return p, p.Validate()
}

func angle(values map[string]interface{}, name, refName, negativeRef string) (float64, error) {
	raw, ok := values[name].([]exifcommon.Rational)
	if !ok {
		return 0, fmt.Errorf("tag %s missing or not rational", name)
	}
	rationals := make([]geotag.Rational, len(raw))
	for i, r := range raw {
		rationals[i] = geotag.Rational{Numerator: r.Numerator, Denominator: r.Denominator}
	}
	deg, err := geotag.Degrees(rationals)
	if err != nil {
		return 0, fmt.Errorf("tag %s: %w", name, err)
	}
	if ref, _ := values[refName].(string); ref == negativeRef {
		deg = -deg
	}
	return deg, nil
}
