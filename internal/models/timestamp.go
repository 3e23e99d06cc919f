package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the filesystem-safe timestamp used for image names
// and the record log: colons and spaces are replaced.
const TimestampLayout = "2006-01-02_15-04-05"

// ImageExt is the extension of archived captures.
const ImageExt = ".jpg"

// FormatTimestamp renders t in TimestampLayout, truncated to the second.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string in the local zone.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// ImageFilename returns the archive filename for a capture taken at t.
func ImageFilename(t time.Time) string {
	return FormatTimestamp(t) + ImageExt
}

// ParseImageFilename extracts the capture time from an archive filename.
func ParseImageFilename(filename string) (time.Time, error) {
	base := filepath.Base(filename)
	if filepath.Ext(base) != ImageExt {
		return time.Time{}, fmt.Errorf("not an archived capture: %s", filename)
	}
	return ParseTimestamp(strings.TrimSuffix(base, ImageExt))
}
