package geocode

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleIndex = `lat,lon,name,admin1,admin2,cc
44.92543,25.4567,Targoviste,Dambovita,,RO
44.43225,26.10626,Bucharest,Bucuresti,,RO
48.85341,2.3488,Paris,Ile-de-France,Paris,FR
-33.86785,151.20732,Sydney,New South Wales,,AU
64.13548,-21.89541,Reykjavik,Capital Region,,IS
-54.8,-68.3,Ushuaia,Tierra del Fuego,,AR
`

func loadSample(t *testing.T) *Index {
	t.Helper()
	idx, err := Read(strings.NewReader(sampleIndex))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return idx
}

func TestResolve_Nearest(t *testing.T) {
	idx := loadSample(t)

	tests := []struct {
		name    string
		lat     float64
		lon     float64
		country string
		city    string
	}{
		{"exact match", 48.85341, 2.3488, "FR", "Paris"},
		{"near targoviste", 44.9, 25.5, "RO", "Targoviste"},
		{"near bucharest", 44.4, 26.0, "RO", "Bucharest"},
		{"open ocean still resolves", -40.0, 160.0, "AU", "Sydney"},
		{"across the antimeridian", -34.0, -179.0, "AU", "Sydney"},
		{"north atlantic", 60.0, -30.0, "IS", "Reykjavik"},
		{"far south", -70.0, -60.0, "AR", "Ushuaia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := idx.Resolve(tt.lat, tt.lon)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if info.CountryCode != tt.country || info.Name != tt.city {
				t.Errorf("Resolve(%v, %v) = %s/%s, expected %s/%s", tt.lat, tt.lon, info.CountryCode, info.Name, tt.country, tt.city)
			}
		})
	}
}

func TestResolve_InvalidCoordinate(t *testing.T) {
	idx := loadSample(t)

	_, err := idx.Resolve(95, 0)
	if !errors.Is(err, ErrResolve) {
		t.Errorf("expected ErrResolve, got %v", err)
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header only", "lat,lon,name,admin1,admin2,cc\n"},
		{"missing column", "lat,lon,name\n1,2,x\n"},
		{"bad latitude", "lat,lon,name,cc\nabc,2,x,RO\n"},
		{"out of range", "lat,lon,name,cc\n100,2,x,RO\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.input)); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.csv")
	if err := os.WriteFile(path, []byte(sampleIndex), 0644); err != nil {
		t.Fatal(err)
	}

	idx, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if idx.Len() != 6 {
		t.Errorf("expected 6 places, got %d", idx.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing index")
	}
}
