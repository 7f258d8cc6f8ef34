package tech

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcxbench/rcxbench/pkg/errors"
)

// sampleLEF is a trimmed sky130-style technology stack: one masterslice,
// five routing layers with interleaved cuts.
const sampleLEF = `
VERSION 5.7 ;
#ifdef comment line
UNITS
  DATABASE MICRONS 1000 ;
END UNITS

LAYER nwell
  TYPE MASTERSLICE ;
END nwell

LAYER li1
  TYPE ROUTING ;
  DIRECTION VERTICAL ;
  PITCH 0.46 ;
  WIDTH 0.17 ;
  THICKNESS 0.1 ;
  HEIGHT 0.9361 ;
END li1

LAYER mcon
  TYPE CUT ;
END mcon

LAYER met1
  TYPE ROUTING ;
  DIRECTION HORIZONTAL ;
  PITCH 0.34 ;
  WIDTH 0.14 ;
  THICKNESS 0.35 ;
  HEIGHT 1.3761 ;
END met1

LAYER via
  TYPE CUT ;
END via

LAYER met2
  TYPE ROUTING ;
  DIRECTION VERTICAL ;
  PITCH 0.46 ;
  WIDTH 0.14 ;
  THICKNESS 0.35 ;
  HEIGHT 2.0061 ;
END met2

LAYER met3
  TYPE ROUTING ;
  DIRECTION HORIZONTAL ;
  PITCH 0.68 ;
  WIDTH 0.3 ;
  THICKNESS 0.8 ;
  HEIGHT 2.7861 ;
END met3

LAYER met4
  TYPE ROUTING ;
  DIRECTION VERTICAL ;
  PITCH 0.92 ;
  WIDTH 0.3 ;
  THICKNESS 0.8 ;
  HEIGHT 4.0211 ;
END met4

VIA mcon_via DEFAULT
  LAYER li1 ;
END mcon_via
`

func parseSample(t *testing.T) *Database {
	t.Helper()
	db, err := ParseLEF(strings.NewReader(sampleLEF), "sky130_sample")
	if err != nil {
		t.Fatalf("ParseLEF error: %v", err)
	}
	return db
}

func TestParseLEF(t *testing.T) {
	db := parseSample(t)

	if db.Name() != "sky130_sample" {
		t.Errorf("Name = %q", db.Name())
	}

	// 1 masterslice + 5 routing + 2 cut
	if len(db.Layers()) != 8 {
		t.Errorf("len(Layers) = %d, want 8", len(db.Layers()))
	}
	if db.NumRoutingLevels() != 5 {
		t.Errorf("NumRoutingLevels = %d, want 5", db.NumRoutingLevels())
	}

	routing := db.RoutingLayers()
	wantNames := []string{"li1", "met1", "met2", "met3", "met4"}
	for i, want := range wantNames {
		if routing[i].Name != want {
			t.Errorf("routing[%d].Name = %q, want %q", i, routing[i].Name, want)
		}
	}

	// Property parsing on a middle layer
	met3 := routing[3]
	if met3.Direction != "HORIZONTAL" {
		t.Errorf("met3.Direction = %q", met3.Direction)
	}
	if met3.Pitch != 0.68 {
		t.Errorf("met3.Pitch = %v", met3.Pitch)
	}
	if met3.Thickness != 0.8 {
		t.Errorf("met3.Thickness = %v", met3.Thickness)
	}
	if met3.Height != 2.7861 {
		t.Errorf("met3.Height = %v", met3.Height)
	}
}

func TestRoutingLevel(t *testing.T) {
	db := parseSample(t)

	tests := []struct {
		layer string
		level int
	}{
		{"li1", 1},
		{"met1", 2},
		{"met2", 3},
		{"met3", 4},
		{"met4", 5},
		{"MET4", 5}, // case-insensitive
	}

	for _, tt := range tests {
		level, err := db.RoutingLevel(tt.layer)
		if err != nil {
			t.Errorf("RoutingLevel(%q) error: %v", tt.layer, err)
			continue
		}
		if level != tt.level {
			t.Errorf("RoutingLevel(%q) = %d, want %d", tt.layer, level, tt.level)
		}
	}
}

func TestRoutingLevelErrors(t *testing.T) {
	db := parseSample(t)

	// Cut layers are not routing layers
	if _, err := db.RoutingLevel("mcon"); !errors.Is(err, errors.ErrCodeLayerNotFound) {
		t.Errorf("RoutingLevel(mcon) error = %v, want LAYER_NOT_FOUND", err)
	}

	// Unknown layer
	if _, err := db.RoutingLevel("metal9"); !errors.Is(err, errors.ErrCodeLayerNotFound) {
		t.Errorf("RoutingLevel(metal9) error = %v, want LAYER_NOT_FOUND", err)
	}

	// Invalid name is rejected before lookup
	if _, err := db.RoutingLevel("met4]; exit"); !errors.Is(err, errors.ErrCodeInvalidTech) {
		t.Errorf("RoutingLevel(injection) error = %v, want INVALID_TECH", err)
	}
}

func TestLayerAt(t *testing.T) {
	db := parseSample(t)

	l, err := db.LayerAt(4)
	if err != nil {
		t.Fatalf("LayerAt(4) error: %v", err)
	}
	if l.Name != "met3" {
		t.Errorf("LayerAt(4).Name = %q, want met3", l.Name)
	}

	for _, level := range []int{0, 6, -1} {
		if _, err := db.LayerAt(level); err == nil {
			t.Errorf("LayerAt(%d) should error", level)
		}
	}
}

func TestDatabaseJSONRoundtrip(t *testing.T) {
	db := parseSample(t)

	data, err := json.Marshal(db)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var got Database
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if got.Name() != db.Name() {
		t.Errorf("Name = %q, want %q", got.Name(), db.Name())
	}
	if got.NumRoutingLevels() != db.NumRoutingLevels() {
		t.Errorf("NumRoutingLevels = %d, want %d", got.NumRoutingLevels(), db.NumRoutingLevels())
	}
	// The level index is derived state and must survive the round trip.
	if level, err := got.RoutingLevel("met4"); err != nil || level != 5 {
		t.Errorf("RoutingLevel(met4) = %d, %v, want 5", level, err)
	}
}

func TestParseLEFNestedBlocks(t *testing.T) {
	// NONDEFAULTRULE and MACRO blocks carry their own END-terminated
	// sub-blocks; none of their LAYER statements belong to the stack.
	const input = `
LAYER met1
  TYPE ROUTING ;
  WIDTH 0.14 ;
END met1

NONDEFAULTRULE fast
  LAYER met1
    WIDTH 0.28 ;
  END met1
  LAYER met2
    WIDTH 0.5 ;
  END met2
END fast

MACRO buf_1
  PIN A
    DIRECTION INPUT ;
  END A
END buf_1

LAYER met2
  TYPE ROUTING ;
  WIDTH 0.5 ;
END met2
`
	db, err := ParseLEF(strings.NewReader(input), "ndr")
	if err != nil {
		t.Fatalf("ParseLEF error: %v", err)
	}
	if len(db.Layers()) != 2 {
		t.Fatalf("len(Layers) = %d, want 2: %+v", len(db.Layers()), db.Layers())
	}
	if db.Layers()[0].Width != 0.14 {
		t.Errorf("met1.Width = %v, want 0.14", db.Layers()[0].Width)
	}
	if db.Layers()[1].Type != TypeRouting {
		t.Errorf("met2.Type = %q, want ROUTING", db.Layers()[1].Type)
	}
	if level, err := db.RoutingLevel("met2"); err != nil || level != 2 {
		t.Errorf("RoutingLevel(met2) = %d, %v, want 2", level, err)
	}
}

func TestParseLEFErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no routing layers", "LAYER nwell\n  TYPE MASTERSLICE ;\nEND nwell\n"},
		{"unterminated layer", "LAYER met1\n  TYPE ROUTING ;\n"},
		{"layer without name", "LAYER\n  TYPE ROUTING ;\nEND\n"},
		{"macro without name", "MACRO\nEND\n"},
		{"unterminated macro", "LAYER m1\n TYPE ROUTING ;\nEND m1\nMACRO buf_1\nEND wrong\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLEF(strings.NewReader(tt.input), "bad"); err == nil {
				t.Error("ParseLEF should error")
			}
		})
	}
}

func TestLoadLEF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sky130.tech.lef")
	if err := os.WriteFile(path, []byte(sampleLEF), 0644); err != nil {
		t.Fatal(err)
	}

	db, err := LoadLEF(path)
	if err != nil {
		t.Fatalf("LoadLEF error: %v", err)
	}
	if db.Name() != "sky130.tech" {
		t.Errorf("Name = %q, want sky130.tech", db.Name())
	}

	if _, err := LoadLEF(filepath.Join(t.TempDir(), "missing.lef")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("LoadLEF missing file error = %v, want FILE_NOT_FOUND", err)
	}
}
