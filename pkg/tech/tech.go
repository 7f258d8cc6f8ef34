// Package tech models the technology layer stack.
//
// The stack is loaded from a LEF technology file. Routing layers are indexed
// by routing level: the 1-based position of the layer among TYPE ROUTING
// layers in stack order. Tool commands take the numeric level in place of
// the symbolic layer name, so the core operation here is the name-to-level
// lookup.
package tech

import (
	"encoding/json"
	"strings"

	"github.com/rcxbench/rcxbench/pkg/errors"
)

// LayerType classifies a LEF layer.
type LayerType string

// Layer types that matter for the stack model. Anything else (IMPLANT,
// OVERLAP, ...) is kept verbatim.
const (
	TypeRouting     LayerType = "ROUTING"
	TypeCut         LayerType = "CUT"
	TypeMasterslice LayerType = "MASTERSLICE"
)

// Layer is one entry of the technology stack.
type Layer struct {
	Name      string
	Type      LayerType
	Direction string  // HORIZONTAL or VERTICAL (routing layers)
	Pitch     float64 // routing pitch in microns
	Width     float64 // default wire width in microns
	Thickness float64 // metal thickness in microns
	Height    float64 // z-level above substrate in microns
}

// Database is a parsed technology stack.
// Layers appear in file order, which LEF defines as stack order.
type Database struct {
	name   string
	layers []Layer
	levels map[string]int // routing layer name -> 1-based level
}

// newDatabase indexes the routing levels of a parsed layer list.
func newDatabase(name string, layers []Layer) *Database {
	db := &Database{
		name:   name,
		layers: layers,
		levels: make(map[string]int),
	}
	level := 0
	for _, l := range db.layers {
		if l.Type == TypeRouting {
			level++
			db.levels[strings.ToLower(l.Name)] = level
		}
	}
	return db
}

// Name returns the technology name (LEF BUSBITCHARS aside, LEF has no name
// statement; this is the source file's base name).
func (db *Database) Name() string {
	return db.name
}

// Layers returns every layer in stack order.
func (db *Database) Layers() []Layer {
	return db.layers
}

// RoutingLayers returns the TYPE ROUTING layers in stack order.
func (db *Database) RoutingLayers() []Layer {
	var out []Layer
	for _, l := range db.layers {
		if l.Type == TypeRouting {
			out = append(out, l)
		}
	}
	return out
}

// NumRoutingLevels returns the number of routing layers in the stack.
func (db *Database) NumRoutingLevels() int {
	return len(db.levels)
}

// RoutingLevel resolves a layer name to its 1-based routing level.
// The lookup is case-insensitive since LEF and flow configs disagree on
// casing more often than not.
func (db *Database) RoutingLevel(name string) (int, error) {
	if err := errors.ValidateLayerName(name); err != nil {
		return 0, err
	}
	level, ok := db.levels[strings.ToLower(name)]
	if !ok {
		return 0, errors.New(errors.ErrCodeLayerNotFound,
			"layer %s is not a routing layer in %s", name, db.name)
	}
	return level, nil
}

// jsonDatabase is the serialized form of a Database. The level index is
// derived from the layer list, so only name and layers travel.
type jsonDatabase struct {
	Name   string  `json:"name"`
	Layers []Layer `json:"layers"`
}

// MarshalJSON serializes the database so a parsed LEF can be cached.
func (db *Database) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonDatabase{Name: db.name, Layers: db.layers})
}

// UnmarshalJSON restores a database written with MarshalJSON, rebuilding
// the routing level index.
func (db *Database) UnmarshalJSON(data []byte) error {
	var j jsonDatabase
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*db = *newDatabase(j.Name, j.Layers)
	return nil
}

// LayerAt returns the routing layer for a 1-based level.
func (db *Database) LayerAt(level int) (Layer, error) {
	routing := db.RoutingLayers()
	if level < 1 || level > len(routing) {
		return Layer{}, errors.New(errors.ErrCodeLayerNotFound,
			"no routing layer at level %d (stack has %d)", level, len(routing))
	}
	return routing[level-1], nil
}
