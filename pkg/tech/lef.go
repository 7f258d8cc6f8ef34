package tech

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rcxbench/rcxbench/pkg/errors"
)

// Parser states for the LEF scanner. LEF is line-oriented enough that a
// small mode machine over whitespace tokens covers the technology subset
// (LAYER blocks); everything else is skipped block-wise.
const (
	modeIdle = iota
	modeUnits
	modeLayer
	modeSkipBlock
)

// LoadLEF parses the technology portion of a LEF file.
func LoadLEF(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot open LEF %s", path)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseLEF(f, name)
}

// ParseLEF parses LEF from a reader. The name becomes the database name.
func ParseLEF(r io.Reader, name string) (*Database, error) {
	var (
		layers  []Layer
		current Layer
		mode    = modeIdle
		skipEnd string
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
			continue
		}

		switch mode {
		case modeIdle:
			switch tokens[0] {
			case "UNITS":
				mode = modeUnits
			case "LAYER":
				if len(tokens) < 2 {
					return nil, errors.New(errors.ErrCodeInvalidTech, "LAYER statement without a name")
				}
				current = Layer{Name: tokens[1]}
				mode = modeLayer
			case "VIA", "VIARULE", "SITE", "MACRO", "NONDEFAULTRULE":
				if len(tokens) < 2 {
					return nil, errors.New(errors.ErrCodeInvalidTech, "%s statement without a name", tokens[0])
				}
				skipEnd = tokens[1]
				mode = modeSkipBlock
			case "SPACING", "PROPERTYDEFINITIONS":
				skipEnd = tokens[0]
				mode = modeSkipBlock
			}

		case modeUnits:
			if tokens[0] == "END" {
				mode = modeIdle
			}

		case modeLayer:
			switch tokens[0] {
			case "TYPE":
				if len(tokens) > 1 {
					current.Type = LayerType(strings.TrimSuffix(tokens[1], ";"))
				}
			case "DIRECTION":
				if len(tokens) > 1 {
					current.Direction = strings.TrimSuffix(tokens[1], ";")
				}
			case "PITCH":
				current.Pitch = parseLEFFloat(tokens)
			case "WIDTH":
				current.Width = parseLEFFloat(tokens)
			case "THICKNESS":
				current.Thickness = parseLEFFloat(tokens)
			case "HEIGHT":
				current.Height = parseLEFFloat(tokens)
			case "END":
				layers = append(layers, current)
				mode = modeIdle
			}

		case modeSkipBlock:
			// Skipped blocks nest (NONDEFAULTRULE layer rules, MACRO
			// pins), so only the END naming the block itself closes it.
			if tokens[0] == "END" && len(tokens) > 1 && strings.TrimSuffix(tokens[1], ";") == skipEnd {
				mode = modeIdle
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTech, err, "reading LEF %s", name)
	}

	if mode != modeIdle {
		return nil, errors.New(errors.ErrCodeInvalidTech, "unterminated block in LEF %s", name)
	}

	db := newDatabase(name, layers)
	if db.NumRoutingLevels() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidTech, "LEF %s defines no routing layers", name)
	}
	return db, nil
}

// parseLEFFloat reads the numeric argument of a single-value LEF property.
// Malformed numbers are treated as absent: several open PDK LEFs carry
// vendor extensions in these fields.
func parseLEFFloat(tokens []string) float64 {
	if len(tokens) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(tokens[1], ";"), 64)
	if err != nil {
		return 0
	}
	return v
}
