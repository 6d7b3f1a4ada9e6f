package pattern

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ShadowDevAt42/ftplace-script/schemas"
)

// FormatError is a malformed pattern file. It is fatal at startup; the
// scheduling loop never starts with a bad pattern.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("pattern %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

var patternSchema = jsonschema.MustCompileString("pattern.schema.json", schemas.Pattern)

type filePixel struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Color uint8 `json:"color"`
}

type patternFile struct {
	Pattern []filePixel `json:"pattern"`
}

// LoadFile reads a pattern file, validates it against the pattern schema,
// and anchors it at (originX, originY) with the given tier.
func LoadFile(path string, originX, originY int, tier Tier) (Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Target{}, &FormatError{Path: path, Err: err}
	}

	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return Target{}, &FormatError{Path: path, Err: err}
	}
	if err := patternSchema.Validate(raw); err != nil {
		return Target{}, &FormatError{Path: path, Err: err}
	}

	var pf patternFile
	if err := json.Unmarshal(b, &pf); err != nil {
		return Target{}, &FormatError{Path: path, Err: err}
	}

	pixels := make([]PixelSpec, 0, len(pf.Pattern))
	for _, p := range pf.Pattern {
		pixels = append(pixels, PixelSpec{DX: p.X, DY: p.Y, Color: p.Color})
	}
	return Target{
		Tier: tier,
		Pattern: Pattern{
			OriginX: originX,
			OriginY: originY,
			Pixels:  pixels,
		},
	}, nil
}
