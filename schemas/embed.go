// Package schemas carries the JSON schemas shipped with the repo so they
// can be compiled at runtime without a working directory dependency.
package schemas

import _ "embed"

//go:embed pattern.schema.json
var Pattern string
