// Package transform provides the pluggable document transforms. Every
// transform is a pure function from fetched bytes to output bytes so the
// pipeline can swap them without side effects.
package transform

import (
	"fmt"

	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
)

// New returns the transformer registered under the given name.
func New(name string) (filesure.Transformer, error) {
	switch name {
	case "", "passthrough":
		return Passthrough{}, nil
	case "htmltext":
		return HTMLText{}, nil
	default:
		return nil, fmt.Errorf("unknown transform %q", name)
	}
}
