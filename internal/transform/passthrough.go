package transform

// Passthrough archives the fetched document unchanged.
type Passthrough struct{}

// Name identifies the transform in config and events.
func (Passthrough) Name() string { return "passthrough" }

// Transform returns a copy of the input.
func (Passthrough) Transform(input []byte) ([]byte, error) {
	return append([]byte(nil), input...), nil
}
