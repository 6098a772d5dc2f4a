package scan

// FragmentAligner decides which part of a payload chunk is handed to the engine.
type FragmentAligner interface {
	Align(data []byte, isFirstFragment bool) (region []byte, base int)
}

// NewPassthroughFragmentAligner creates an aligner that hands the whole chunk to the engine.
func NewPassthroughFragmentAligner() FragmentAligner {
	return passthroughAligner{}
}

// NewLegacyFragmentAligner creates an aligner that trims the leading bytes a previous call on
// the same stream already consumed, as libyara 1.x memory block scanning requires.
func NewLegacyFragmentAligner() FragmentAligner {
	return legacyAligner{}
}

type passthroughAligner struct{}

func (passthroughAligner) Align(data []byte, isFirstFragment bool) ([]byte, int) {
	return data, 0
}

type legacyAligner struct{}

func (legacyAligner) Align(data []byte, isFirstFragment bool) ([]byte, int) {
	switch {
	case isFirstFragment:
		return data, 0
	case len(data) == 0:
		return data, 0
	case len(data) == 1:
		return data[1:], 1
	}
	return data[2:], 2
}
