package hyperscan

import (
	"runtime"

	"yarascan/scan"

	hs "github.com/flier/gohs/hyperscan"
)

type ruleSet struct {
	sigs []*signature

	// patternSig maps a Hyperscan pattern ID to the index of the signature it belongs to.
	patternSig []int

	db hs.BlockDatabase

	// Pre-allocated memory space that Hyperscan needs during evaluation. A scratch space can only be
	// used by one scan at a time, so concurrent scans take clones from the free list.
	scratch   *hs.Scratch
	scratches chan *hs.Scratch
}

func (r *ruleSet) init(db hs.BlockDatabase) (err error) {
	r.scratch, err = hs.NewScratch(db)
	if err != nil {
		return
	}

	r.db = db
	r.scratches = make(chan *hs.Scratch, runtime.NumCPU())
	return
}

func (r *ruleSet) Scan(data []byte, onMatch scan.MatchHandler) (err error) {
	if r.db == nil || len(data) == 0 {
		return
	}

	s, err := r.getScratch()
	if err != nil {
		return
	}
	defer r.putScratch(s)

	matched := make([]bool, len(r.sigs))
	handler := func(id uint, from, to uint64, flags uint, context interface{}) error {
		matched[r.patternSig[id]] = true
		return nil
	}

	err = r.db.Scan(data, s, handler, nil)

	// Report in file order, once per signature, even if the scan was cut short.
	for i, m := range matched {
		if m {
			onMatch(r.sigs[i])
		}
	}

	return
}

func (r *ruleSet) getScratch() (*hs.Scratch, error) {
	select {
	case s := <-r.scratches:
		return s, nil
	default:
		return r.scratch.Clone()
	}
}

func (r *ruleSet) putScratch(s *hs.Scratch) {
	select {
	case r.scratches <- s:
	default:
		s.Free()
	}
}

func (r *ruleSet) Close() {
	if r.db == nil {
		return
	}

	close(r.scratches)
	for s := range r.scratches {
		s.Free()
	}
	r.scratch.Free()
	r.db.Close()
	r.db = nil
}
