package l5fusion

import (
	"fmt"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// Fuser combines passes over one track.
type Fuser interface {
	Fuse(passes []RevolutionDecode) (*TrackFusionResult, error)
}

// Voter is the majority-vote Fuser.
type Voter struct {
	cfg Config
}

// NewVoter validates cfg and returns a Voter.
func NewVoter(cfg Config) (*Voter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Voter{cfg: cfg}, nil
}

// dropPenaltyScale sets how quickly dropped transitions erode quality.
const dropPenaltyScale = 200

// Fuse votes the passes bit by bit. The reference pass is the first one
// with a sync, else the first with bits; every pass is read from its own
// sync offset. Ties go to the reference pass. Fewer than MinPasses passes
// with bits yields ErrInsufficientPasses and a zero result.
func (v *Voter) Fuse(passes []RevolutionDecode) (*TrackFusionResult, error) {
	if len(passes) == 0 {
		return nil, flux.InvalidArgf("no passes to fuse")
	}
	if len(passes) > v.cfg.MaxPasses {
		passes = passes[:v.cfg.MaxPasses]
	}

	var used []*RevolutionDecode
	ref, refIndex := -1, -1
	for i := range passes {
		p := &passes[i]
		if p.Stream == nil || p.Stream.Len() == 0 {
			continue
		}
		used = append(used, p)
		if ref < 0 && p.HasSync {
			ref, refIndex = len(used)-1, i
		}
		if refIndex < 0 {
			refIndex = i
		}
	}
	res := &TrackFusionResult{ReferencePass: -1, Passes: len(used), RPM: rpmStats(passes)}
	if len(used) < v.cfg.MinPasses {
		return res, fmt.Errorf("%d of %d passes have bits, need %d: %w", len(used), len(passes), v.cfg.MinPasses, flux.ErrInsufficientPasses)
	}
	if ref < 0 {
		ref = 0
	}
	res.ReferencePass = refIndex

	length := v.cfg.MaxVotedBits
	for _, p := range used {
		avail := p.Stream.Len() - p.offset()
		if avail < 0 {
			avail = 0
		}
		if avail < length {
			length = avail
		}
		res.Dropped += p.Dropped()
	}

	refPass := used[ref]
	refOff := refPass.offset()
	n := len(used)
	weakEnabled := n >= v.cfg.WeakRevolutions

	res.Bits = make([]uint8, length)
	res.Confidence = make([]float64, length)
	res.CellNs = make([]float64, length)
	for b := 0; b < length; b++ {
		ones := 0
		for _, p := range used {
			ones += int(p.Stream.Bits[p.offset()+b])
		}
		var bit uint8
		switch {
		case 2*ones > n:
			bit = 1
		case 2*ones == n:
			bit = refPass.Stream.Bits[refOff+b]
		}
		agree := n - ones
		if bit == 1 {
			agree = ones
		}
		if agree == n {
			res.Unanimous++
		}

		var conf float64
		for _, p := range used {
			if p.Stream.Bits[p.offset()+b] == bit {
				conf += p.Stream.Confidence[p.offset()+b]
			}
		}
		res.Bits[b] = bit
		res.Confidence[b] = conf / float64(n)
		res.CellNs[b] = refPass.Stream.CellNs[refOff+b]

		if weakEnabled {
			p := float64(ones) / float64(n)
			if p*(1-p) > v.cfg.WeakVariance {
				res.WeakPositions = append(res.WeakPositions, b)
			}
		}
	}

	res.VotedLength = length
	res.Considered = length
	if length > 0 {
		penalty := float64(res.Dropped) / float64(res.Dropped+dropPenaltyScale)
		res.Quality = float64(res.Unanimous) / float64(length) * (1 - 0.5*penalty)
	}
	return res, nil
}
