package machine

import (
	"errors"
	"sort"
)

// ErrNoPLLConfig is returned when no PLL setting reaches the requested
// frequency within tolerance.
var ErrNoPLLConfig = errors.New("machine: no PLL configuration for frequency")

// PLLSearch controls FindPLLConfig.
type PLLSearch struct {
	// Largest acceptable distance from the target, in Hz.
	ToleranceHz uint32

	// Prefer the lowest VCO frequency (less power) over the highest (less
	// jitter) when several settings are equally close.
	LowVCO bool

	// Smallest reference frequency the phase detector accepts. Zero means
	// 5 MHz.
	MinRefHz uint32

	// Maximum number of candidates returned. Zero means all of them.
	Limit int
}

// PLLCandidate is one PLL setting found by FindPLLConfig.
type PLLCandidate struct {
	Config  PLLConfig
	FBDiv   uint32
	OutHz   uint32
	ErrorHz uint32
}

// FindPLLConfig lists PLL settings that derive targetHz from a crystal of
// xoscHz, best first. Every candidate passes PLLConfig.Validate.
func FindPLLConfig(xoscHz, targetHz uint32, opts PLLSearch) ([]PLLCandidate, error) {
	minRef := opts.MinRefHz
	if minRef == 0 {
		minRef = 5 * MHz
	}
	var found []PLLCandidate
	for refdiv := uint32(1); refdiv <= PLLRefDivMax; refdiv++ {
		ref := xoscHz / refdiv
		if ref < minRef {
			break
		}
		for fbdiv := uint32(PLLFBDivMin); fbdiv <= PLLFBDivMax; fbdiv++ {
			vco := uint64(ref) * uint64(fbdiv)
			if vco < PLLVCOMinHz || vco > PLLVCOMaxHz {
				continue
			}
			for pd2 := uint32(1); pd2 <= PLLPostDivMax; pd2++ {
				for pd1 := pd2; pd1 <= PLLPostDivMax; pd1++ {
					out := vco / uint64(pd1*pd2)
					diff := absDiff(out, uint64(targetHz))
					if diff > uint64(opts.ToleranceHz) {
						continue
					}
					cfg := PLLConfig{RefDiv: refdiv, VCOFreqHz: uint32(vco), PostDiv1: pd1, PostDiv2: pd2}
					if cfg.Validate(xoscHz) != nil {
						continue
					}
					found = append(found, PLLCandidate{
						Config:  cfg,
						FBDiv:   fbdiv,
						OutHz:   uint32(out),
						ErrorHz: uint32(diff),
					})
				}
			}
		}
	}
	if len(found) == 0 {
		return nil, ErrNoPLLConfig
	}
	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.ErrorHz != b.ErrorHz {
			return a.ErrorHz < b.ErrorHz
		}
		if a.Config.VCOFreqHz != b.Config.VCOFreqHz {
			if opts.LowVCO {
				return a.Config.VCOFreqHz < b.Config.VCOFreqHz
			}
			return a.Config.VCOFreqHz > b.Config.VCOFreqHz
		}
		// Fewer reference divisions keep the phase detector fast.
		return a.Config.RefDiv < b.Config.RefDiv
	})
	if opts.Limit > 0 && len(found) > opts.Limit {
		found = found[:opts.Limit]
	}
	return found, nil
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
