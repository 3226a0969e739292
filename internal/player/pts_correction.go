package player

import (
	"math"

	"github.com/bluenviron/avplay/internal/av"
)

// ptsCorrection picks between reordered pts and dts, depending on which
// of them has been less often non-monotonic.
type ptsCorrection struct {
	faultyPTS int
	faultyDTS int
	lastPTS   int64
	lastDTS   int64
}

func (c *ptsCorrection) reset() {
	c.faultyPTS = 0
	c.faultyDTS = 0
	c.lastPTS = math.MinInt64
	c.lastDTS = math.MinInt64
}

func (c *ptsCorrection) guess(reorderedPTS int64, dts int64) int64 {
	if dts != av.NoPTS {
		if dts <= c.lastDTS {
			c.faultyDTS++
		}
		c.lastDTS = dts
	}

	if reorderedPTS != av.NoPTS {
		if reorderedPTS <= c.lastPTS {
			c.faultyPTS++
		}
		c.lastPTS = reorderedPTS
	}

	if (c.faultyPTS <= c.faultyDTS || dts == av.NoPTS) && reorderedPTS != av.NoPTS {
		return reorderedPTS
	}
	return dts
}
