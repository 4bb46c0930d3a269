// Package shard guesses which numbered basket host serves the static card
// JSON of a product.
package shard

import "sort"

// Bounds of the basket host range.
const (
	MinHost = 1
	MaxHost = 32
)

// volumeThresholds are the upper volume bounds of hosts 1..31; anything above
// the last entry lives on MaxHost.
var volumeThresholds = []int64{
	143, 287, 431, 719, 1007, 1061, 1115, 1169, 1313, 1601,
	1655, 1919, 2045, 2189, 2405, 2621, 2837, 3053, 3269, 3485,
	3701, 3917, 4133, 4349, 4565, 4877, 5189, 5501, 5813, 6125,
	6437,
}

var negativeVolumeHosts = []int{9, 1, 2}

// Volume returns the volume bucket of a product id.
func Volume(id int64) int64 { return id / 100000 }

// Part returns the part bucket of a product id.
func Part(id int64) int64 { return id / 1000 }

// Locator produces ordered basket host candidates.
type Locator struct {
	maxHost int
}

// NewLocator builds a Locator; maxHost <= 0 or above MaxHost uses MaxHost.
func NewLocator(maxHost int) *Locator {
	if maxHost <= 0 || maxHost > MaxHost {
		maxHost = MaxHost
	}
	return &Locator{maxHost: maxHost}
}

// Primary returns the threshold-table host for a non-negative volume.
func (l *Locator) Primary(volume int64) int {
	pos := sort.Search(len(volumeThresholds), func(i int) bool {
		return volumeThresholds[i] >= volume
	})
	return min(pos+1, l.maxHost)
}

// Estimate is the arithmetic host guess used to widen the candidate list.
func Estimate(volume int64) int64 {
	return max(1, (volume+159)/160)
}

// Candidates returns 1 to 6 distinct hosts to try in order.
func (l *Locator) Candidates(volume int64) []int {
	if volume < 0 {
		return append([]int(nil), negativeVolumeHosts...)
	}
	base := Estimate(volume)
	raw := []int64{int64(l.Primary(volume)), base, base - 1, base + 1, base - 2, base + 2}

	out := make([]int, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for _, h := range raw {
		if h < MinHost || h > int64(l.maxHost) {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, int(h))
	}
	return out
}
