package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimaryHostTable(t *testing.T) {
	t.Parallel()

	l := NewLocator(MaxHost)
	tests := []struct {
		volume int64
		want   int
	}{
		{0, 1},
		{143, 1},
		{144, 2},
		{320, 3},
		{720, 5},
		{1116, 8},
		{5000, 27},
		{6126, 31},
		{6437, 31},
		{6438, 32},
		{7000, 32},
		{1 << 40, 32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.Primary(tt.volume), "volume %d", tt.volume)
	}
}

func TestPrimaryIsMonotonic(t *testing.T) {
	t.Parallel()

	l := NewLocator(MaxHost)
	prev := l.Primary(0)
	for v := int64(1); v <= 7000; v++ {
		cur := l.Primary(v)
		require.GreaterOrEqual(t, cur, prev, "volume %d", v)
		prev = cur
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	l := NewLocator(MaxHost)
	assert.Equal(t, []int{3, 2, 1, 4}, l.Candidates(320))
	assert.Equal(t, []int{9, 1, 2}, l.Candidates(-1))
	assert.Equal(t, []int{1, 2, 3}, l.Candidates(0))
	assert.Equal(t, []int{32}, l.Candidates(1<<20))
	assert.Equal(t, []int{27, 32, 31, 30}, l.Candidates(5000))
}

func TestCandidatesAreDistinctAndInRange(t *testing.T) {
	t.Parallel()

	l := NewLocator(MaxHost)
	for v := int64(0); v <= 8000; v += 37 {
		hosts := l.Candidates(v)
		require.NotEmpty(t, hosts)
		require.LessOrEqual(t, len(hosts), 6)
		seen := map[int]bool{}
		for _, h := range hosts {
			assert.GreaterOrEqual(t, h, MinHost)
			assert.LessOrEqual(t, h, MaxHost)
			assert.False(t, seen[h], "duplicate host %d for volume %d", h, v)
			seen[h] = true
		}
		assert.Equal(t, l.Primary(v), hosts[0])
	}
}

func TestLocatorRespectsLowerMaxHost(t *testing.T) {
	t.Parallel()

	l := NewLocator(10)
	assert.Equal(t, 10, l.Primary(7000))
	for _, h := range l.Candidates(7000) {
		assert.LessOrEqual(t, h, 10)
	}
}

func TestVolumeAndPart(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(2583), Volume(258368289))
	assert.Equal(t, int64(258368), Part(258368289))
	assert.Equal(t, int64(0), Volume(100))
}
