package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCPUSetRoundTrip(t *testing.T) {
	b := FromBits(16, 0, 1, 2, 5, 8)
	cs := b.CPUSet()
	require.Equal(t, "0-2,5,8", cs.String())

	back := FromCPUSet(cs, 16)
	require.True(t, b.Equal(back))
}

func TestFromCPUSetDropsOutOfRangeMembers(t *testing.T) {
	b := FromBits(16, 0, 1, 2, 5, 8)
	cs := b.CPUSet()
	back := FromCPUSet(cs, 4)
	require.Equal(t, []int{0, 1, 2}, back.Members())
}
