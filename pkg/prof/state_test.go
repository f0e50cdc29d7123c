package prof

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallThresholdDropsShortCalls(t *testing.T) {
	s := NewState(20 * time.Microsecond)
	applyAll(t, s,
		MapperCallInfo{Proc: 1, Op: 1, CallKind: "map_task", Start: 0, Stop: 5},
		MapperCallInfo{Proc: 1, Op: 2, CallKind: "map_task", Start: 0, Stop: 50},
		RuntimeCallInfo{Proc: 1, CallKind: "get_event", Start: 0, Stop: 19},
		RuntimeCallInfo{Proc: 1, CallKind: "get_event", Start: 0, Stop: 20},
	)

	require.NotNil(t, s.Procs[1])
	assert.Len(t, s.Procs[1].Entries, 2)
}

func TestCallThresholdZeroKeepsEverything(t *testing.T) {
	s := NewState(0)
	applyAll(t, s,
		MapperCallInfo{Proc: 1, Op: 1, CallKind: "map_task", Start: 0, Stop: 1},
		RuntimeCallInfo{Proc: 1, CallKind: "get_event", Start: 3, Stop: 3},
	)
	assert.Len(t, s.Procs[1].Entries, 2)
}

func TestTimestampSub(t *testing.T) {
	assert.Equal(t, 5*time.Microsecond, Timestamp(15).Sub(10))
	// Out-of-order timestamps clamp to zero.
	assert.Equal(t, time.Duration(0), Timestamp(10).Sub(15))
}

func TestNodeIDs(t *testing.T) {
	assert.Equal(t, NodeID(0), ProcID(1).Node())
	assert.Equal(t, NodeID(2), ProcID(node2Proc).Node())
	assert.Equal(t, NodeID(2), MemID(node2Proc|7).Node())
}

func TestParseNodeSet(t *testing.T) {
	set, err := ParseNodeSet("0, 2,5")
	require.NoError(t, err)
	assert.True(t, set.Contains(0))
	assert.False(t, set.Contains(1))
	assert.True(t, set.Contains(2))
	assert.True(t, set.Contains(5))

	set, err = ParseNodeSet("")
	require.NoError(t, err)
	assert.Nil(t, set)
	// Nil set admits everything.
	assert.True(t, set.Contains(17))

	_, err = ParseNodeSet("0,x")
	require.Error(t, err)
}
