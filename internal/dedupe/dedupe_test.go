package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"declink/internal/record"
)

func recs(hashes ...string) []*record.Record {
	out := make([]*record.Record, len(hashes))
	for i, h := range hashes {
		out[i] = &record.Record{Line: i + 1, Hash: h}
	}
	return out
}

func lines(rs []*record.Record) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Line
	}
	return out
}

func TestSorted(t *testing.T) {
	in := recs("c", "a", "b", "a", "c", "c")
	out := Sorted(in)
	assert.Equal(t, []int{2, 3, 1}, lines(out))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, lines(in), "input order must be kept")
}

func TestFirstSeen(t *testing.T) {
	out := FirstSeen(recs("c", "a", "b", "a", "c"))
	assert.Equal(t, []int{1, 2, 3}, lines(out))
}

func TestProjection(t *testing.T) {
	in := recs("x", "y", "x", "z", "y", "y", "w")
	for _, s := range []Strategy{StrategySorted, StrategyFirstSeen} {
		out := Apply(s, in)
		kept := map[string]bool{}
		for _, r := range out {
			require.False(t, kept[r.Hash], "%s kept %s twice", s, r.Hash)
			kept[r.Hash] = true
			assert.Contains(t, in, r)
		}
		for _, r := range in {
			assert.True(t, kept[r.Hash], "%s lost fingerprint %s", s, r.Hash)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategySorted, s)

	s, err = ParseStrategy("first_seen")
	require.NoError(t, err)
	assert.Equal(t, StrategyFirstSeen, s)

	_, err = ParseStrategy("random")
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	assert.Empty(t, Sorted(nil))
	assert.Empty(t, FirstSeen(nil))
}
