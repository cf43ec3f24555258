package nostr

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterUnmarshal(t *testing.T) {
	raw := `{"ids": ["abc"],"#e":["zzz"],"#something":["nothing","bab"],"since":1644254609,"limit":0}`
	var f Filter
	err := json.Unmarshal([]byte(raw), &f)
	require.NoError(t, err)

	assert.Equal(t, "2022-02-07", f.Since.Time().UTC().Format("2006-01-02"))
	assert.Nil(t, f.Until)
	assert.Len(t, f.Tags, 2)
	assert.True(t, slices.Contains(f.Tags["something"], "bab"))
	assert.True(t, f.LimitZero)
}

func TestFilterMarshal(t *testing.T) {
	until := Timestamp(12345678)
	filterj, err := json.Marshal(Filter{
		Kinds: []int{1, 2, 4},
		Tags:  TagMap{"fruit": {"banana", "mango"}, "animal": {"cat"}},
		Until: &until,
	})
	require.NoError(t, err)

	expected := `{"kinds":[1,2,4],"#animal":["cat"],"#fruit":["banana","mango"],"until":12345678}`
	assert.JSONEq(t, expected, string(filterj))
}

func TestFilterMatching(t *testing.T) {
	assert.False(t, Filter{Kinds: []int{4, 5}}.Matches(&Event{Kind: 6}))
	assert.True(t, Filter{Kinds: []int{4, 5}}.Matches(&Event{Kind: 4}))
	assert.False(t, Filter{}.Matches(nil))

	assert.True(t, Filter{
		Kinds: []int{4, 5},
		Tags: TagMap{
			"p": {"ooo"},
		},
		IDs: []string{"abc123"},
	}.Matches(&Event{
		Kind: 4,
		Tags: Tags{{"p", "ooo", ",x,x,"}, {"m", "yywyw", "xxx"}},
		ID:   "abc123",
	}), "failed to match event by kind+tags+id")

	since := Timestamp(100)
	f := Filter{Kinds: []int{KindNostrConnect}, Since: &since, Tags: TagMap{"p": {"client"}}}
	assert.False(t, f.Matches(&Event{Kind: KindNostrConnect, CreatedAt: 99, Tags: Tags{{"p", "client"}}}))
	assert.True(t, f.Matches(&Event{Kind: KindNostrConnect, CreatedAt: 100, Tags: Tags{{"p", "client"}}}))
	assert.False(t, f.Matches(&Event{Kind: KindNostrConnect, CreatedAt: 100, Tags: Tags{{"p", "other"}}}))
}

func TestFilterClone(t *testing.T) {
	since := Now()
	original := Filter{Kinds: []int{1}, Tags: TagMap{"p": {"a"}}, Since: &since}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone.Tags["p"][0] = "b"
	*clone.Since = 0
	clone.Kinds[0] = 2

	assert.Equal(t, "a", original.Tags["p"][0])
	assert.Equal(t, since, *original.Since)
	assert.Equal(t, 1, original.Kinds[0])
}
