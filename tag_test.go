package nostr

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagHelpers(t *testing.T) {
	tags := Tags{
		Tag{"x"},
		Tag{"p", "abcdef", "wss://x.com"},
		Tag{"p", "123456", "wss://y.com"},
		Tag{"e", "eeeeee"},
		Tag{"e", "ffffff"},
	}

	assert.Nil(t, tags.Find("x"), "Find shouldn't have returned a tag with a single item")
	assert.NotNil(t, tags.FindWithValue("p", "abcdef"), "failed to get with existing prefix")
	assert.Equal(t, "abcdef", tags.Find("p")[1])
	assert.Equal(t, 2, len(slices.Collect(tags.FindAll("e"))), "failed to get all")
	assert.True(t, tags.ContainsAny("p", []string{"zzz", "123456"}))
	assert.False(t, tags.ContainsAny("e", []string{"abcdef"}))
}

func TestTagsClone(t *testing.T) {
	original := Tags{
		{"a", "1"},
		{"b", "2"},
	}

	clone := original.Clone()
	require.Equal(t, original, clone)

	clone[0][1] = "updated"
	clone = append(clone, Tag{"c", "3"})
	require.Len(t, original, 2)
	require.Equal(t, "1", original[0][1])
}
