package nostr

import (
	"iter"
	"slices"
)

type Tag []string

type Tags []Tag

// Find returns the first tag with the given key/tagName that also has one value (i.e. at least 2 items)
func (tags Tags) Find(key string) Tag {
	for _, v := range tags {
		if len(v) >= 2 && v[0] == key {
			return v
		}
	}
	return nil
}

// FindAll yields all the tags the given key/tagName that also have one value (i.e. at least 2 items)
func (tags Tags) FindAll(key string) iter.Seq[Tag] {
	return func(yield func(Tag) bool) {
		for _, v := range tags {
			if len(v) >= 2 && v[0] == key {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// FindWithValue is like Find, but also checks if the value (the second item) matches
func (tags Tags) FindWithValue(key, value string) Tag {
	for _, v := range tags {
		if len(v) >= 2 && v[1] == value && v[0] == key {
			return v
		}
	}
	return nil
}

// ContainsAny checks if any of the tags with the given key has a value in values.
func (tags Tags) ContainsAny(key string, values []string) bool {
	for _, v := range tags {
		if len(v) < 2 || v[0] != key {
			continue
		}
		if slices.Contains(values, v[1]) {
			return true
		}
	}
	return false
}

// Clone creates a new array with these tags inside.
func (tags Tags) Clone() Tags {
	newArr := make(Tags, len(tags))
	for i, tag := range tags {
		newArr[i] = slices.Clone(tag)
	}
	return newArr
}

func (tag Tag) marshalTo(dst []byte) []byte {
	dst = append(dst, '[')
	for i, s := range tag {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = escapeString(dst, s)
	}
	dst = append(dst, ']')
	return dst
}

// marshalTo appends the JSON encoded byte of Tags as [][]string to dst.
// String escaping is as described in RFC8259.
func (tags Tags) marshalTo(dst []byte) []byte {
	dst = append(dst, '[')
	for i, tag := range tags {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = tag.marshalTo(dst)
	}
	dst = append(dst, ']')
	return dst
}
