package nostr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

func (eff Filters) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawByte('[')
	for i, f := range eff {
		if i > 0 {
			w.RawByte(',')
		}
		f.MarshalEasyJSON(&w)
	}
	w.RawByte(']')
	return w.BuildBytes()
}

func (ef Filter) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	ef.MarshalEasyJSON(&w)
	return w.BuildBytes()
}

func (ef Filter) MarshalEasyJSON(w *jwriter.Writer) {
	first := true
	field := func(name string) {
		if !first {
			w.RawByte(',')
		}
		first = false
		w.String(name)
		w.RawByte(':')
	}
	stringList := func(name string, values []string) {
		field(name)
		w.RawByte('[')
		for i, v := range values {
			if i > 0 {
				w.RawByte(',')
			}
			w.String(v)
		}
		w.RawByte(']')
	}

	w.RawByte('{')
	if ef.IDs != nil {
		stringList("ids", ef.IDs)
	}
	if ef.Kinds != nil {
		field("kinds")
		w.RawByte('[')
		for i, k := range ef.Kinds {
			if i > 0 {
				w.RawByte(',')
			}
			w.Int(k)
		}
		w.RawByte(']')
	}
	if ef.Authors != nil {
		stringList("authors", ef.Authors)
	}

	// sorted so the output is stable
	tagNames := make([]string, 0, len(ef.Tags))
	for name := range ef.Tags {
		tagNames = append(tagNames, name)
	}
	slices.Sort(tagNames)
	for _, name := range tagNames {
		stringList("#"+name, ef.Tags[name])
	}

	if ef.Since != nil {
		field("since")
		w.Int64(int64(*ef.Since))
	}
	if ef.Until != nil {
		field("until")
		w.Int64(int64(*ef.Until))
	}
	if ef.Limit != 0 || ef.LimitZero {
		field("limit")
		w.Int(ef.Limit)
	}
	w.RawByte('}')
}

func (ef *Filter) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid filter json")
	}
	return ef.fromResult(gjson.ParseBytes(data))
}

func (ef *Filter) fromResult(r gjson.Result) error {
	if !r.IsObject() {
		return fmt.Errorf("filter is not an object")
	}

	*ef = Filter{}
	var err error
	stringList := func(v gjson.Result) []string {
		list := make([]string, 0, len(v.Array()))
		v.ForEach(func(_, item gjson.Result) bool {
			list = append(list, item.Str)
			return true
		})
		return list
	}

	r.ForEach(func(key, value gjson.Result) bool {
		switch {
		case key.Str == "ids":
			ef.IDs = stringList(value)
		case key.Str == "authors":
			ef.Authors = stringList(value)
		case key.Str == "kinds":
			ef.Kinds = make([]int, 0, len(value.Array()))
			value.ForEach(func(_, item gjson.Result) bool {
				ef.Kinds = append(ef.Kinds, int(item.Int()))
				return true
			})
		case key.Str == "since":
			since := Timestamp(value.Int())
			ef.Since = &since
		case key.Str == "until":
			until := Timestamp(value.Int())
			ef.Until = &until
		case key.Str == "limit":
			ef.Limit = int(value.Int())
			ef.LimitZero = ef.Limit == 0
		case strings.HasPrefix(key.Str, "#") && len(key.Str) > 1:
			if !value.IsArray() {
				err = fmt.Errorf("invalid tag filter %s", key.Str)
				return false
			}
			if ef.Tags == nil {
				ef.Tags = make(TagMap)
			}
			ef.Tags[key.Str[1:]] = stringList(value)
		}
		return true
	})
	return err
}
