package nostr

import (
	"fmt"

	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

func (evt Event) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	evt.MarshalEasyJSON(&w)
	return w.BuildBytes()
}

func (evt Event) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"kind":`)
	w.Int(evt.Kind)
	if evt.ID != "" {
		w.RawString(`,"id":`)
		w.String(evt.ID)
	}
	if evt.PubKey != "" {
		w.RawString(`,"pubkey":`)
		w.String(evt.PubKey)
	}
	w.RawString(`,"created_at":`)
	w.Int64(int64(evt.CreatedAt))
	w.RawString(`,"tags":`)
	w.RawByte('[')
	for i, tag := range evt.Tags {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawByte('[')
		for j, item := range tag {
			if j > 0 {
				w.RawByte(',')
			}
			w.String(item)
		}
		w.RawByte(']')
	}
	w.RawByte(']')
	w.RawString(`,"content":`)
	w.String(evt.Content)
	if evt.Sig != "" {
		w.RawString(`,"sig":`)
		w.String(evt.Sig)
	}
	w.RawByte('}')
}

func (evt *Event) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid event json")
	}
	return evt.fromResult(gjson.ParseBytes(data))
}

func (evt *Event) fromResult(r gjson.Result) error {
	if !r.IsObject() {
		return fmt.Errorf("event is not an object")
	}

	*evt = Event{}
	var err error
	r.ForEach(func(key, value gjson.Result) bool {
		switch key.Str {
		case "id":
			evt.ID = value.Str
		case "pubkey":
			evt.PubKey = value.Str
		case "created_at":
			evt.CreatedAt = Timestamp(value.Int())
		case "kind":
			evt.Kind = int(value.Int())
		case "tags":
			if !value.IsArray() {
				err = fmt.Errorf("invalid 'tags' field")
				return false
			}
			evt.Tags = make(Tags, 0, len(value.Array()))
			value.ForEach(func(_, t gjson.Result) bool {
				if !t.IsArray() {
					err = fmt.Errorf("invalid tag %s", t.Raw)
					return false
				}
				tag := make(Tag, 0, 3)
				t.ForEach(func(_, item gjson.Result) bool {
					tag = append(tag, item.Str)
					return true
				})
				evt.Tags = append(evt.Tags, tag)
				return true
			})
		case "content":
			evt.Content = value.Str
		case "sig":
			evt.Sig = value.Str
		}
		return err == nil
	})
	return err
}
