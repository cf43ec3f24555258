package nostr

import (
	"bytes"
	"fmt"

	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

// Envelope is a message sent between a client and a relay, as described in NIP-01.
type Envelope interface {
	Label() string
	UnmarshalJSON([]byte) error
	MarshalJSON() ([]byte, error)
}

var (
	_ Envelope = (*EventEnvelope)(nil)
	_ Envelope = (*ReqEnvelope)(nil)
	_ Envelope = (*CloseEnvelope)(nil)
	_ Envelope = (*ClosedEnvelope)(nil)
	_ Envelope = (*EOSEEnvelope)(nil)
	_ Envelope = (*OKEnvelope)(nil)
	_ Envelope = (*NoticeEnvelope)(nil)
)

// ParseMessage decodes a raw relay message into the matching envelope, or returns nil
// if the label is unknown or the message is malformed.
func ParseMessage(message []byte) Envelope {
	firstComma := bytes.IndexByte(message, ',')
	if firstComma == -1 {
		return nil
	}
	label := message[0:firstComma]

	var v Envelope
	switch {
	case bytes.Contains(label, []byte("EVENT")):
		v = &EventEnvelope{}
	case bytes.Contains(label, []byte("REQ")):
		v = &ReqEnvelope{}
	case bytes.Contains(label, []byte("CLOSED")):
		v = &ClosedEnvelope{}
	case bytes.Contains(label, []byte("CLOSE")):
		x := CloseEnvelope("")
		v = &x
	case bytes.Contains(label, []byte("EOSE")):
		x := EOSEEnvelope("")
		v = &x
	case bytes.Contains(label, []byte("OK")):
		v = &OKEnvelope{}
	case bytes.Contains(label, []byte("NOTICE")):
		x := NoticeEnvelope("")
		v = &x
	default:
		return nil
	}

	if err := v.UnmarshalJSON(message); err != nil {
		return nil
	}
	return v
}

func parseArray(data []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json")
	}
	r := gjson.ParseBytes(data)
	if !r.IsArray() {
		return nil, fmt.Errorf("envelope is not an array")
	}
	return r.Array(), nil
}

type EventEnvelope struct {
	SubscriptionID *string
	Event
}

func (EventEnvelope) Label() string { return "EVENT" }

func (v *EventEnvelope) UnmarshalJSON(data []byte) error {
	arr, err := parseArray(data)
	if err != nil {
		return err
	}
	switch len(arr) {
	case 2:
		return v.Event.fromResult(arr[1])
	case 3:
		id := arr[1].Str
		v.SubscriptionID = &id
		return v.Event.fromResult(arr[2])
	default:
		return fmt.Errorf("failed to decode EVENT envelope")
	}
}

func (v EventEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["EVENT",`)
	if v.SubscriptionID != nil {
		w.String(*v.SubscriptionID)
		w.RawByte(',')
	}
	v.Event.MarshalEasyJSON(&w)
	w.RawByte(']')
	return w.BuildBytes()
}

type ReqEnvelope struct {
	SubscriptionID string
	Filters
}

func (ReqEnvelope) Label() string { return "REQ" }

func (v *ReqEnvelope) UnmarshalJSON(data []byte) error {
	arr, err := parseArray(data)
	if err != nil {
		return err
	}
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode REQ envelope: missing filters")
	}
	v.SubscriptionID = arr[1].Str
	v.Filters = make(Filters, len(arr)-2)
	for i := 2; i < len(arr); i++ {
		if err := v.Filters[i-2].fromResult(arr[i]); err != nil {
			return fmt.Errorf("%w -- on filter %d", err, i-2)
		}
	}
	return nil
}

func (v ReqEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["REQ",`)
	w.String(v.SubscriptionID)
	for _, filter := range v.Filters {
		w.RawByte(',')
		filter.MarshalEasyJSON(&w)
	}
	w.RawByte(']')
	return w.BuildBytes()
}

type CloseEnvelope string

func (CloseEnvelope) Label() string { return "CLOSE" }

func (v *CloseEnvelope) UnmarshalJSON(data []byte) error {
	arr, err := parseArray(data)
	if err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("failed to decode CLOSE envelope")
	}
	*v = CloseEnvelope(arr[1].Str)
	return nil
}

func (v CloseEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["CLOSE",`)
	w.String(string(v))
	w.RawByte(']')
	return w.BuildBytes()
}

type ClosedEnvelope struct {
	SubscriptionID string
	Reason         string
}

func (ClosedEnvelope) Label() string { return "CLOSED" }

func (v *ClosedEnvelope) UnmarshalJSON(data []byte) error {
	arr, err := parseArray(data)
	if err != nil {
		return err
	}
	switch len(arr) {
	case 3:
		*v = ClosedEnvelope{arr[1].Str, arr[2].Str}
		return nil
	case 2:
		*v = ClosedEnvelope{arr[1].Str, ""}
		return nil
	default:
		return fmt.Errorf("failed to decode CLOSED envelope")
	}
}

func (v ClosedEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["CLOSED",`)
	w.String(v.SubscriptionID)
	w.RawByte(',')
	w.String(v.Reason)
	w.RawByte(']')
	return w.BuildBytes()
}

type EOSEEnvelope string

func (EOSEEnvelope) Label() string { return "EOSE" }

func (v *EOSEEnvelope) UnmarshalJSON(data []byte) error {
	arr, err := parseArray(data)
	if err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("failed to decode EOSE envelope")
	}
	*v = EOSEEnvelope(arr[1].Str)
	return nil
}

func (v EOSEEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["EOSE",`)
	w.String(string(v))
	w.RawByte(']')
	return w.BuildBytes()
}

type OKEnvelope struct {
	EventID string
	OK      bool
	Reason  string
}

func (OKEnvelope) Label() string { return "OK" }

func (v *OKEnvelope) UnmarshalJSON(data []byte) error {
	arr, err := parseArray(data)
	if err != nil {
		return err
	}
	if len(arr) < 3 {
		return fmt.Errorf("failed to decode OK envelope: missing fields")
	}
	v.EventID = arr[1].Str
	v.OK = arr[2].Raw == "true"
	if len(arr) > 3 {
		v.Reason = arr[3].Str
	}
	return nil
}

func (v OKEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["OK",`)
	w.String(v.EventID)
	w.RawByte(',')
	w.Bool(v.OK)
	w.RawByte(',')
	w.String(v.Reason)
	w.RawByte(']')
	return w.BuildBytes()
}

type NoticeEnvelope string

func (NoticeEnvelope) Label() string { return "NOTICE" }

func (v *NoticeEnvelope) UnmarshalJSON(data []byte) error {
	arr, err := parseArray(data)
	if err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("failed to decode NOTICE envelope")
	}
	*v = NoticeEnvelope(arr[1].Str)
	return nil
}

func (v NoticeEnvelope) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	w.RawString(`["NOTICE",`)
	w.String(string(v))
	w.RawByte(']')
	return w.BuildBytes()
}
