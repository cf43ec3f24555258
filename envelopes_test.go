package nostr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseMessage(t *testing.T) {
	testCases := []struct {
		Name             string
		Message          string
		ExpectedEnvelope Envelope
	}{
		{
			Name:             "nil",
			Message:          "",
			ExpectedEnvelope: nil,
		},
		{
			Name:             "invalid string",
			Message:          "invalid input",
			ExpectedEnvelope: nil,
		},
		{
			Name:             "invalid string with a comma",
			Message:          "invalid, input",
			ExpectedEnvelope: nil,
		},
		{
			Name:             "unknown label",
			Message:          `["AUTH","c45b2b06ad92e28a"]`,
			ExpectedEnvelope: nil,
		},
		{
			Name:             "EVENT envelope with subscription id",
			Message:          `["EVENT","_",{"kind":1,"id":"dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962","pubkey":"3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d","created_at":1644271588,"tags":[],"content":"now that https://blueskyweb.org/blog/2-7-2022-overview was announced we can stop working on nostr?","sig":"230e9d8f0ddaf7eb70b5f7741ccfa37e87a455c9a469282e3464e2052d3192cd63a167e196e381ef9d7e69e9ea43af2443b839974dc85d8aaab9efe1d9296524"}]`,
			ExpectedEnvelope: &EventEnvelope{SubscriptionID: ptr("_"), Event: Event{Kind: 1, ID: "dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962", PubKey: "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d", CreatedAt: 1644271588, Tags: Tags{}, Content: "now that https://blueskyweb.org/blog/2-7-2022-overview was announced we can stop working on nostr?", Sig: "230e9d8f0ddaf7eb70b5f7741ccfa37e87a455c9a469282e3464e2052d3192cd63a167e196e381ef9d7e69e9ea43af2443b839974dc85d8aaab9efe1d9296524"}},
		},
		{
			Name:             "EVENT envelope without subscription id",
			Message:          `["EVENT",{"kind":1,"id":"dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962","pubkey":"3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d","created_at":1644271588,"tags":[],"content":"now that https://blueskyweb.org/blog/2-7-2022-overview was announced we can stop working on nostr?","sig":"230e9d8f0ddaf7eb70b5f7741ccfa37e87a455c9a469282e3464e2052d3192cd63a167e196e381ef9d7e69e9ea43af2443b839974dc85d8aaab9efe1d9296524"}]`,
			ExpectedEnvelope: &EventEnvelope{Event: Event{Kind: 1, ID: "dc90c95f09947507c1044e8f48bcf6350aa6bff1507dd4acfc755b9239b5c962", PubKey: "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d", CreatedAt: 1644271588, Tags: Tags{}, Content: "now that https://blueskyweb.org/blog/2-7-2022-overview was announced we can stop working on nostr?", Sig: "230e9d8f0ddaf7eb70b5f7741ccfa37e87a455c9a469282e3464e2052d3192cd63a167e196e381ef9d7e69e9ea43af2443b839974dc85d8aaab9efe1d9296524"}},
		},
		{
			Name:             "EVENT envelope with tags",
			Message:          `["EVENT","x",{"kind":24133,"id":"9e662bdd7d8abc40b5b15ee1ff5e9320efc87e9274d8d440c58e6eed2dddfbe2","pubkey":"373ebe3d45ec91977296a178d9f19f326c70631d2a1b0bbba5c5ecc2eb53b9e7","created_at":1644844224,"tags":[["p","3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"]],"content":"AgAB","sig":"811355d3484d375df47581cb5d66bed05002c2978894098304f20b595e571b7e01b2efd906c5650080ffe49cf1c62b36715698e9d88b9e8be43029a2f3fa66be"}]`,
			ExpectedEnvelope: &EventEnvelope{SubscriptionID: ptr("x"), Event: Event{Kind: 24133, ID: "9e662bdd7d8abc40b5b15ee1ff5e9320efc87e9274d8d440c58e6eed2dddfbe2", PubKey: "373ebe3d45ec91977296a178d9f19f326c70631d2a1b0bbba5c5ecc2eb53b9e7", CreatedAt: 1644844224, Tags: Tags{Tag{"p", "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"}}, Content: "AgAB", Sig: "811355d3484d375df47581cb5d66bed05002c2978894098304f20b595e571b7e01b2efd906c5650080ffe49cf1c62b36715698e9d88b9e8be43029a2f3fa66be"}},
		},
		{
			Name:             "EVENT envelope with broken event",
			Message:          `["EVENT","x",{"kind":1,"tags":"nope"}]`,
			ExpectedEnvelope: nil,
		},
		{
			Name:             "NOTICE envelope",
			Message:          `["NOTICE","kjasbdlasvdluiasvd\"kjasbdksab\\d"]`,
			ExpectedEnvelope: ptr(NoticeEnvelope("kjasbdlasvdluiasvd\"kjasbdksab\\d")),
		},
		{
			Name:             "EOSE envelope",
			Message:          `["EOSE","kjasbdlasvdluiasvd\"kjasbdksab\\d"]`,
			ExpectedEnvelope: ptr(EOSEEnvelope("kjasbdlasvdluiasvd\"kjasbdksab\\d")),
		},
		{
			Name:             "OK envelope success",
			Message:          `["OK","3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefaaaaa",true,""]`,
			ExpectedEnvelope: &OKEnvelope{EventID: "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefaaaaa", OK: true, Reason: ""},
		},
		{
			Name:             "OK envelope failure",
			Message:          `["OK","3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefaaaaa",false,"error: could not connect to the database"]`,
			ExpectedEnvelope: &OKEnvelope{EventID: "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefaaaaa", OK: false, Reason: "error: could not connect to the database"},
		},
		{
			Name:             "CLOSED envelope with underscore",
			Message:          `["CLOSED","_","error: something went wrong"]`,
			ExpectedEnvelope: &ClosedEnvelope{SubscriptionID: "_", Reason: "error: something went wrong"},
		},
		{
			Name:             "CLOSED envelope with colon",
			Message:          `["CLOSED",":1","auth-required: take a selfie and send it to the CIA"]`,
			ExpectedEnvelope: &ClosedEnvelope{SubscriptionID: ":1", Reason: "auth-required: take a selfie and send it to the CIA"},
		},
		{
			Name:             "REQ envelope",
			Message:          `["REQ","million", {"kinds": [1]}, {"kinds": [30023 ], "#d": ["buteko",    "batuke"]}]`,
			ExpectedEnvelope: &ReqEnvelope{SubscriptionID: "million", Filters: Filters{{Kinds: []int{1}}, {Kinds: []int{30023}, Tags: TagMap{"d": []string{"buteko", "batuke"}}}}},
		},
		{
			Name:             "CLOSE envelope",
			Message:          `["CLOSE","subscription123"]`,
			ExpectedEnvelope: ptr(CloseEnvelope("subscription123")),
		},
		{
			Name:             "REQ from jumble",
			Message:          `["REQ","sub:1",{"kinds":[1,6],"limit":100}]`,
			ExpectedEnvelope: &ReqEnvelope{SubscriptionID: "sub:1", Filters: Filters{{Kinds: []int{1, 6}, Limit: 100}}},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			envelope := ParseMessage([]byte(testCase.Message))
			if testCase.ExpectedEnvelope == nil {
				require.Nil(t, envelope, "expected nil but got %v", envelope)
				return
			}

			require.NotNil(t, envelope, "expected non-nil envelope but got nil")
			require.Equal(t, testCase.ExpectedEnvelope, envelope)
		})
	}
}

func TestEnvelopesRoundTrip(t *testing.T) {
	envelopes := []Envelope{
		&EventEnvelope{SubscriptionID: ptr("1:"), Event: Event{Kind: 1, CreatedAt: 12, Tags: Tags{{"p", "abc"}}, Content: "<b>\"x\"</b>"}},
		&ReqEnvelope{SubscriptionID: "2:handshake", Filters: Filters{{Kinds: []int{KindNostrConnect}, Tags: TagMap{"p": []string{"abc"}}}}},
		ptr(CloseEnvelope("2:handshake")),
		&ClosedEnvelope{SubscriptionID: "3:", Reason: "blocked: no"},
		ptr(EOSEEnvelope("3:")),
		&OKEnvelope{EventID: "abc", OK: false, Reason: "invalid: bad signature"},
		ptr(NoticeEnvelope("hi")),
	}

	for _, env := range envelopes {
		t.Run(env.Label(), func(t *testing.T) {
			b, err := env.MarshalJSON()
			require.NoError(t, err)
			require.Equal(t, env, ParseMessage(b))
		})
	}
}
