package nip19

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultsync/go-nostr"
)

func TestEncodeNpub(t *testing.T) {
	npub, err := EncodePublicKey("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d")
	assert.NoError(t, err)
	assert.Equal(t, "npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6", npub, "produced an unexpected npub string")
}

func TestEncodeNsec(t *testing.T) {
	nsec, err := EncodePrivateKey("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d")
	assert.NoError(t, err)
	assert.Equal(t, "nsec180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsgyumg0", nsec, "produced an unexpected nsec string")
}

func TestDecodeNpub(t *testing.T) {
	prefix, pubkey, err := Decode("npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6")
	assert.NoError(t, err)
	assert.Equal(t, "npub", prefix, "returned invalid prefix")
	assert.Equal(t, "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d", pubkey.(string), "returned wrong pubkey")
}

func TestFailDecodeBadChecksumNpub(t *testing.T) {
	_, _, err := Decode("npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w4")
	assert.Error(t, err)
}

func TestDecodeNprofile(t *testing.T) {
	t.Run("first", func(t *testing.T) {
		prefix, data, err := Decode("nprofile1qqsrhuxx8l9ex335q7he0f09aej04zpazpl0ne2cgukyawd24mayt8gpp4mhxue69uhhytnc9e3k7mgpz4mhxue69uhkg6nzv9ejuumpv34kytnrdaksjlyr9p")
		assert.NoError(t, err)
		assert.Equal(t, "nprofile", prefix)

		pp, ok := data.(nostr.ProfilePointer)
		assert.True(t, ok, "value returned of wrong type")
		assert.Equal(t, "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d", pp.PublicKey)
		assert.Equal(t, 2, len(pp.Relays), "decoded wrong number of relays")

		assert.Equal(t, "wss://r.x.com", pp.Relays[0], "decoded relay URLs wrongly")
		assert.Equal(t, "wss://djbas.sadkb.com", pp.Relays[1], "decoded relay URLs wrongly")
	})

	t.Run("second", func(t *testing.T) {
		prefix, data, err := Decode("nprofile1qqsw3dy8cpumpanud9dwd3xz254y0uu2m739x0x9jf4a9sgzjshaedcpr4mhxue69uhkummnw3ez6ur4vgh8wetvd3hhyer9wghxuet5qyw8wumn8ghj7mn0wd68yttjv4kxz7fww4h8get5dpezumt9qyvhwumn8ghj7un9d3shjetj9enxjct5dfskvtnrdakstl69hg")
		assert.NoError(t, err)
		assert.Equal(t, "nprofile", prefix)

		pp, ok := data.(nostr.ProfilePointer)
		assert.True(t, ok, "value returned of wrong type")
		assert.Equal(t, "e8b487c079b0f67c695ae6c4c2552a47f38adfa2533cc5926bd2c102942fdcb7", pp.PublicKey)
		assert.Equal(t, 3, len(pp.Relays), "decoded wrong number of relays")

		assert.Equal(t, "wss://nostr-pub.wellorder.net", pp.Relays[0], "decoded relay URLs wrongly")
		assert.Equal(t, "wss://nostr-relay.untethr.me", pp.Relays[1], "decoded relay URLs wrongly")
	})
}

func TestEncodeNprofile(t *testing.T) {
	nprofile, err := EncodeProfile("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d", []string{
		"wss://r.x.com",
		"wss://djbas.sadkb.com",
	})

	assert.NoError(t, err)
	assert.Equal(t,
		"nprofile1qqsrhuxx8l9ex335q7he0f09aej04zpazpl0ne2cgukyawd24mayt8gpp4mhxue69uhhytnc9e3k7mgpz4mhxue69uhkg6nzv9ejuumpv34kytnrdaksjlyr9p",
		nprofile, "produced an unexpected nprofile string: %s", nprofile)
}

func TestDecodeNsecAndNote(t *testing.T) {
	prefix, sk, err := Decode("nsec180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsgyumg0")
	require.NoError(t, err)
	assert.Equal(t, "nsec", prefix)
	assert.Equal(t, "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d", sk)

	note, err := EncodeNote("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d")
	require.NoError(t, err)
	prefix, id, err := Decode(note)
	require.NoError(t, err)
	assert.Equal(t, "note", prefix)
	assert.Equal(t, "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d", id)
}

func TestDecodeErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"npub",
		"npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w4",
		"nsec1qqqsyqcyq5rqwzqfpg9scrgwpugpzysnzs23v9ccrydpk8qarc0jqh5hlw7",
		"lnbc1qqqsyqcyq5rqwzqfpg9scrgwpugpzysnzs23v9ccrydpk8qarc0jqg7ls9y",
	} {
		_, _, err := Decode(input)
		assert.ErrorIs(t, err, nostr.ErrDecode, input)
	}
}

func TestEncodeInvalidHex(t *testing.T) {
	_, err := EncodePublicKey("zz")
	assert.Error(t, err)
	_, err = EncodePrivateKey("abcd")
	assert.Error(t, err)
	_, err = EncodeProfile("abcd", nil)
	assert.Error(t, err)
}

func TestEncodePointer(t *testing.T) {
	pk := "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"

	code, err := EncodePointer(nostr.ProfilePointer{PublicKey: pk})
	require.NoError(t, err)
	assert.Equal(t, "npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6", code)

	code, err = EncodePointer(nostr.ProfilePointer{PublicKey: pk, Relays: []string{"wss://r.x.com", "wss://djbas.sadkb.com"}})
	require.NoError(t, err)
	_, data, err := Decode(code)
	require.NoError(t, err)
	assert.Equal(t, nostr.ProfilePointer{PublicKey: pk, Relays: []string{"wss://r.x.com", "wss://djbas.sadkb.com"}}, data)
}

func TestTranslatePublicKey(t *testing.T) {
	pk := "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	assert.Equal(t, pk, TranslatePublicKey("npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6"))
	assert.Equal(t, pk, TranslatePublicKey("nprofile1qqsrhuxx8l9ex335q7he0f09aej04zpazpl0ne2cgukyawd24mayt8gpp4mhxue69uhhytnc9e3k7mgpz4mhxue69uhkg6nzv9ejuumpv34kytnrdaksjlyr9p"))
	assert.Equal(t, pk, TranslatePublicKey(pk))
}
