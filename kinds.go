package nostr

const (
	KindProfileMetadata         int = 0
	KindTextNote                int = 1
	KindRelayListMetadata       int = 10002
	KindBlossomServerList       int = 10063
	KindBlobAuthorization       int = 24242
	KindNostrConnect            int = 24133
	KindApplicationSpecificData int = 30078
)
