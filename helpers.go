package nostr

import (
	"hash/maphash"
	"sync"
)

const maxLocks = 50

var (
	namedMutexPool = make([]sync.Mutex, maxLocks)
	lockSeed       = maphash.MakeSeed()
)

// namedLock locks a mutex picked by hashing name and returns the unlock function.
func namedLock(name string) (unlock func()) {
	idx := maphash.String(lockSeed, name) % maxLocks
	namedMutexPool[idx].Lock()
	return namedMutexPool[idx].Unlock
}

// escapeString appends s to dst as a JSON string, escaping it the way NIP-01 requires
// for the canonical event serialization.
func escapeString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		var esc string
		switch c {
		case '"':
			esc = `\"`
		case '\\':
			esc = `\\`
		case '\n':
			esc = `\n`
		case '\r':
			esc = `\r`
		case '\t':
			esc = `\t`
		case '\b':
			esc = `\b`
		case '\f':
			esc = `\f`
		default:
			if c >= 0x20 {
				continue
			}
		}

		dst = append(dst, s[start:i]...)
		if esc != "" {
			dst = append(dst, esc...)
		} else {
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		}
		start = i + 1
	}
	dst = append(dst, s[start:]...)
	dst = append(dst, '"')
	return dst
}

const hexDigits = "0123456789abcdef"
