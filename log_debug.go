//go:build debug

package nostr

import (
	"fmt"
)

func debugLogf(str string, args ...any) {
	for i, v := range args {
		switch v := v.(type) {
		case []byte:
			args[i] = string(v)
		case fmt.Stringer:
			args[i] = v.String()
		}
	}

	DebugLogger.Printf(str, args...)
}
