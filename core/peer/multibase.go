package peer

import "github.com/multiformats/go-multibase"

func multibaseDecode(s string) (multibase.Encoding, []byte, error) {
	return multibase.Decode(s)
}
