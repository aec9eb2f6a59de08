package upload

import (
	"encoding/binary"

	"github.com/novabloom/capsulecore/pkg/ids"
)

func sessionKey(id ids.SessionId) []byte {
	return append([]byte("s:"), []byte(id)...)
}

func idemKey(capsuleId ids.CapsuleId, ownerKey, idem string) []byte {
	return []byte("i:" + string(capsuleId) + ":" + ownerKey + ":" + idem)
}

func chunkPrefix(id ids.SessionId) []byte {
	return append([]byte(id), ':')
}

func chunkKey(id ids.SessionId, idx uint32) []byte {
	key := make([]byte, 0, len(id)+1+4)
	key = append(key, chunkPrefix(id)...)
	key = binary.BigEndian.AppendUint32(key, idx)
	return key
}
