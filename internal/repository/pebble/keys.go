package pebble

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"msgtree/internal/domain/models"
)

// Key layout. All multi-part keys sort by (created_date, id) within their prefix.
//
//	m/<id>                    message JSON
//	c/<ts><id>                created_date index
//	t/<tree><ts><id>          tree index
//	p/<parent><ts><id>        children index
//	u/<id>                    user JSON
//	un/<auth_method>\x00<name> user id
const (
	prefixMessage  = "m/"
	prefixCreated  = "c/"
	prefixTree     = "t/"
	prefixParent   = "p/"
	prefixUser     = "u/"
	prefixUserName = "un/"
	keySchema      = "meta/schema"
)

const (
	idLen = 16
	tsLen = 8
)

// encodeTime maps a timestamp to 8 big-endian bytes that sort like the time itself.
// Times outside the int64 nanosecond range saturate to the first or last key.
func encodeTime(t time.Time) []byte {
	var buf [tsLen]byte
	binary.BigEndian.PutUint64(buf[:], uint64(models.ClampUnixNano(t))^(1<<63))
	return buf[:]
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func messageKey(id uuid.UUID) []byte {
	return concat([]byte(prefixMessage), id[:])
}

func createdKey(t time.Time, id uuid.UUID) []byte {
	return concat([]byte(prefixCreated), encodeTime(t), id[:])
}

func treeKey(tree uuid.UUID, t time.Time, id uuid.UUID) []byte {
	return concat([]byte(prefixTree), tree[:], encodeTime(t), id[:])
}

func treePrefix(tree uuid.UUID) []byte {
	return concat([]byte(prefixTree), tree[:])
}

func parentKey(parent uuid.UUID, t time.Time, id uuid.UUID) []byte {
	return concat([]byte(prefixParent), parent[:], encodeTime(t), id[:])
}

func parentPrefix(parent uuid.UUID) []byte {
	return concat([]byte(prefixParent), parent[:])
}

func userKey(id uuid.UUID) []byte {
	return concat([]byte(prefixUser), id[:])
}

func userNameKey(authMethod, username string) []byte {
	return concat([]byte(prefixUserName), []byte(authMethod), []byte{0}, []byte(username))
}

// trailingID extracts the id that ends every index key
func trailingID(key []byte) (uuid.UUID, bool) {
	if len(key) < idLen {
		return uuid.Nil, false
	}
	id, err := uuid.FromBytes(key[len(key)-idLen:])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// prefixUpperBound returns the smallest key greater than every key with the prefix
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
