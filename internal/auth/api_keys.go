package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"msgtree/internal/domain/models"
)

// APIKeyStore resolves static API keys configured as "key:client-uuid[:trusted]"
type APIKeyStore struct {
	entries []apiKeyEntry
}

type apiKeyEntry struct {
	key    string
	caller models.Caller
}

// ParseAPIKeys parses a comma separated list of key entries. An empty list yields an empty store.
func ParseAPIKeys(list string) (*APIKeyStore, error) {
	store := &APIKeyStore{}
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		parts := strings.Split(raw, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("api key entry %q: want key:client-uuid[:trusted]", redact(raw))
		}

		clientID, err := uuid.Parse(parts[1])
		if err != nil {
			return nil, fmt.Errorf("api key entry %q: invalid client id: %w", redact(raw), err)
		}

		trust := models.TrustDefault
		if len(parts) == 3 {
			switch parts[2] {
			case "trusted":
				trust = models.TrustElevated
			case "":
			default:
				return nil, fmt.Errorf("api key entry %q: unknown trust flag %q", redact(raw), parts[2])
			}
		}

		store.entries = append(store.entries, apiKeyEntry{
			key:    parts[0],
			caller: models.Caller{APIClientID: clientID, Name: "api-key:" + clientID.String(), Trust: trust},
		})
	}
	return store, nil
}

// Lookup compares against every configured key in constant time
func (s *APIKeyStore) Lookup(apiKey string) (models.Caller, bool) {
	var (
		found  models.Caller
		exists bool
	)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare([]byte(e.key), []byte(apiKey)) == 1 {
			found, exists = e.caller, true
		}
	}
	return found, exists
}

// Len returns the number of configured keys
func (s *APIKeyStore) Len() int {
	return len(s.entries)
}

func redact(entry string) string {
	if i := strings.Index(entry, ":"); i > 0 {
		return "***" + entry[i:]
	}
	return "***"
}
