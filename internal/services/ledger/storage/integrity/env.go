package integrity

import (
	"fmt"
	"os"
	"strings"
)

const (
	// EnvHMACKey holds a single signing key.
	EnvHMACKey = "EVENTLEDGER_EVENT_HMAC_KEY"
	// EnvHMACKeys holds "id=key,id=key" for rotation.
	EnvHMACKeys = "EVENTLEDGER_EVENT_HMAC_KEYS"
	// EnvHMACKeyID selects the active signing key.
	EnvHMACKeyID = "EVENTLEDGER_EVENT_HMAC_KEY_ID"

	defaultKeyID = "v1"
)

// KeyringFromEnv loads the HMAC keyring configuration from environment variables.
// It returns a nil keyring and no error when signing is not configured.
func KeyringFromEnv() (*Keyring, error) {
	return ParseKeyring(os.Getenv(EnvHMACKeys), os.Getenv(EnvHMACKey), os.Getenv(EnvHMACKeyID))
}

// ParseKeyring builds a keyring from the raw values of the three variables.
func ParseKeyring(keySpec, singleKey, keyID string) (*Keyring, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		keyID = defaultKeyID
	}

	keySpec = strings.TrimSpace(keySpec)
	if keySpec == "" {
		raw := strings.TrimSpace(singleKey)
		if raw == "" {
			return nil, nil
		}
		return NewKeyring(map[string][]byte{keyID: []byte(raw)}, keyID)
	}

	keys := make(map[string][]byte)
	for _, entry := range strings.Split(keySpec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		value = strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid %s entry", EnvHMACKeys)
		}
		if _, dup := keys[id]; dup {
			return nil, fmt.Errorf("duplicate %s entry for %q", EnvHMACKeys, id)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, keyID)
}
