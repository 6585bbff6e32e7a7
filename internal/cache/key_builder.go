package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BuildKey builds a Key from the encoded request payload, the model the
// caller asked for and the preferred API version.
//
// Identical payloads addressed to the same model and version always hash to
// the same key, so repeated requests inside the TTL window share one upstream
// call.
func BuildKey(payload []byte, modelID, apiVersion string) Key {
	modelID = strings.TrimSpace(modelID)
	apiVersion = strings.TrimSpace(apiVersion)

	normalized := "model:" + modelID + "|version:" + apiVersion + "|body:" + string(payload)

	sum := sha256.Sum256([]byte(normalized))

	return Key{
		ModelID:    modelID,
		APIVersion: apiVersion,
		Hash:       hex.EncodeToString(sum[:]),
	}
}
