package dolt

import (
	"encoding/json"
	"time"

	"github.com/opencausal/latticegraphd/internal/types"
)

// provenanceColumns is the persisted parallel-array encoding of a
// provenance set (spec §6, §9): provenance_keys is "source|trigger"
// strings used for membership checks, provenance_events is the full
// records in the same order.
type provenanceColumns struct {
	keys   []byte
	events []byte
}

func encodeProvenance(set []types.Provenance) (provenanceColumns, error) {
	keys := make([]string, len(set))
	for i, p := range set {
		keys[i] = p.Key()
	}
	keysJSON, err := json.Marshal(keys)
	if err != nil {
		return provenanceColumns{}, err
	}
	eventsJSON, err := json.Marshal(set)
	if err != nil {
		return provenanceColumns{}, err
	}
	return provenanceColumns{keys: keysJSON, events: eventsJSON}, nil
}

func decodeProvenance(eventsJSON []byte) ([]types.Provenance, error) {
	if len(eventsJSON) == 0 {
		return nil, nil
	}
	var set []types.Provenance
	if err := json.Unmarshal(eventsJSON, &set); err != nil {
		return nil, err
	}
	return set, nil
}

func containsKey(keysJSON []byte, key string) (bool, error) {
	if len(keysJSON) == 0 {
		return false, nil
	}
	var keys []string
	if err := json.Unmarshal(keysJSON, &keys); err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

func nowUTC() time.Time { return time.Now().UTC() }
