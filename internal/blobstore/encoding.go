package blobstore

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

func encodeManifest(m blobManifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("error encoding blob manifest: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeManifest(data []byte) (blobManifest, error) {
	var m blobManifest
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return blobManifest{}, fmt.Errorf("error decoding blob manifest: %w", err)
	}
	return m, nil
}
