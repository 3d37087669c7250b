package blobstore

import (
	"bytes"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
	chunker "github.com/ipfs/boxo/chunker"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz/lzma"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

const (
	prefixBlob  = "blob/"
	prefixChunk = "chunk/"
)

// BlobStore keeps opaque item payloads content-addressed by their item
// fingerprint. Payloads are split with content-defined chunking and each
// chunk is compressed at rest; identical payloads referenced by many cells
// are stored once.
type BlobStore struct {
	log *logrus.Logger
}

// blobManifest lists the chunk hashes that reassemble one payload.
type blobManifest struct {
	Chunks []types.Hash
	Size   int
}

func NewBlobStore(log *logrus.Logger) *BlobStore {
	if log == nil {
		log = logrus.New()
	}
	return &BlobStore{log: log}
}

func blobKey(hash types.Hash) string {
	return prefixBlob + hash.String()
}

func chunkKey(hash types.Hash) string {
	return prefixChunk + hash.String()
}

// Put stores a payload under its fingerprint. Storing an already-known
// payload is a no-op.
func (b *BlobStore) Put(txn *badger.Txn, hash types.Hash, payload []byte) error {
	_, err := txn.Get([]byte(blobKey(hash)))
	if err == nil {
		return nil
	}
	if err != badger.ErrKeyNotFound {
		return err
	}

	manifest := blobManifest{Size: len(payload)}
	bz := chunker.NewBuzhash(bytes.NewReader(payload))
	for {
		chunk, err := bz.NextBytes()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error chunking payload: %w", err)
		}

		chunkHash := types.Hash(sha512.Sum512(chunk))
		manifest.Chunks = append(manifest.Chunks, chunkHash)

		_, err = txn.Get([]byte(chunkKey(chunkHash)))
		if err == nil {
			continue
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		compressed, err := compress(chunk)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(chunkKey(chunkHash)), compressed); err != nil {
			return err
		}
	}

	data, err := encodeManifest(manifest)
	if err != nil {
		return err
	}
	return txn.Set([]byte(blobKey(hash)), data)
}

// Get reassembles the payload for a fingerprint and verifies it
// byte-for-byte against the fingerprint it was stored under.
func (b *BlobStore) Get(txn *badger.Txn, hash types.Hash) ([]byte, error) {
	item, err := txn.Get([]byte(blobKey(hash)))
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("blob %s not found", hash.String())
	}
	if err != nil {
		return nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	manifest, err := decodeManifest(data)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, manifest.Size)
	for _, chunkHash := range manifest.Chunks {
		chunkItem, err := txn.Get([]byte(chunkKey(chunkHash)))
		if err != nil {
			return nil, fmt.Errorf("error reading chunk %s: %w", chunkHash.String(), err)
		}
		compressed, err := chunkItem.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		chunk, err := decompress(compressed)
		if err != nil {
			return nil, err
		}
		payload = append(payload, chunk...)
	}

	if types.HashPayload(payload) != hash {
		return nil, fmt.Errorf("blob %s failed verification after reassembly", hash.String())
	}
	return payload, nil
}

// Delete drops the manifest of a payload. Chunks stay behind: they are
// content-addressed and may back other payloads; unreferenced chunks are
// reclaimed by the store's Clean pass, not here.
func (b *BlobStore) Delete(txn *badger.Txn, hash types.Hash) error {
	err := txn.Delete([]byte(blobKey(hash)))
	if err == badger.ErrKeyNotFound {
		return nil
	}
	return err
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("error creating lzma writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("error compressing chunk: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("error closing lzma writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error creating lzma reader: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error decompressing chunk: %w", err)
	}
	return out, nil
}
