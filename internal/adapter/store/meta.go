package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"sahayak/internal/domain"
)

// currentSchemaVersion is bumped on breaking storage format changes.
const currentSchemaVersion = 1

var keyMeta = []byte("index_meta")

// initMeta creates the buckets and binds a fresh collection to the
// configured embedding model. An existing collection keeps its stored
// identity; modelGuard compares the two on every operation.
func (s *BoltIndex) initMeta() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketDocs, bucketChunks, bucketDocChunks, bucketVectors} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}

		data := tx.Bucket(bucketMeta).Get(keyMeta)
		if data == nil {
			s.meta = domain.IndexMeta{
				SchemaVersion:  currentSchemaVersion,
				EmbeddingModel: s.opts.EmbeddingModel,
				Dimension:      s.opts.Dimension,
				UpdatedAt:      time.Now(),
			}
			return writeMeta(tx, s.meta)
		}

		var meta domain.IndexMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("corrupted index metadata: %w", err)
		}
		if meta.SchemaVersion > currentSchemaVersion {
			return fmt.Errorf("collection created by a newer version (schema v%d > v%d)",
				meta.SchemaVersion, currentSchemaVersion)
		}
		s.meta = meta
		return nil
	})
}

func writeMeta(tx *bbolt.Tx, meta domain.IndexMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keyMeta, data)
}

// validateCollection keeps collection names usable as file names.
func validateCollection(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is empty", domain.ErrInvalidConfiguration)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid collection name %q", domain.ErrInvalidConfiguration, name)
	}
	return nil
}
