package schema

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/obs/log"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/txn"
)

// versionKeySuffix is appended to the metadata directory's resolved prefix
// to form the schema-version key (§6: "<metadata-directory>/schema/version").
var versionKeySuffix = []byte("/schema/version")

// EnsureVersion persists r's declared version at metadataPrefix on first
// init, and on every subsequent init compares the stored version against
// r's declared version: a major-version mismatch is a backward-incompatible
// change and fails fatally (not retried); a minor/patch difference is
// additive and is allowed to proceed, updating the persisted value.
func EnsureVersion(ctx context.Context, driver *txn.Driver, metadataPrefix []byte, r *Registry) error {
	logger := log.WithComponent("schema")
	key := append(append([]byte{}, metadataPrefix...), versionKeySuffix...)

	return driver.Run(ctx, nil, txn.Options{Writable: true}, func(ctx context.Context, tx kv.Transaction) error {
		raw, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if raw == nil {
			return writeVersion(tx, key, r.version)
		}

		stored, err := decodeVersion(raw)
		if err != nil {
			return err
		}
		if stored.Major != r.version.Major {
			return fmt.Errorf("%w: stored %d.%d.%d, declared %d.%d.%d",
				ErrSchemaVersionIncompatible,
				stored.Major, stored.Minor, stored.Patch,
				r.version.Major, r.version.Minor, r.version.Patch)
		}
		if stored != r.version {
			logger.Info().
				Str("stored", fmt.Sprintf("%d.%d.%d", stored.Major, stored.Minor, stored.Patch)).
				Str("declared", fmt.Sprintf("%d.%d.%d", r.version.Major, r.version.Minor, r.version.Patch)).
				Msg("applying additive schema version change")
			return writeVersion(tx, key, r.version)
		}
		return nil
	})
}

func writeVersion(tx kv.Transaction, key []byte, v Version) error {
	enc, err := tuple.Encode(tuple.Tuple{int64(v.Major), int64(v.Minor), int64(v.Patch)})
	if err != nil {
		return fmt.Errorf("schema: encoding version: %w", err)
	}
	tx.Set(key, enc)
	return nil
}

func decodeVersion(raw []byte) (Version, error) {
	elements, err := tuple.Decode(raw)
	if err != nil {
		return Version{}, fmt.Errorf("schema: decoding version: %w", err)
	}
	if len(elements) != 3 {
		return Version{}, fmt.Errorf("schema: malformed version tuple (%d elements)", len(elements))
	}
	major, ok1 := elements[0].(int64)
	minor, ok2 := elements[1].(int64)
	patch, ok3 := elements[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return Version{}, fmt.Errorf("schema: malformed version tuple elements")
	}
	return Version{Major: int(major), Minor: int(minor), Patch: int(patch)}, nil
}
