package recordcodec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/obs/metrics"
	"github.com/cuemby/objstore/pkg/tuple"
)

// chunkSize bounds the size of each blob chunk key's value.
const chunkSize = 32 * 1024

// sentinel is the item-slot payload for an externally stored record,
// referencing its blob id and the number of chunks to reassemble.
type sentinel struct {
	BlobID     uuid.UUID `json:"blob_id"`
	ChunkCount int       `json:"chunk_count"`
}

// Plan is the outcome of preparing a record for storage: either it fits
// inline in the item slot, or its (compressed) payload must be split across
// the caller's blob subspace.
type Plan struct {
	// ItemValue is what goes at the record's item-slot key regardless of
	// whether the payload was externalized.
	ItemValue []byte
	External  bool
	blobID    uuid.UUID
	chunks    [][]byte
}

// BuildPlan serializes record and decides whether it fits inline under
// kv.MaxValueSize or must be externalized into chunks. The threshold is
// checked against the compressed size (§3: "≈90 KiB after compression"), so
// a large but highly-compressible record still stays inline.
func BuildPlan(record any) (Plan, error) {
	raw, err := Serialize(record)
	if err != nil {
		return Plan{}, err
	}

	compressed, err := compress(raw)
	if err != nil {
		return Plan{}, err
	}
	if len(compressed)+1 <= kv.MaxValueSize {
		return Plan{ItemValue: append([]byte{byte(tagInline)}, raw...)}, nil
	}

	blobID := uuid.New()
	chunks := splitChunks(compressed, chunkSize)
	s := sentinel{BlobID: blobID, ChunkCount: len(chunks)}
	sentinelBytes, err := json.Marshal(s)
	if err != nil {
		return Plan{}, fmt.Errorf("recordcodec: marshal sentinel: %w", err)
	}
	return Plan{
		ItemValue: append([]byte{byte(tagExternal)}, sentinelBytes...),
		External:  true,
		blobID:    blobID,
		chunks:    chunks,
	}, nil
}

// transaction is the minimal capability recordcodec needs from a
// kv.Transaction to stage and read blob chunks. Any kv.Transaction value
// satisfies it structurally.
type transaction interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(key, value []byte)
	Clear(key []byte)
}

// WriteChunks stages the external chunk writes for plan under blobSubspace
// (the caller's S/b/ prefix). No-op when plan didn't externalize.
func WriteChunks(tx transaction, blobSubspace []byte, plan Plan) error {
	if !plan.External {
		return nil
	}
	for i, chunk := range plan.chunks {
		key, err := chunkKey(blobSubspace, plan.blobID, i)
		if err != nil {
			return err
		}
		tx.Set(key, chunk)
		metrics.BlobChunksWrittenTotal.Inc()
	}
	return nil
}

// Load decodes an item-slot value, transparently reassembling and
// decompressing external chunks via tx when the value references a blob.
func Load(ctx context.Context, tx transaction, blobSubspace []byte, itemValue []byte) ([]byte, error) {
	if len(itemValue) == 0 {
		return nil, fmt.Errorf("recordcodec: empty item value")
	}
	tag := itemTag(itemValue[0])
	body := itemValue[1:]
	switch tag {
	case tagInline:
		return body, nil
	case tagExternal:
		var s sentinel
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, fmt.Errorf("recordcodec: unmarshal sentinel: %w", err)
		}
		return reassemble(ctx, tx, blobSubspace, s)
	default:
		return nil, fmt.Errorf("recordcodec: unknown item tag 0x%02x", byte(tag))
	}
}

// ClearChunks stages deletion of every chunk referenced by itemValue's
// sentinel, if any. Callers must invoke this in the same transaction that
// clears the record's item slot so a record with external storage never
// leaves orphaned chunks behind.
func ClearChunks(tx transaction, blobSubspace []byte, itemValue []byte) error {
	if len(itemValue) == 0 {
		return nil
	}
	if itemTag(itemValue[0]) != tagExternal {
		return nil
	}
	var s sentinel
	if err := json.Unmarshal(itemValue[1:], &s); err != nil {
		return fmt.Errorf("recordcodec: unmarshal sentinel: %w", err)
	}
	for i := 0; i < s.ChunkCount; i++ {
		key, err := chunkKey(blobSubspace, s.BlobID, i)
		if err != nil {
			return err
		}
		tx.Clear(key)
	}
	return nil
}

func reassemble(ctx context.Context, tx transaction, blobSubspace []byte, s sentinel) ([]byte, error) {
	var compressed []byte
	for i := 0; i < s.ChunkCount; i++ {
		key, err := chunkKey(blobSubspace, s.BlobID, i)
		if err != nil {
			return nil, err
		}
		chunk, err := tx.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return nil, fmt.Errorf("recordcodec: missing chunk %d for blob %s", i, s.BlobID)
		}
		compressed = append(compressed, chunk...)
	}
	return decompress(compressed)
}

func chunkKey(blobSubspace []byte, blobID uuid.UUID, index int) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{blobID, int64(index)})
	if err != nil {
		return nil, fmt.Errorf("recordcodec: encoding chunk key: %w", err)
	}
	return append(append([]byte{}, blobSubspace...), enc...), nil
}

func splitChunks(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, append([]byte(nil), data[:n]...))
		data = data[n:]
	}
	return chunks
}

func compress(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("recordcodec: zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decompress(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("recordcodec: zstd reader: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}
