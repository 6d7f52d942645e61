package query

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/cuemby/objstore/pkg/readversion"
)

// Cursor is a resumable, batch_size-bounded iteration over a Query's
// results (§4.J step 6). Continuation tokens are an opaque, base64-safe
// encoding of the number of results emitted so far; a resumed cursor re-runs
// the query and skips that many matches.
type Cursor struct {
	exec       *Executor
	cache      *readversion.Cache
	query      Query
	lastOffset int
	done       bool
}

// NewCursor builds a Cursor over q. continuation, if non-empty, resumes a
// prior cursor produced by a previous Next call; pass "" to start fresh.
func NewCursor(exec *Executor, cache *readversion.Cache, q Query, continuation string) (*Cursor, error) {
	c := &Cursor{exec: exec, cache: cache, query: q}
	if continuation == "" {
		return c, nil
	}
	offset, err := decodeContinuation(continuation)
	if err != nil {
		return nil, err
	}
	c.lastOffset = offset
	return c, nil
}

// Next returns up to batchSize further results and an opaque continuation
// token for the following call; an empty token means the cursor is
// exhausted.
func (c *Cursor) Next(ctx context.Context, batchSize int) ([]any, string, error) {
	if c.done {
		return nil, "", nil
	}

	batch := c.query
	batch.Offset = c.lastOffset
	batch.Limit = batchSize

	results, err := c.exec.Run(ctx, c.cache, batch)
	if err != nil {
		return nil, "", err
	}

	c.lastOffset += len(results)
	if len(results) < batchSize {
		c.done = true
		return results, "", nil
	}
	return results, encodeContinuation(c.lastOffset), nil
}

func encodeContinuation(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(fmt.Sprintf("%d", offset)))
}

func decodeContinuation(token string) (int, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("query: decoding continuation token: %w", err)
	}
	var offset int
	if _, err := fmt.Sscanf(string(raw), "%d", &offset); err != nil {
		return 0, fmt.Errorf("query: parsing continuation token: %w", err)
	}
	return offset, nil
}
