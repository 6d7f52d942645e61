package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/txn"
	"github.com/cuemby/objstore/pkg/vector/flat"
	"github.com/cuemby/objstore/pkg/vector/hnsw"
)

var vectorCmd = &cobra.Command{
	Use:   "vector",
	Short: "Inspect the document type's embedding index",
}

// vectorSubspace mirrors the same private key-building other subspaces in
// this package own, scoping the vector index under the type's own
// directory rather than sharing space with the record or secondary indexes.
func vectorSubspace(typePrefix []byte) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"v", "embedding"})
	if err != nil {
		return nil, fmt.Errorf("objstore-admin: encoding vector subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), enc...), nil
}

var vectorStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report how many document embeddings are indexed, by structure",
	RunE: func(cmd *cobra.Command, args []string) error {
		structure, _ := cmd.Flags().GetString("structure")

		ctx := context.Background()
		c, err := openContainer(ctx, cmd)
		if err != nil {
			return fmt.Errorf("opening container: %w", err)
		}
		defer c.Close()

		prefix, err := c.ResolveDirectory(ctx, "document", nil)
		if err != nil {
			return err
		}
		subspace, err := vectorSubspace(prefix)
		if err != nil {
			return err
		}

		driver := c.Driver()

		var count int64
		switch structure {
		case "flat":
			idx := flat.NewIndex(subspace, documentVectorMetric, documentEmbeddingDim)
			err = driver.Run(ctx, nil, txn.Options{}, func(ctx context.Context, tx kv.Transaction) error {
				n, err := idx.Count(ctx, tx)
				count = int64(n)
				return err
			})
		case "hnsw":
			idx := hnsw.NewIndex(subspace, documentVectorMetric, documentEmbeddingDim, documentVectorConfig())
			err = driver.Run(ctx, nil, txn.Options{}, func(ctx context.Context, tx kv.Transaction) error {
				count, err = idx.NodeCount(ctx, tx)
				return err
			})
		default:
			return fmt.Errorf("--structure must be %q or %q", "flat", "hnsw")
		}
		if err != nil {
			return err
		}

		fmt.Printf("document embeddings indexed (%s): %d\n", structure, count)
		return nil
	},
}

func init() {
	vectorCmd.AddCommand(vectorStatsCmd)
	vectorStatsCmd.Flags().String("structure", "hnsw", "Index structure to report on (flat, hnsw)")
}
