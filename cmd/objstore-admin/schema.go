package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cuemby/objstore"
	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/index"
	"github.com/cuemby/objstore/pkg/schema"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/vector"
	"github.com/cuemby/objstore/pkg/vector/hnsw"
)

// document is the worked-example record type this CLI operates against.
type document struct {
	ID         string
	ExternalID string
	Title      string
	Embedding  []float64
}

// documentEmbeddingDim is the vector dimension documents are indexed under;
// a real deployment sizes this to its embedding model's output.
const documentEmbeddingDim = 8

func documentIndexes() []index.Descriptor {
	return []index.Descriptor{
		{
			Name: "by_external_id",
			Kind: index.Unique,
			Expr: func(record any) (tuple.Tuple, bool) {
				d := record.(*document)
				if d.ExternalID == "" {
					return nil, false
				}
				return tuple.Tuple{d.ExternalID}, true
			},
		},
		{
			Name: "by_title",
			Kind: index.Scalar,
			Expr: func(record any) (tuple.Tuple, bool) {
				d := record.(*document)
				if d.Title == "" {
					return nil, false
				}
				return tuple.Tuple{d.Title}, true
			},
		},
	}
}

func documentType() schema.TypeDescriptor {
	return schema.TypeDescriptor{
		Name:      "document",
		Directory: directory.Path{directory.Lit("documents")},
		IDOf: func(record any) (tuple.Tuple, error) {
			return tuple.Tuple{record.(*document).ID}, nil
		},
		Indexes: documentIndexes(),
		New:     func() any { return &document{} },
		Protocol: &schema.ProtocolMembership{
			Protocol: "content",
			TypeCode: 1,
		},
	}
}

// contentProtocol mirrors document's items into a shared directory distinct
// from "documents", demonstrating the polymorphic dual-write path (§4.K):
// a future second content type could share this directory's fetch-by-id.
func contentProtocol() schema.ProtocolDescriptor {
	return schema.ProtocolDescriptor{
		Name:      "content",
		Directory: directory.Path{directory.Lit("content"), directory.Lit("items")},
		TypeCodes: map[string]int{"document": 1},
	}
}

func declaredRegistry() ([]schema.TypeDescriptor, []schema.ProtocolDescriptor) {
	return []schema.TypeDescriptor{documentType()}, []schema.ProtocolDescriptor{contentProtocol()}
}

func documentVectorConfig() hnsw.Config {
	return hnsw.DefaultConfig()
}

// documentVectorMetric is the distance function documents' embeddings are
// compared under.
const documentVectorMetric = vector.Cosine

// openContainer builds a Container against the declared example schema,
// using the --data-dir flag inherited from the root command.
func openContainer(ctx context.Context, cmd *cobra.Command) (*objstore.Container, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	types, protocols := declaredRegistry()
	cfg := objstore.Config{
		DataDir:   filepath.Join(dataDir, "objstore.db"),
		Version:   schema.Version{Major: 1},
		Types:     types,
		Protocols: protocols,
	}
	return objstore.Open(ctx, cfg)
}
