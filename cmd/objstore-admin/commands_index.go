package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/objstore/pkg/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and maintain declared indexes",
}

func kindString(k index.Kind) string {
	if k == index.Unique {
		return "unique"
	}
	return "scalar"
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a type's declared indexes and their rollout state",
	RunE: func(cmd *cobra.Command, args []string) error {
		typeName, _ := cmd.Flags().GetString("type")
		if typeName == "" {
			return fmt.Errorf("--type is required")
		}

		ctx := context.Background()
		c, err := openContainer(ctx, cmd)
		if err != nil {
			return fmt.Errorf("opening container: %w", err)
		}
		defer c.Close()

		ts, err := c.StoreFor(ctx, typeName, nil)
		if err != nil {
			return err
		}
		if len(ts.Type.Indexes) == 0 {
			fmt.Printf("%s declares no indexes\n", typeName)
			return nil
		}
		fmt.Printf("%-20s %-8s %s\n", "INDEX", "KIND", "STATE")
		for _, desc := range ts.Type.Indexes {
			state, err := ts.IndexState(ctx, desc.Name)
			if err != nil {
				return err
			}
			fmt.Printf("%-20s %-8s %s\n", desc.Name, kindString(desc.Kind), state)
		}
		return nil
	},
}

var indexViolationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "List recorded uniqueness violations for a unique index",
	RunE: func(cmd *cobra.Command, args []string) error {
		typeName, _ := cmd.Flags().GetString("type")
		indexName, _ := cmd.Flags().GetString("index")
		if typeName == "" || indexName == "" {
			return fmt.Errorf("--type and --index are required")
		}

		ctx := context.Background()
		c, err := openContainer(ctx, cmd)
		if err != nil {
			return fmt.Errorf("opening container: %w", err)
		}
		defer c.Close()

		ts, err := c.StoreFor(ctx, typeName, nil)
		if err != nil {
			return err
		}
		violations, err := ts.Violations(ctx, indexName)
		if err != nil {
			return err
		}
		if len(violations) == 0 {
			fmt.Println("No recorded violations")
			return nil
		}
		for _, v := range violations {
			fmt.Printf("key=%v id=%v\n", v.DuplicateKey, v.ID)
		}
		return nil
	},
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Clear and recompute one index from a full scan of its type",
	RunE: func(cmd *cobra.Command, args []string) error {
		typeName, _ := cmd.Flags().GetString("type")
		indexName, _ := cmd.Flags().GetString("index")
		if typeName == "" || indexName == "" {
			return fmt.Errorf("--type and --index are required")
		}

		ctx := context.Background()
		c, err := openContainer(ctx, cmd)
		if err != nil {
			return fmt.Errorf("opening container: %w", err)
		}
		defer c.Close()

		ts, err := c.StoreFor(ctx, typeName, nil)
		if err != nil {
			return err
		}
		scanned, err := ts.RebuildIndex(ctx, indexName)
		if err != nil {
			return err
		}
		fmt.Printf("Rebuilt %s.%s from %d scanned records\n", typeName, indexName, scanned)
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexListCmd, indexViolationsCmd, indexRebuildCmd)

	indexListCmd.Flags().String("type", "", "Declared type name")
	indexViolationsCmd.Flags().String("type", "", "Declared type name")
	indexViolationsCmd.Flags().String("index", "", "Declared index name")
	indexRebuildCmd.Flags().String("type", "", "Declared type name")
	indexRebuildCmd.Flags().String("index", "", "Declared index name")
}
