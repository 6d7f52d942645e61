package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect the declared schema",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the declared version, types, and per-type index states",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		c, err := openContainer(ctx, cmd)
		if err != nil {
			return fmt.Errorf("opening container: %w", err)
		}
		defer c.Close()

		reg := c.Registry()
		v := reg.Version()
		fmt.Printf("Schema version: %d.%d.%d\n", v.Major, v.Minor, v.Patch)
		fmt.Printf("Directory cache entries: %d\n\n", c.DirectoryCacheLen())

		for _, td := range reg.Types() {
			fmt.Printf("Type: %s\n", td.Name)
			if td.Directory.HasDynamic() {
				fmt.Printf("  Directory: dynamic (fields: %v)\n", td.Directory.DynamicFieldNames())
			} else {
				prefix, err := c.ResolveDirectory(ctx, td.Name, nil)
				if err != nil {
					return fmt.Errorf("resolving directory for %s: %w", td.Name, err)
				}
				fmt.Printf("  Directory: static (%d-byte prefix)\n", len(prefix))
			}
			if td.Protocol != nil {
				fmt.Printf("  Protocol: %s (type code %d)\n", td.Protocol.Protocol, td.Protocol.TypeCode)
			}
			if len(td.Indexes) == 0 {
				fmt.Println("  Indexes: none")
				continue
			}
			fmt.Println("  Indexes:")
			for _, desc := range td.Indexes {
				state := "n/a (dynamic directory)"
				if !td.Directory.HasDynamic() {
					ts, err := c.StoreFor(ctx, td.Name, nil)
					if err != nil {
						return err
					}
					s, err := ts.IndexState(ctx, desc.Name)
					if err != nil {
						return fmt.Errorf("reading state for %s.%s: %w", td.Name, desc.Name, err)
					}
					state = s.String()
				}
				fmt.Printf("    %-20s kind=%-8s state=%s\n", desc.Name, kindString(desc.Kind), state)
			}
			fmt.Println()
		}

		for _, pd := range reg.Protocols() {
			fmt.Printf("Protocol: %s\n", pd.Name)
			fmt.Printf("  Type codes: %v\n", pd.TypeCodes)
		}
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaShowCmd)
}
