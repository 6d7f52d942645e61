package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cuemby/objstore/pkg/obs/metrics"
)

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Open the container and serve its Prometheus metrics until killed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		c, err := openContainer(ctx, cmd)
		if err != nil {
			return fmt.Errorf("opening container: %w", err)
		}
		defer c.Close()

		addr, _ := cmd.Flags().GetString("addr")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())

		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", addr)
		return http.ListenAndServe(addr, mux)
	},
}

func init() {
	serveMetricsCmd.Flags().String("addr", "127.0.0.1:9090", "Listen address for the metrics endpoint")
}
