package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psbr27/testPilotOne/internal/mockserver"
)

var (
	mockPort     int
	mockDataFile string
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run the hermetic HTTP mock server used by --execution-mode mock",
	RunE:  runMock,
}

func init() {
	mockCmd.Flags().IntVar(&mockPort, "port", 8082, "listen port")
	mockCmd.Flags().StringVar(&mockDataFile, "data-file", "", "path to a YAML fixture file")
}

func runMock(cmd *cobra.Command, args []string) error {
	var fixtures mockserver.Fixtures
	if mockDataFile != "" {
		var err error
		fixtures, err = mockserver.LoadFixtures(mockDataFile)
		if err != nil {
			return fmt.Errorf("loading fixtures: %w", err)
		}
	}

	addr := fmt.Sprintf(":%d", mockPort)
	srv := mockserver.NewServer(addr, fixtures)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintf(cmd.OutOrStdout(), "mock server listening on %s\n", addr)
	return srv.Run(ctx)
}
