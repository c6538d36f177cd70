package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stockroom/internal/config"
	"stockroom/internal/store"
	"stockroom/internal/types"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write an inventory snapshot to a JSON file",
	Long: `Exports equipment, consumables and feedback as JSON. Accounts and
sessions are never part of a snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace the inventory with a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Database.Path, logger)
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.Export(cmd.Context())
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return err
	}
	fmt.Printf("exported %d equipment, %d consumables, %d feedback to %s\n",
		len(snap.Equipment), len(snap.Consumables), len(snap.Feedback), args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Import(cmd.Context(), &snap); err != nil {
		return err
	}
	fmt.Printf("imported %d equipment, %d consumables, %d feedback\n",
		len(snap.Equipment), len(snap.Consumables), len(snap.Feedback))
	return nil
}
