// Command proseql is a thin CLI wrapping the database's external
// interfaces (§6): today, just the collection file format converter.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonwjackson/proseql/serialize"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "proseql",
	Short: "proseql - an embedded, document-style database",
}

func init() {
	rootCmd.PersistentFlags().String("config", "proseql.config.json", "Path to the collection config file")
	rootCmd.AddCommand(convertCmd)
}

// fileConfig is the on-disk shape describing every collection's file
// binding — the same layout Database.Open's CollectionConfig.File field
// would be populated from, kept deliberately minimal for this CLI sketch.
type fileConfig struct {
	Collections []collectionFileConfig `json:"collections"`
}

type collectionFileConfig struct {
	Name string `json:"name"`
	File string `json:"file"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	var cfg fileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return &cfg, nil
}

func saveFileConfig(path string, cfg *fileConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var convertCmd = &cobra.Command{
	Use:   "convert <collection> <format>",
	Short: "Re-serialize a collection's bound file into a different format",
	Long: `Reads the collection's current file, re-serializes it in the target
format, writes the new file, removes the old one, and updates the config
file's file field for that collection.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		collectionName, targetFormat := args[0], args[1]

		cfg, err := loadFileConfig(configPath)
		if err != nil {
			return err
		}

		idx := -1
		for i, c := range cfg.Collections {
			if c.Name == collectionName {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("unknown collection %q", collectionName)
		}
		entry := &cfg.Collections[idx]
		if entry.File == "" {
			return fmt.Errorf("collection %q has no file configured", collectionName)
		}

		currentExt := strings.TrimPrefix(filepath.Ext(entry.File), ".")
		if strings.EqualFold(currentExt, targetFormat) {
			return fmt.Errorf("collection %q is already in format %q", collectionName, targetFormat)
		}

		sourceCodec, err := serialize.MustLookup(currentExt)
		if err != nil {
			return err
		}
		targetCodec, err := serialize.MustLookup(targetFormat)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(entry.File)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("collection %q's file %q does not exist", collectionName, entry.File)
			}
			return fmt.Errorf("reading %q: %w", entry.File, err)
		}

		var envelope map[string]any
		if err := sourceCodec.Decode(data, &envelope); err != nil {
			return fmt.Errorf("decoding %q: %w", entry.File, err)
		}

		encoded, err := targetCodec.Encode(envelope)
		if err != nil {
			return fmt.Errorf("encoding as %q: %w", targetFormat, err)
		}

		newPath := strings.TrimSuffix(entry.File, filepath.Ext(entry.File)) + "." + targetFormat
		if err := os.WriteFile(newPath, encoded, 0o644); err != nil {
			return fmt.Errorf("writing %q: %w", newPath, err)
		}
		if err := os.Remove(entry.File); err != nil {
			return fmt.Errorf("removing old file %q: %w", entry.File, err)
		}

		entry.File = newPath
		if err := saveFileConfig(configPath, cfg); err != nil {
			return fmt.Errorf("updating config: %w", err)
		}

		fmt.Printf("converted %s -> %s\n", collectionName, newPath)
		return nil
	},
}
