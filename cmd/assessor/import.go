package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"

	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import test definitions from JSON files",
		RunE:  runImport,
	}
	addCommonFlags(cmd)
	cmd.Flags().StringSliceP("file", "f", nil, "Paths to test definition JSON files (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	return importFiles(cmd.Context(), db, v.GetStringSlice("file"), cmd.OutOrStdout())
}

// importFiles upserts the definitions in each file. Files whose fingerprint
// matches the last import are skipped.
func importFiles(ctx context.Context, db *store.Store, paths []string, out io.Writer) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := fingerprint(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			fmt.Fprintln(out, appI18n.Td(ctx, "ImportSkipped", map[string]any{"File": path}))
			continue
		}
		if storedHash != "" {
			slog.Info("definitions file changed since last import, updating tests", "path", path)
		}

		entries, err := parseImport(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		// Validate everything before writing anything from this file.
		for _, ti := range entries {
			if err := ti.Validate(); err != nil {
				return fmt.Errorf("%s: %s", path, strings.Join(model.ValidationMessages(err), "; "))
			}
		}
		for _, ti := range entries {
			id, err := db.UpsertTest(ctx, ti.Definition())
			if err != nil {
				return fmt.Errorf("save test %q from %s: %w", ti.Slug, path, err)
			}
			fmt.Fprintln(out, appI18n.Td(ctx, "TestImported", map[string]any{"Slug": ti.Slug, "ID": id}))
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported test definitions", "path", path, "count", len(entries))
	}
	return nil
}

// parseImport accepts a single definition object or an array of them.
func parseImport(data []byte) ([]model.TestImport, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var ti model.TestImport
		if err := json.Unmarshal(data, &ti); err != nil {
			return nil, err
		}
		return []model.TestImport{ti}, nil
	}
	var entries []model.TestImport
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
