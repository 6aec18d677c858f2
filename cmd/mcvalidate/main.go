// Command mcvalidate is the CLI front end for the mcdoc schema compiler
// and validator: it loads a directory of .mcdoc schemas and registry
// JSON, then validates one JSON document or an entire datapack against
// them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mcdoc/collate"
	"mcdoc/parser"
	"mcdoc/registry"
	"mcdoc/resolver"
	"mcdoc/validate"
)

var log zerolog.Logger

func main() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:   "mcvalidate",
		Short: "Compile MCDOC schemas and validate Minecraft datapack JSON against them",
	}
	root.PersistentFlags().String("schema-dir", "", "directory of .mcdoc schema files (required)")
	root.PersistentFlags().String("registries-dir", "", "directory of registry JSON files, one per registry")
	root.PersistentFlags().String("version", "", "target Minecraft version for #[since]/#[until] gating")
	root.PersistentFlags().Bool("verbose", false, "include per-branch union diagnostics")

	root.AddCommand(newValidateCmd(), newDatapackCmd(), newParseCmd())

	if err := root.Execute(); err != nil {
		os.Exit(2)
	}
}

// newValidateCmd validates a single JSON document against a dispatch-
// resolved resource type, mirroring the teacher's single-file `mcheck
// <json-file>` command.
func newValidateCmd() *cobra.Command {
	var resourceType string
	cmd := &cobra.Command{
		Use:   "validate <json-file>",
		Short: "Validate one JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaDir, _ := cmd.Flags().GetString("schema-dir")
			registriesDir, _ := cmd.Flags().GetString("registries-dir")
			mcVersion, _ := cmd.Flags().GetString("version")
			verbose, _ := cmd.Flags().GetBool("verbose")

			v, err := buildValidator(schemaDir, registriesDir)
			if err != nil {
				os.Exit(2)
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				log.Error().Err(err).Str("path", args[0]).Msg("read document")
				os.Exit(2)
				return nil
			}
			var value any
			if err := json.Unmarshal(raw, &value); err != nil {
				log.Error().Err(err).Str("path", args[0]).Msg("parse document JSON")
				os.Exit(2)
				return nil
			}

			if resourceType == "" {
				if rt, ok := collate.DefaultPathTypeResolver(args[0]); ok {
					resourceType = rt
				}
			}

			result := v.Validate(value, resourceType, mcVersion)
			printResult(args[0], result, verbose)
			if !result.IsValid {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&resourceType, "resource-type", "", "dispatch key to validate against (default: derived from the file path)")
	return cmd
}

// newDatapackCmd walks a directory of JSON documents through the
// DocumentCollator and reports an aggregate DatapackResult.
func newDatapackCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "datapack <dir>",
		Short: "Validate every JSON document under a datapack directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaDir, _ := cmd.Flags().GetString("schema-dir")
			registriesDir, _ := cmd.Flags().GetString("registries-dir")
			mcVersion, _ := cmd.Flags().GetString("version")

			v, err := buildValidator(schemaDir, registriesDir)
			if err != nil {
				os.Exit(2)
				return err
			}

			files, err := loadJSONFiles(args[0])
			if err != nil {
				log.Error().Err(err).Str("dir", args[0]).Msg("walk datapack directory")
				os.Exit(2)
				return nil
			}

			c := collate.New(v)
			c.Version = mcVersion
			c.Concurrency = concurrency

			result, err := c.Analyze(context.Background(), files)
			if err != nil {
				log.Error().Err(err).Msg("analyze datapack")
				os.Exit(2)
				return nil
			}

			for _, de := range result.Errors {
				log.Warn().Str("path", de.Path).Str("kind", string(de.Error.Kind)).Msg(de.Error.Message)
			}
			log.Info().
				Int("total_files", result.TotalFiles).
				Int("valid_files", result.ValidFiles).
				Int64("analysis_time_ms", result.AnalysisTimeMs).
				Msg("datapack analysis complete")

			if result.ValidFiles < result.TotalFiles {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "number of documents to validate concurrently")
	return cmd
}

// newParseCmd parses schemas only and reports diagnostics, for schema
// authors iterating on .mcdoc files without a datapack at hand.
func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <schema-dir>",
		Short: "Parse MCDOC schemas and report diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := findMcdocFiles(args[0])
			if err != nil {
				os.Exit(2)
				return err
			}

			failed := false
			for _, p := range paths {
				raw, err := os.ReadFile(p)
				if err != nil {
					log.Error().Err(err).Str("path", p).Msg("read schema")
					failed = true
					continue
				}
				_, errs := parser.Parse(string(raw))
				if errs != nil {
					failed = true
					for _, e := range errs {
						log.Warn().Str("path", p).Int("line", e.Pos.Line).Int("column", e.Pos.Column).Msg(e.Error())
					}
					continue
				}
				log.Info().Str("path", p).Msg("parsed ok")
			}
			if failed {
				os.Exit(2)
			}
			return nil
		},
	}
}

// buildValidator loads every .mcdoc file under schemaDir and every
// registry JSON file under registriesDir, then resolves the schema set.
func buildValidator(schemaDir, registriesDir string) (*validate.Validator, error) {
	if schemaDir == "" {
		return nil, fmt.Errorf("--schema-dir is required")
	}

	paths, err := findMcdocFiles(schemaDir)
	if err != nil {
		return nil, fmt.Errorf("walk schema dir: %w", err)
	}

	r := resolver.New()
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", p, err)
		}
		file, errs := parser.Parse(string(raw))
		if errs != nil {
			for _, e := range errs {
				log.Error().Str("path", p).Int("line", e.Pos.Line).Int("column", e.Pos.Column).Msg(e.Error())
			}
			return nil, fmt.Errorf("schema %s has %d parse error(s)", p, len(errs))
		}
		modPath := schemaModulePath(schemaDir, p)
		r.AddModule(modPath, file)
	}

	set, err := r.ResolveAll()
	if err != nil {
		return nil, fmt.Errorf("resolve schemas: %w", err)
	}
	for _, me := range set.ModuleErrors {
		log.Warn().Str("module", me.From).Msg(me.Error())
	}
	for _, dc := range set.DispatchCollisions {
		log.Warn().Str("registry", dc.Registry).Msg(dc.Error())
	}

	store := registry.NewStore()
	if registriesDir != "" {
		entries, err := os.ReadDir(registriesDir)
		if err != nil {
			return nil, fmt.Errorf("read registries dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), ".json")
			raw, err := os.ReadFile(filepath.Join(registriesDir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("read registry %s: %w", name, err)
			}
			if err := store.Load(name, "", raw); err != nil {
				return nil, fmt.Errorf("load registry %s: %w", name, err)
			}
		}
	}

	return validate.New(set, store), nil
}

func schemaModulePath(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = file
	}
	rel = strings.TrimSuffix(rel, ".mcdoc")
	return filepath.ToSlash(rel)
}

func findMcdocFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".mcdoc") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func loadJSONFiles(dir string) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		files[filepath.ToSlash(rel)] = raw
		return nil
	})
	return files, err
}

func printResult(path string, result validate.Result, verbose bool) {
	log.Info().Str("path", path).Bool("valid", result.IsValid).Int("errors", len(result.Errors)).Int("dependencies", len(result.Dependencies)).Msg("validated")
	for _, e := range result.Errors {
		evt := log.Warn().Str("path", e.JSONPath).Str("kind", string(e.Kind))
		if verbose && len(e.Detail) > 0 {
			evt = evt.Strs("detail", e.Detail)
		}
		evt.Msg(e.Message)
	}
}
