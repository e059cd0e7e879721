package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hydroserver2/contractgen/internal/analyzer"
	"github.com/hydroserver2/contractgen/internal/generator"
	"github.com/hydroserver2/contractgen/internal/spec"
)

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate typed resource contracts from an OpenAPI document",
		Long: "Generate one TypeScript contract module per REST resource, plus an index, " +
			"from an OpenAPI 3 or Swagger 2 document. Options can be provided via flags, " +
			"CONTRACTGEN_* environment variables, config files, or defaults.",
		Example: strings.TrimSpace(`  contractgen generate --input schemas/data.openapi.json --out src/generated/contracts --types-import ../data.types
  contractgen generate --input api.yaml --out out --types-import ./api.types --resource things --resource sensors
  contractgen --config contractgen.yaml generate --dry-run`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path to the OpenAPI/Swagger document (JSON or YAML)")
	flags.String("out", "", "Directory that receives the contract files")
	flags.String("types-import", "", "Module specifier the contracts import raw schema types from")
	flags.StringSlice("resource", nil, "Resource path segment to generate (repeatable); discovered from paths when omitted")
	flags.String("types-alias", "", "Identifier the raw schema types are imported as (default Data)")
	flags.Bool("query-from-operation", false, "Fall back to the collection GET's operation parameters for the query type")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()
	var top SurfaceConfig

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, &top, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateEnv(&cfg, &top); err != nil {
		return nil, err
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg, &top); err != nil {
		return nil, err
	}

	cfg.finalize(top)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig, stdout, stderr io.Writer) error {
	logger := setupLogging(stderr, cfg.LogLevel, cfg.Pretty)

	for _, s := range cfg.Surfaces {
		surfaceLogger := logger.With().Str("surface", s.Name).Logger()
		res, err := generator.Run(ctx, generator.Options{
			Input:       s.Input,
			OutDir:      s.Out,
			TypesImport: s.TypesImport,
			Resources:   s.Resources,
			Conventions: analyzer.Conventions{
				TypesAlias:         s.TypesAlias,
				SummarySuffix:      s.SummarySuffix,
				DetailSuffix:       s.DetailSuffix,
				QuerySuffix:        s.QuerySuffix,
				QueryFromOperation: s.QueryFromOperation,
			},
			FileSuffix: s.ContractSuffix,
			DryRun:     cfg.DryRun,
			Logger:     &surfaceLogger,
		})
		absOut := s.Out
		if ap, err := filepath.Abs(s.Out); err == nil {
			absOut = ap
		}
		if err != nil {
			var se *spec.SpecError
			if errors.As(err, &se) {
				msg := fmt.Sprintf("%s: %s", s.Name, se.Message)
				if se.Location != "" {
					msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
				}
				return newUsageError(msg)
			}
			return wrapOutputError(err, absOut)
		}
		if cfg.DryRun {
			printPlan(stdout, absOut, res)
		}
	}

	return nil
}

func printPlan(w io.Writer, outDir string, res *generator.Result) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(res.Files))
	rows := make([][]string, 0, len(res.Files))
	for _, f := range res.Files {
		rows = append(rows, []string{f.RelPath, humanize.Bytes(uint64(f.Size)), f.Mode.String()})
	}
	fmt.Fprint(w, formatTable([]string{"File", "Size", "Mode"}, rows))
	for _, skip := range res.Skipped {
		fmt.Fprintf(w, "Skipped %s: %s\n", skip.Resource, skip.Reason)
	}
}

func formatTable(header []string, data [][]string) string {
	tableString := &strings.Builder{}
	table := tablewriter.NewWriter(tableString)

	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetHeaderLine(false)

	table.AppendBulk(data)
	table.Render()
	return tableString.String()
}

func wrapOutputError(err error, outDir string) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") {
		return newUsageErrorf("output error for %s: %s\nHint: choose a different --out.", outDir, msg)
	}
	return err
}
