package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultInitPath = "contractgen.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample contractgen configuration file",
		Long:  "Scaffold a commented contractgen configuration file that documents every surface and naming option.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{OutputPath: out, Force: force}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("out", defaultInitPath, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig, stdout io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultInitPath
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil {
		if st.IsDir() {
			return newUsageErrorf("init: %q is a directory", absPath)
		}
		if !cfg.Force {
			return newUsageErrorf("init: %q already exists (use --force to overwrite)", absPath)
		}
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newUsageErrorf("init: cannot create parent directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(absPath)+".tmp-*")
	if err != nil {
		return newUsageErrorf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.WriteString(strings.TrimSpace(sampleConfigYAML) + "\n")
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpName, 0o644)
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return newUsageErrorf("init: cannot write temp file: %v", werr)
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		_ = os.Remove(tmpName)
		return newUsageErrorf("init: cannot place file at %s: %v", absPath, err)
	}
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML documents every config key. Uncommenting the key lines
// yields a valid two-surface config.
const sampleConfigYAML = `# contractgen configuration (YAML or JSON)
# All fields are optional. Flags and CONTRACTGEN_* environment variables
# override config values; flags win over the environment.

# Path to the OpenAPI 3 or Swagger 2 document (JSON or YAML). Local files only.
# input: ./schemas/data.openapi.json

# Directory that receives <resource>.contract.ts files and index.ts.
# Every file ending in the contract suffix is deleted there before a run.
# out: ./src/generated/contracts

# Module specifier the contracts import the raw schema types from.
# typesImport: ../data.types

# Resource path segments to generate, in order. When omitted, the last
# segment of each path that does not end in a {parameter} becomes a
# resource, sorted by name.
# resources: [things, sensors, observed-properties]

# Identifier the raw schema types are imported as.
# typesAlias: Data

# File suffix of generated contracts.
# contractSuffix: .contract.ts

# Schema name suffixes tried before structural inference, after the
# singular PascalCase resource name (Thing + SummaryResponse).
# summarySuffix: SummaryResponse
# detailSuffix: DetailResponse
# querySuffix: QueryParameters

# Use the collection GET's operation parameters as the query type instead
# of an empty object when no named query schema exists.
# queryFromOperation: false

# Log level (debug, info, warn, error) and console formatting.
# logLevel: info
# pretty: false

# Preview planned outputs without writing files.
# dryRun: false

# Enable debug logging.
# verbose: false

# Additional API surfaces. Each needs its own input, out and typesImport;
# blank naming fields are taken from the top level.
# surfaces:
#   - name: etl
#     input: ./schemas/etl.openapi.json
#     out: ./src/generated/etl-contracts
#     typesImport: ../etl.types
#     typesAlias: Etl
#     resources: [orchestration-systems, data-sources]
`
