package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// SurfaceConfig is one API surface: a document, an output directory and the
// naming conventions its schemas follow.
type SurfaceConfig struct {
	Name               string
	Input              string
	Out                string
	TypesImport        string
	Resources          []string
	TypesAlias         string
	ContractSuffix     string
	SummarySuffix      string
	DetailSuffix       string
	QuerySuffix        string
	QueryFromOperation bool
}

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, environment and CLI overrides.
type GenerateConfig struct {
	Surfaces   []SurfaceConfig
	ConfigPath string
	LogLevel   string
	Pretty     bool
	DryRun     bool
	Verbose    bool
}

const (
	defaultTypesAlias     = "Data"
	defaultContractSuffix = ".contract.ts"
	defaultLogLevel       = "info"
)

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{LogLevel: defaultLogLevel}
}

// envConfig mirrors the top-level keys as CONTRACTGEN_* variables. Everything
// is a string so that an unset variable can be told apart from false.
type envConfig struct {
	Input              string
	Out                string
	TypesImport        string `split_words:"true"`
	Resources          string
	TypesAlias         string `split_words:"true"`
	QueryFromOperation string `split_words:"true"`
	LogLevel           string `split_words:"true"`
	Pretty             string
	DryRun             string `split_words:"true"`
}

func applyGenerateEnv(cfg *GenerateConfig, top *SurfaceConfig) error {
	var env envConfig
	if err := envconfig.Process("contractgen", &env); err != nil {
		return newUsageErrorf("environment: %v", err)
	}
	if env.Input != "" {
		top.Input = strings.TrimSpace(env.Input)
	}
	if env.Out != "" {
		top.Out = strings.TrimSpace(env.Out)
	}
	if env.TypesImport != "" {
		top.TypesImport = strings.TrimSpace(env.TypesImport)
	}
	if env.Resources != "" {
		top.Resources = splitAndTrim(env.Resources)
	}
	if env.TypesAlias != "" {
		top.TypesAlias = strings.TrimSpace(env.TypesAlias)
	}
	if env.LogLevel != "" {
		cfg.LogLevel = strings.TrimSpace(env.LogLevel)
	}
	for name, pair := range map[string]struct {
		raw string
		dst *bool
	}{
		"CONTRACTGEN_QUERY_FROM_OPERATION": {env.QueryFromOperation, &top.QueryFromOperation},
		"CONTRACTGEN_PRETTY":               {env.Pretty, &cfg.Pretty},
		"CONTRACTGEN_DRY_RUN":              {env.DryRun, &cfg.DryRun},
	} {
		if pair.raw == "" {
			continue
		}
		val, err := valueAsBool(pair.raw)
		if err != nil {
			return newUsageErrorf("environment %s: %v", name, err)
		}
		*pair.dst = val
	}
	return nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig, top *SurfaceConfig) error {
	strFlags := []struct {
		name string
		dst  *string
	}{
		{"input", &top.Input},
		{"out", &top.Out},
		{"types-import", &top.TypesImport},
		{"types-alias", &top.TypesAlias},
		{"log-level", &cfg.LogLevel},
	}
	for _, f := range strFlags {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(value)
	}

	if flags.Changed("resource") {
		value, err := flags.GetStringSlice("resource")
		if err != nil {
			return err
		}
		top.Resources = sanitizeList(value)
	}

	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"query-from-operation", &top.QueryFromOperation},
		{"dry-run", &cfg.DryRun},
		{"verbose", &cfg.Verbose},
		{"pretty", &cfg.Pretty},
	}
	for _, f := range boolFlags {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = value
	}
	return nil
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, top *SurfaceConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageErrorf("read config file %q: %v", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageErrorf("parse config file %q: %v", path, err)
	}

	for key, value := range raw {
		var err error
		switch normalizeKey(key) {
		case "loglevel":
			cfg.LogLevel, err = valueAsString(value)
		case "pretty":
			cfg.Pretty, err = valueAsBool(value)
		case "dryrun":
			cfg.DryRun, err = valueAsBool(value)
		case "verbose":
			cfg.Verbose, err = valueAsBool(value)
		case "surfaces":
			err = applySurfaceList(cfg, value, path)
		default:
			var known bool
			known, err = applySurfaceKey(top, key, value)
			if err == nil && !known {
				return newUsageErrorf("config file %q: unknown field %q", path, key)
			}
		}
		if err != nil {
			if errors.Is(err, ErrUsage) {
				return err
			}
			return newUsageErrorf("config field %q: %v", key, err)
		}
	}

	return nil
}

func applySurfaceList(cfg *GenerateConfig, value any, path string) error {
	if value == nil {
		return nil
	}
	list, ok := value.([]any)
	if !ok {
		return fmt.Errorf("expected list of surfaces, got %T", value)
	}
	for idx, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("surface %d: expected mapping, got %T", idx, item)
		}
		var s SurfaceConfig
		for key, v := range m {
			known, err := applySurfaceKey(&s, key, v)
			if err != nil {
				return fmt.Errorf("surface %d field %q: %w", idx, key, err)
			}
			if !known {
				return newUsageErrorf("config file %q: surface %d: unknown field %q", path, idx, key)
			}
		}
		cfg.Surfaces = append(cfg.Surfaces, s)
	}
	return nil
}

// applySurfaceKey sets one surface field. It reports false for keys that are
// not surface keys.
func applySurfaceKey(s *SurfaceConfig, key string, value any) (bool, error) {
	var err error
	switch normalizeKey(key) {
	case "name":
		s.Name, err = valueAsString(value)
	case "input":
		s.Input, err = valueAsString(value)
	case "out":
		s.Out, err = valueAsString(value)
	case "typesimport":
		s.TypesImport, err = valueAsString(value)
	case "resources":
		var list []string
		list, err = valueAsStringSlice(value)
		s.Resources = sanitizeList(list)
	case "typesalias":
		s.TypesAlias, err = valueAsString(value)
	case "contractsuffix":
		s.ContractSuffix, err = valueAsString(value)
	case "summarysuffix":
		s.SummarySuffix, err = valueAsString(value)
	case "detailsuffix":
		s.DetailSuffix, err = valueAsString(value)
	case "querysuffix":
		s.QuerySuffix, err = valueAsString(value)
	case "queryfromoperation":
		s.QueryFromOperation, err = valueAsBool(value)
	default:
		return false, nil
	}
	return true, err
}

// finalize turns the top-level surface plus the configured list into the
// surfaces to run. Listed surfaces inherit naming settings from the top level.
func (c *GenerateConfig) finalize(top SurfaceConfig) {
	var surfaces []SurfaceConfig
	if top.Input != "" || len(c.Surfaces) == 0 {
		surfaces = append(surfaces, top)
	}
	for _, s := range c.Surfaces {
		s.inherit(top)
		surfaces = append(surfaces, s)
	}
	c.Surfaces = surfaces
	c.normalize()
}

func (s *SurfaceConfig) inherit(top SurfaceConfig) {
	if s.TypesAlias == "" {
		s.TypesAlias = top.TypesAlias
	}
	if s.ContractSuffix == "" {
		s.ContractSuffix = top.ContractSuffix
	}
	if s.SummarySuffix == "" {
		s.SummarySuffix = top.SummarySuffix
	}
	if s.DetailSuffix == "" {
		s.DetailSuffix = top.DetailSuffix
	}
	if s.QuerySuffix == "" {
		s.QuerySuffix = top.QuerySuffix
	}
	s.QueryFromOperation = s.QueryFromOperation || top.QueryFromOperation
}

func (c *GenerateConfig) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Verbose {
		c.LogLevel = "debug"
	}
	for i := range c.Surfaces {
		s := &c.Surfaces[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Input = strings.TrimSpace(s.Input)
		s.Out = strings.TrimSpace(s.Out)
		s.TypesImport = strings.TrimSpace(s.TypesImport)
		s.Resources = sanitizeList(s.Resources)
		s.TypesAlias = strings.TrimSpace(s.TypesAlias)
		if s.TypesAlias == "" {
			s.TypesAlias = defaultTypesAlias
		}
		s.ContractSuffix = strings.TrimSpace(s.ContractSuffix)
		if s.ContractSuffix == "" {
			s.ContractSuffix = defaultContractSuffix
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("surface-%d", i+1)
		}
	}
}

func (c *GenerateConfig) validate() error {
	if _, ok := logLevels[c.LogLevel]; !ok {
		return newUsageErrorf("generate: unsupported log level %q (allowed: debug, info, warn, error)", c.LogLevel)
	}
	seenOut := make(map[string]string, len(c.Surfaces))
	for _, s := range c.Surfaces {
		if s.Input == "" {
			return newUsageErrorf("generate: %s: --input is required (set via flag, environment or config file)", s.Name)
		}
		if s.Out == "" {
			return newUsageErrorf("generate: %s: --out is required (set via flag, environment or config file)", s.Name)
		}
		if s.TypesImport == "" {
			return newUsageErrorf("generate: %s: --types-import is required (set via flag, environment or config file)", s.Name)
		}
		if !isIdentifier(s.TypesAlias) {
			return newUsageErrorf("generate: %s: types alias %q is not a valid identifier", s.Name, s.TypesAlias)
		}
		if !strings.HasSuffix(s.ContractSuffix, ".ts") {
			return newUsageErrorf("generate: %s: contract suffix %q must end with .ts", s.Name, s.ContractSuffix)
		}
		// Stale cleanup in one surface would delete another surface's output.
		if other, dup := seenOut[s.Out]; dup {
			return newUsageErrorf("generate: surfaces %s and %s share output directory %q", other, s.Name, s.Out)
		}
		seenOut[s.Out] = s.Name
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

// sanitizeList trims, drops empties and repeats, and keeps order.
func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
