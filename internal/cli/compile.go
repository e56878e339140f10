package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sparqlmodel/internal/model"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled entity types.
type CompilationResult struct {
	Entities []EntitySummary `json:"entities"`
}

// EntitySummary is the JSON view of a compiled entity type.
type EntitySummary struct {
	Name          string            `json:"name"`
	BaseURI       string            `json:"base_uri,omitempty"`
	RDFType       string            `json:"rdf_type,omitempty"`
	StatusTracked bool              `json:"status"`
	GeneratesIDs  bool              `json:"generates_ids"`
	Scalars       []ScalarSummary   `json:"scalars"`
	Relations     []RelationSummary `json:"relations,omitempty"`
}

// ScalarSummary is one predicate-to-field mapping.
type ScalarSummary struct {
	Predicate string `json:"predicate"`
	Field     string `json:"field"`
}

// RelationSummary is one predicate-to-related-type mapping.
type RelationSummary struct {
	Predicate string `json:"predicate"`
	Field     string `json:"field"`
	Target    string `json:"target"`
	OrderBy   string `json:"order_by,omitempty"`
	Desc      bool   `json:"desc,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	EntityCount    int
	TotalScalars   int
	TotalRelations int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <mappings-dir>",
		Short: "Compile CUE entity mappings",
		Long: `Compile CUE entity mappings and check them as a registry would.

Every struct under "entity" is compiled, registered and sealed, so
relation targets and order fields are checked across files.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, mappingsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadMappings(mappingsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, mappingsDir)
	for _, t := range loadResult.Types {
		formatter.VerboseLog("Compiled entity: %s", t.Name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	reg, err := BuildRegistry(loadResult.Types)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}

	result := summarize(reg)
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeMappingsToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// summarize lists the registry's types in registration order.
func summarize(reg *model.Registry) *CompilationResult {
	result := &CompilationResult{Entities: []EntitySummary{}}
	for _, t := range reg.Types() {
		s := EntitySummary{
			Name:          t.Name,
			BaseURI:       t.BaseURI,
			RDFType:       t.RDFType,
			StatusTracked: t.StatusTracked,
			GeneratesIDs:  t.IDGen != nil,
			Scalars:       make([]ScalarSummary, len(t.Scalars)),
		}
		for i, sc := range t.Scalars {
			s.Scalars[i] = ScalarSummary{Predicate: sc.Predicate, Field: sc.Field}
		}
		for _, rel := range t.Relations {
			r := RelationSummary{
				Predicate: rel.Predicate,
				Field:     rel.Field,
				Target:    rel.Target,
				Limit:     rel.Limit,
			}
			if rel.Order != nil {
				r.OrderBy = rel.Order.Field
				r.Desc = rel.Order.Descending
			}
			s.Relations = append(s.Relations, r)
		}
		result.Entities = append(result.Entities, s)
	}
	return result
}

func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{EntityCount: len(result.Entities)}
	for _, e := range result.Entities {
		stats.TotalScalars += len(e.Scalars)
		stats.TotalRelations += len(e.Relations)
	}
	return stats
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d entity type(s)\n\n", stats.EntityCount)

	fmt.Fprintln(formatter.Writer, "Entities:")
	for _, e := range result.Entities {
		fmt.Fprintf(formatter.Writer, "  %s: %d scalar(s), %d relation(s)\n",
			e.Name, len(e.Scalars), len(e.Relations))
		for _, r := range e.Relations {
			fmt.Fprintf(formatter.Writer, "    %s → %s\n", r.Field, r.Target)
		}
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote mappings to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeMappingsToFile writes the compiled mappings as indented JSON.
func writeMappingsToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling mappings: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
