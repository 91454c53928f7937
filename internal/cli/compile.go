package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/parse"
	"github.com/quillsql/quill/internal/plan"
	"github.com/quillsql/quill/internal/rowfilter"
	"github.com/quillsql/quill/internal/sqlgen"
	"github.com/quillsql/quill/internal/sqlgen/postgres"
	"github.com/quillsql/quill/internal/sqlgen/sqlitegen"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect string // "postgres" | "sqlite"
	Params  string // inline JSON object of caller parameters
	Output  string // output file path
}

// ValidDialects defines the supported SQL dialects.
var ValidDialects = []string{"postgres", "sqlite"}

// CompileResult is the compiled statement as printed or written out.
type CompileResult struct {
	Dialect string       `json:"dialect"`
	SQL     string       `json:"sql"`
	Params  []sqlgen.Arg `json:"params"`
	Auto    []AutoParam  `json:"autoParams,omitempty"`
}

// AutoParam is one auto-parameterized literal, for diagnostics.
type AutoParam struct {
	Name   string `json:"name"`
	Value  any    `json:"value"`
	Method string `json:"method"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query.json>",
		Short: "Compile a query AST to parameterized SQL",
		Long: `Compile a serialized query expression tree to parameterized SQL.

The input file holds the JSON encoding of a query-construction lambda
(q, params?, helpers?) => q.from(...)... . The compiled statement and
its named parameters print to stdout, or to --output as JSON.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", "postgres", "target dialect (postgres|sqlite)")
	cmd.Flags().StringVarP(&opts.Params, "params", "p", "", "caller parameters as a JSON object")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dialect, err := dialectFor(opts.Dialect)
	if err != nil {
		return outputCompileError(formatter, "Q001", err.Error())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return outputCompileError(formatter, "Q002", fmt.Sprintf("reading query file: %v", err))
	}
	node, err := ast.UnmarshalNode(data)
	if err != nil {
		return outputCompileError(formatter, "Q003", fmt.Sprintf("decoding query AST: %v", err))
	}
	fn, ok := node.(*ast.Lambda)
	if !ok {
		return outputCompileError(formatter, "Q003", fmt.Sprintf("query root must be a lambda, got %T", node))
	}

	params := map[string]any{}
	if opts.Params != "" {
		if err := json.Unmarshal([]byte(opts.Params), &params); err != nil {
			return outputCompileError(formatter, "Q004", fmt.Sprintf("decoding --params: %v", err))
		}
	}

	formatter.VerboseLog("compiling %s for %s", path, opts.Dialect)

	fin, err := plan.NewSchema().Compile(fn, params)
	if err != nil {
		code, msg := compileErrorCode(err)
		return outputCompileError(formatter, code, msg)
	}
	res, err := sqlgen.Generate(dialect, fin.Op, fin.Params)
	if err != nil {
		code, msg := compileErrorCode(err)
		return outputCompileError(formatter, code, msg)
	}

	result := &CompileResult{Dialect: opts.Dialect, SQL: res.SQL, Params: res.Args}
	for _, info := range fin.AutoParams {
		result.Auto = append(result.Auto, AutoParam{Name: info.Name, Value: info.Value, Method: info.Method})
	}

	if opts.Output != "" {
		if err := writeResultFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, "Q005", fmt.Sprintf("writing output file: %v", err))
		}
	}
	return outputCompileSuccess(formatter, result, opts.Output)
}

func dialectFor(name string) (sqlgen.Dialect, error) {
	switch name {
	case "postgres":
		return postgres.Dialect, nil
	case "sqlite":
		return sqlitegen.Dialect, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q: must be one of %v", name, ValidDialects)
	}
}

// compileErrorCode pulls the structured code out of a pipeline error.
func compileErrorCode(err error) (string, string) {
	var structErr *parse.StructureError
	if errors.As(err, &structErr) {
		return structErr.Code, structErr.Message
	}
	var policyErr *sqlgen.PolicyError
	if errors.As(err, &policyErr) {
		return policyErr.Code, policyErr.Message
	}
	var capErr *sqlgen.CapabilityError
	if errors.As(err, &capErr) {
		return capErr.Code, capErr.Message
	}
	var bindErr *rowfilter.BindingError
	if errors.As(err, &bindErr) {
		return bindErr.Code, bindErr.Message
	}
	return "Q000", err.Error()
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompileResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, result.SQL)
	if len(result.Params) > 0 {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintln(formatter.Writer, "Params:")
		for _, a := range result.Params {
			fmt.Fprintf(formatter.Writer, "  %s = %v\n", a.Name, a.Value)
		}
	}
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote result to %s\n", outputFile)
	}
	return nil
}

func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	exit := ExitFailure
	if code < "Q100" {
		exit = ExitCommandError
	}
	return NewExitError(exit, fmt.Sprintf("%s: %s", code, message))
}

func writeResultFile(result *CompileResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
