package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sparqlmodel/internal/config"
	"github.com/roach88/sparqlmodel/internal/ir"
	"github.com/roach88/sparqlmodel/internal/model"
	"github.com/roach88/sparqlmodel/internal/queryir"
	"github.com/roach88/sparqlmodel/internal/sparql"
	"github.com/roach88/sparqlmodel/internal/store"
)

// session is everything an operation command needs: a mapper over the
// configured store and the registry compiled from the mappings directory.
type session struct {
	cfg    *config.Config
	mapper *model.Mapper
	closer io.Closer
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// openSession loads configuration and mappings, then connects to the store.
func openSession(opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	dir := opts.Mappings
	if dir == "" {
		dir = cfg.Mappings
	}
	if dir == "" {
		return nil, &LoadError{Code: ErrCodeConfig, Message: "no mappings directory: pass --mappings or set mappings in the config file"}
	}

	loadResult, loadErrors := LoadMappings(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	reg, err := BuildRegistry(loadResult.Types)
	if err != nil {
		return nil, err
	}

	exec, closer, err := newExecutor(cfg)
	if err != nil {
		return nil, err
	}

	mapper, err := model.NewMapper(exec, reg, mapperOptions(cfg)...)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}

	return &session{cfg: cfg, mapper: mapper, closer: closer}, nil
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
	}
	return cfg, nil
}

// newExecutor connects to the backend named by cfg. The closer is nil when
// the backend holds no resources.
func newExecutor(cfg *config.Config) (queryir.Executor, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, nil, &LoadError{Code: ErrCodeStore, Message: err.Error()}
		}
		return st, st, nil
	case config.BackendSPARQL:
		client, err := sparql.NewClient(sparql.Options{
			Endpoint:       cfg.Endpoint,
			UpdateEndpoint: cfg.UpdateEndpoint,
			Timeout:        cfg.Timeout,
		})
		if err != nil {
			return nil, nil, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
		}
		return client, nil, nil
	default:
		return nil, nil, &LoadError{Code: ErrCodeConfig, Message: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

func mapperOptions(cfg *config.Config) []model.Option {
	return []model.Option{
		model.WithGraph(cfg.Graph),
		model.WithLifecycle(model.Lifecycle{
			StatusPredicate:  cfg.Predicates.Status,
			CreatedPredicate: cfg.Predicates.Created,
			UpdatedPredicate: cfg.Predicates.Updated,
			Active:           cfg.Status.Active,
			Deleted:          cfg.Status.Deleted,
		}),
	}
}

// parseAssignments splits field=value arguments at the first '='. Values are
// read as YAML scalars, so 36 is an integer, true a boolean and anything else
// a string.
func parseAssignments(args []string) (map[string]ir.IRValue, error) {
	return decodeAssignments(args, func(arg string) (string, string, bool) {
		return strings.Cut(arg, "=")
	}, nil)
}

// parseExtras splits predicate=value arguments at the last '=', so a
// predicate IRI keeps its query string. Every predicate must be an absolute
// IRI.
func parseExtras(args []string) (map[string]ir.IRValue, error) {
	return decodeAssignments(args, func(arg string) (string, string, bool) {
		i := strings.LastIndex(arg, "=")
		if i < 0 {
			return arg, "", false
		}
		return arg[:i], arg[i+1:], true
	}, func(key string) error {
		if !model.IsAbsoluteIRI(key) {
			return fmt.Errorf("predicate %q is not an absolute IRI", key)
		}
		return nil
	})
}

func decodeAssignments(args []string, split func(string) (string, string, bool), checkKey func(string) error) (map[string]ir.IRValue, error) {
	out := make(map[string]ir.IRValue, len(args))
	for _, arg := range args {
		key, raw, ok := split(arg)
		if !ok || key == "" {
			return nil, &LoadError{Code: ErrCodeBadArgument, Message: fmt.Sprintf("expected key=value, got %q", arg)}
		}
		if checkKey != nil {
			if err := checkKey(key); err != nil {
				return nil, &LoadError{Code: ErrCodeBadArgument, Message: err.Error()}
			}
		}
		var decoded any
		if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, &LoadError{Code: ErrCodeBadArgument, Message: fmt.Sprintf("%s: %v", key, err)}
		}
		v, err := ir.FromGo(decoded)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadArgument, Message: fmt.Sprintf("%s: %v", key, err)}
		}
		out[key] = v
	}
	return out, nil
}

// newFormatter builds the formatter every command writes through.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// outputOperationError reports err with a code derived from its kind and
// returns the matching ExitError.
func outputOperationError(formatter *OutputFormatter, err error) error {
	code, exit := classify(err)
	message := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		message = loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	return WrapExitError(exit, code, err)
}

func classify(err error) (string, int) {
	var loadErr *LoadError
	switch {
	case errors.As(err, &loadErr):
		if loadErr.Code == ErrCodeNotFoundURI {
			return loadErr.Code, ExitFailure
		}
		return loadErr.Code, ExitCommandError
	case errors.Is(err, model.ErrUnknownType):
		return ErrCodeUnknownType, ExitCommandError
	case errors.Is(err, model.ErrUnknownField):
		return ErrCodeUnknownField, ExitCommandError
	case errors.Is(err, model.ErrIdentifierRequired), errors.Is(err, model.ErrNotImplemented):
		return ErrCodeBadArgument, ExitCommandError
	case errors.Is(err, model.ErrStoreWriteFailed):
		return ErrCodeStore, ExitFailure
	default:
		return ErrCodeStore, ExitFailure
	}
}
