package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sparqlmodel/internal/mapping"
	"github.com/roach88/sparqlmodel/internal/model"
)

// LoadMode controls how errors are handled during mapping loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the entity types compiled from a mappings directory.
type LoadResult struct {
	Types     []model.EntityType
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during mapping loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadMappings loads the CUE package in dir and compiles every struct under
// "entity". Cross-type checks are left to the registry.
func LoadMappings(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mappings directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing mappings directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	entitiesVal := value.LookupPath(cue.ParsePath("entity"))
	if entitiesVal.Exists() {
		iter, iterErr := entitiesVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating entities: %v", iterErr), Pos: entitiesVal.Pos()})
			return result, errs
		}
		for iter.Next() {
			t, compileErr := mapping.CompileEntity(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "entity."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Types = append(result.Types, *t)
		}
	}

	if len(result.Types) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no entity mappings found"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// BuildRegistry registers and seals loaded entity types.
func BuildRegistry(types []model.EntityType) (*model.Registry, error) {
	reg := model.NewRegistry()
	if err := reg.Register(types...); err != nil {
		return nil, &LoadError{Code: registryErrorCode(err), Message: err.Error()}
	}
	if err := reg.Seal(); err != nil {
		return nil, &LoadError{Code: registryErrorCode(err), Message: err.Error()}
	}
	return reg, nil
}

func convertCompileError(err error, context string) *LoadError {
	var compileErr *mapping.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

func registryErrorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrDuplicateMapping):
		return ErrCodeDuplicateMapping
	case errors.Is(err, model.ErrInvalidMapping):
		return ErrCodeInvalidMapping
	default:
		return ErrCodeGeneric
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E008" // Configuration error
	ErrCodeStore       = "E009" // Store unreachable or query failed

	// Entity mapping errors
	ErrCodeEntityShape      = "E101" // Entity is not a struct or has unknown keys
	ErrCodeScalars          = "E102" // Invalid scalar mapping
	ErrCodeRelations        = "E103" // Invalid relation mapping
	ErrCodeRelationOrder    = "E104" // Invalid relation order
	ErrCodeInvalidType      = "E105" // Value of the wrong CUE kind
	ErrCodeIRI              = "E106" // base_uri or rdf_type problem
	ErrCodeStatus           = "E107" // status is not a boolean
	ErrCodeIDGenerator      = "E108" // Unknown or misplaced id generator
	ErrCodeDuplicateMapping = "E110" // Type, field or predicate declared twice
	ErrCodeInvalidMapping   = "E111" // Cross-type check failed

	// Operation errors
	ErrCodeUnknownType  = "E201" // No such entity type
	ErrCodeUnknownField = "E202" // No such field on the type
	ErrCodeNotFoundURI  = "E203" // Entity does not exist in the store
	ErrCodeBadArgument  = "E204" // Malformed field=value argument
)

// MapFieldToErrorCode maps a mapping compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "entity":
		return ErrCodeEntityShape
	case "scalars":
		return ErrCodeScalars
	case "relations":
		return ErrCodeRelations
	case "relations.order":
		return ErrCodeRelationOrder
	case "type":
		return ErrCodeInvalidType
	case "base_uri", "rdf_type":
		return ErrCodeIRI
	case "status":
		return ErrCodeStatus
	case "id":
		return ErrCodeIDGenerator
	default:
		return ErrCodeGeneric
	}
}
