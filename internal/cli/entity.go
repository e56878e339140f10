package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sparqlmodel/internal/model"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Listing bool // also load every relation
}

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	ID    string   // update this entity instead of creating one
	Set   []string // field=value
	Extra []string // predicate=value
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Logical bool
}

// LinkResult reports what the link command wrote.
type LinkResult struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate,omitempty"`
	Object    string `json:"object"`
	Linked    bool   `json:"linked"`
}

// DeleteResult reports what the delete command removed.
type DeleteResult struct {
	Subject string `json:"subject"`
	Logical bool   `json:"logical"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <type> <id>",
		Short: "Load one entity by identifier",
		Long: `Load one entity and print it as JSON.

An id that does not start with http:// is appended to the type's
base URI. Status-tracked types only match active entities.

Exit codes:
  0 - Entity found
  1 - Entity not found, or the store failed
  2 - Command error (unknown type, bad config, etc.)`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Listing, "listing", "l", false, "also load every relation")

	return cmd
}

func runFind(opts *FindOptions, typeName, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.RootOptions)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	defer sess.Close()

	ctx := cmd.Context()
	e, err := findExisting(ctx, sess.mapper, typeName, id)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	if opts.Listing {
		if err := sess.mapper.Listing(ctx, e, ""); err != nil {
			return outputOperationError(formatter, err)
		}
	}
	return outputEntity(formatter, e)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <type> <id> [relation]",
		Short: "Load the related entities of one entity",
		Long: `Load relation collections of one entity and print it as JSON.

Without a relation name every relation of the type is loaded.
Related entities are ordered and limited as their mapping declares.`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			field := ""
			if len(args) == 3 {
				field = args[2]
			}
			return runList(rootOpts, args[0], args[1], field, cmd)
		},
	}

	return cmd
}

func runList(opts *RootOptions, typeName, id, field string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(opts)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	defer sess.Close()

	ctx := cmd.Context()
	e, err := findExisting(ctx, sess.mapper, typeName, id)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	if err := sess.mapper.Listing(ctx, e, field); err != nil {
		return outputOperationError(formatter, err)
	}
	return outputEntity(formatter, e)
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <type>",
		Short: "Create or update an entity",
		Long: `Create an entity, or update one with --id, and print it as JSON.

Values are read as YAML scalars: 36 is an integer, true a boolean,
anything else a string. --extra writes additional predicate=value
triples that are not part of the mapping. The predicate is an absolute
IRI and ends at the last '='.

Examples:
  sparqlmodel save Person --set name=Ada --set age=36
  sparqlmodel save Person --id 42 --set age=37
  sparqlmodel save Person --set name=Ada --extra http://example.org/source=import`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "identifier of the entity to update")
	cmd.Flags().StringArrayVarP(&opts.Set, "set", "s", nil, "field=value to assign (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Extra, "extra", nil, "predicate=value to write alongside (repeatable)")

	return cmd
}

func runSave(opts *SaveOptions, typeName string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	values, err := parseAssignments(opts.Set)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	extra, err := parseExtras(opts.Extra)
	if err != nil {
		return outputOperationError(formatter, err)
	}

	sess, err := openSession(opts.RootOptions)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	defer sess.Close()

	ctx := cmd.Context()
	var e *model.Entity
	if opts.ID != "" {
		e, err = findExisting(ctx, sess.mapper, typeName, opts.ID)
	} else {
		e, err = sess.mapper.New(typeName)
	}
	if err != nil {
		return outputOperationError(formatter, err)
	}

	for field, v := range values {
		if err := e.Set(field, v); err != nil {
			return outputOperationError(formatter, err)
		}
	}

	if err := sess.mapper.Save(ctx, e, extra); err != nil {
		return outputOperationError(formatter, err)
	}
	formatter.VerboseLog("Saved %s", e.Identifier)
	return outputEntity(formatter, e)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete an entity",
		Long: `Delete an entity.

By default every triple of the subject is removed. With --logical only
the status is replaced by the deleted value, so the triples stay but
status-filtered lookups no longer see the entity.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Logical, "logical", false, "mark as deleted instead of removing triples")

	return cmd
}

func runDelete(opts *DeleteOptions, typeName, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	sess, err := openSession(opts.RootOptions)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	defer sess.Close()

	ctx := cmd.Context()
	e, err := findExisting(ctx, sess.mapper, typeName, id)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	if err := sess.mapper.Delete(ctx, e, opts.Logical); err != nil {
		return outputOperationError(formatter, err)
	}

	result := DeleteResult{Subject: e.Identifier, Logical: opts.Logical}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted %s\n", result.Subject)
	return nil
}

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <type> <id> <target-type> <target-id>",
		Short: "Link two entities through a relation",
		Long: `Write one triple from an entity to another.

The predicate is the first relation of <type> whose target is
<target-type>. Without such a relation nothing is written.`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runLink(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sess, err := openSession(opts)
	if err != nil {
		return outputOperationError(formatter, err)
	}
	defer sess.Close()

	ctx := cmd.Context()
	e, err := sess.mapper.Find(ctx, args[0], args[1])
	if err != nil {
		return outputOperationError(formatter, err)
	}
	target, err := sess.mapper.Find(ctx, args[2], args[3])
	if err != nil {
		return outputOperationError(formatter, err)
	}
	if err := sess.mapper.Link(ctx, e, target); err != nil {
		return outputOperationError(formatter, err)
	}

	result := LinkResult{Subject: e.Identifier, Object: target.Identifier}
	for _, rel := range e.Type().Relations {
		if rel.Target == target.Type().Name {
			result.Predicate = rel.Predicate
			result.Linked = true
			break
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if !result.Linked {
		fmt.Fprintf(formatter.Writer, "No relation from %s to %s, nothing linked\n", args[0], args[2])
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ Linked %s → %s\n", result.Subject, result.Object)
	return nil
}

// findExisting finds an entity and fails with ErrCodeNotFoundURI when it is
// not in the store.
func findExisting(ctx context.Context, m *model.Mapper, typeName, id string) (*model.Entity, error) {
	e, err := m.Find(ctx, typeName, id)
	if err != nil {
		return nil, err
	}
	if !e.Exist() {
		return nil, &LoadError{Code: ErrCodeNotFoundURI, Message: fmt.Sprintf("%s %s not found", typeName, e.Identifier)}
	}
	return e, nil
}

// outputEntity prints an entity as canonical JSON, wrapped in the response
// envelope for --format json.
func outputEntity(formatter *OutputFormatter, e *model.Entity) error {
	data, err := e.ToJSON()
	if err != nil {
		return outputOperationError(formatter, err)
	}
	if formatter.Format == "json" {
		return formatter.Success(json.RawMessage(data))
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}
