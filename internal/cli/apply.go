package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/simphotonics/lockattr/internal/guard"
	"github.com/simphotonics/lockattr/internal/policy"
	"github.com/simphotonics/lockattr/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database string

	// IDGenerator overrides object id generation (for testing).
	// If nil, the store uses UUIDv7.
	IDGenerator store.IDGenerator
}

// Batch is a YAML file of object declarations and writes.
//
//	objects:
//	  - ref: a
//	    kind: Account
//	  - ref: b
//	    id: 0192f5c4-...   # existing object in the database
//	writes:
//	  - {object: a, attr: data, value: x}
type Batch struct {
	Objects []BatchObject `yaml:"objects"`
	Writes  []BatchWrite  `yaml:"writes"`
}

// BatchObject declares an object by ref. Kind creates a new object; ID loads
// an existing one.
type BatchObject struct {
	Ref  string `yaml:"ref"`
	Kind string `yaml:"kind"`
	ID   string `yaml:"id"`
}

// BatchWrite is one attribute assignment.
type BatchWrite struct {
	Object string `yaml:"object"`
	Attr   string `yaml:"attr"`
	Value  any    `yaml:"value"`
}

// ObjectInfo reports an object touched by a batch.
type ObjectInfo struct {
	Ref  string `json:"ref"`
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// WriteResult reports the outcome of one batch write.
type WriteResult struct {
	Object  string `json:"object"`
	Attr    string `json:"attr"`
	Outcome string `json:"outcome"` // "ok" | "protected" | "error"
	Error   string `json:"error,omitempty"`
}

// ApplyResult holds the apply command result.
type ApplyResult struct {
	Objects  []ObjectInfo  `json:"objects"`
	Writes   []WriteResult `json:"writes"`
	Applied  int           `json:"applied"`
	Rejected int           `json:"rejected"`
	Failed   int           `json:"failed"`

	// Stored is the number of objects in the database after the batch.
	Stored int `json:"stored"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return newApplyCommand(&ApplyOptions{RootOptions: rootOpts})
}

func newApplyCommand(opts *ApplyOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <policy-path> <writes.yaml>",
		Short: "Apply a batch of writes through the guards",
		Long: `Apply a YAML batch of attribute writes to a SQLite store, routing every
write through the guard for its object's kind.

Every write is attempted and reported. Lock state lives only for the
duration of one batch: a new batch starts every attribute unlocked.

Exit codes:
  0 - All writes applied
  1 - One or more writes rejected or failed
  2 - Command error (invalid paths, bad policy, bad batch)

Example:
  lockattr apply --db ./objects.db ./policies ./writes.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runApply(opts *ApplyOptions, policyPath, batchPath string, cmd *cobra.Command) error {
	logger := configureLogging(opts.RootOptions, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd)

	set, err := LoadPolicy(policyPath)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	logger.Info("policy loaded", "path", policyPath, "rules", set.Len())

	batch, err := LoadBatch(batchPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load batch", err)
	}

	storeOpts := []store.Option{}
	if opts.IDGenerator != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDGenerator))
	}
	st, err := store.Open(opts.Database, storeOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := applyBatch(ctx, st, set, batch, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to apply batch", err)
	}
	logger.Info("batch applied",
		"applied", result.Applied,
		"rejected", result.Rejected,
		"failed", result.Failed,
	)

	return outputApply(formatter, result)
}

// LoadBatch reads and validates a batch file. Unknown fields are rejected.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var b Batch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateBatch(&b); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	return &b, nil
}

func validateBatch(b *Batch) error {
	if len(b.Writes) == 0 {
		return errors.New("writes list is required")
	}

	refs := make(map[string]bool, len(b.Objects))
	for i, o := range b.Objects {
		if o.Ref == "" {
			return fmt.Errorf("objects[%d]: ref is required", i)
		}
		if refs[o.Ref] {
			return fmt.Errorf("objects[%d]: duplicate ref %q", i, o.Ref)
		}
		if (o.Kind == "") == (o.ID == "") {
			return fmt.Errorf("objects[%d]: exactly one of kind or id is required", i)
		}
		refs[o.Ref] = true
	}

	for i, w := range b.Writes {
		if !refs[w.Object] {
			return fmt.Errorf("writes[%d]: unknown object %q", i, w.Object)
		}
		if w.Attr == "" {
			return fmt.Errorf("writes[%d]: attr is required", i)
		}
	}
	return nil
}

// applyBatch resolves the batch objects and routes every write through the
// policy guards. Rejected and failed writes are recorded, not returned.
func applyBatch(ctx context.Context, st *store.Store, set *policy.Set, b *Batch, logger *slog.Logger) (*ApplyResult, error) {
	result := &ApplyResult{
		Objects: make([]ObjectInfo, 0, len(b.Objects)),
		Writes:  make([]WriteResult, 0, len(b.Writes)),
	}

	// Guards key their ledgers by handle, so every ref to one stored object
	// must resolve to the same *Handle.
	handles := make(map[string]*store.Handle, len(b.Objects))
	byID := make(map[string]*store.Handle, len(b.Objects))
	for _, o := range b.Objects {
		h, ok := byID[o.ID]
		if !ok {
			var err error
			if o.ID != "" {
				h, err = st.Load(ctx, o.ID)
			} else {
				h, err = st.Create(ctx, o.Kind)
			}
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", o.Ref, err)
			}
			byID[h.ID] = h
		}
		handles[o.Ref] = h
		result.Objects = append(result.Objects, ObjectInfo{Ref: o.Ref, ID: h.ID, Kind: h.Kind})
	}

	router := policy.NewRouter[store.Handle](set, st.Writer(ctx), handleKind, guard.WithLogger(logger))

	for _, w := range b.Writes {
		wr := WriteResult{Object: w.Object, Attr: w.Attr, Outcome: "ok"}
		err := router.SetAttr(handles[w.Object], w.Attr, w.Value)
		switch {
		case err == nil:
			result.Applied++
		case guard.IsProtectedError(err):
			wr.Outcome = "protected"
			wr.Error = err.Error()
			result.Rejected++
		default:
			wr.Outcome = "error"
			wr.Error = err.Error()
			result.Failed++
		}
		result.Writes = append(result.Writes, wr)
	}

	stored, err := st.ListObjects(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	result.Stored = len(stored)

	return result, nil
}

func handleKind(h *store.Handle) string {
	return h.Kind
}

func outputApply(formatter *OutputFormatter, result *ApplyResult) error {
	failed := result.Rejected + result.Failed

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if failed > 0 {
			code := ErrCodeProtected
			if result.Rejected == 0 {
				code = ErrCodeWriteFailed
			}
			response.Status = "error"
			response.Error = &CLIError{
				Code:    code,
				Message: fmt.Sprintf("%d write(s) rejected, %d failed", result.Rejected, result.Failed),
			}
		}
		if err := formatter.Response(response); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, o := range result.Objects {
			fmt.Fprintf(w, "%s = %s (%s)\n", o.Ref, o.ID, o.Kind)
		}
		for _, wr := range result.Writes {
			if wr.Outcome == "ok" {
				fmt.Fprintf(w, "✓ %s.%s\n", wr.Object, wr.Attr)
				continue
			}
			fmt.Fprintf(w, "✗ %s.%s: %s\n", wr.Object, wr.Attr, wr.Error)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Apply Summary: %d applied, %d rejected, %d failed\n", result.Applied, result.Rejected, result.Failed)
		fmt.Fprintf(w, "Store: %d object(s)\n", result.Stored)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d write(s) rejected, %d failed", result.Rejected, result.Failed))
	}
	return nil
}
