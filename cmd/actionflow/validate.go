package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	loader "github.com/alexisbeaulieu97/actionflow/internal/infrastructure/config"
)

func newValidateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Check that action documents parse and validate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), a, cmd.OutOrStdout(), args)
		},
	}
	return cmd
}

func runValidate(ctx context.Context, a *app, out io.Writer, paths []string) error {
	l := loader.NewLoader(a.logger)
	var errs []error
	for _, path := range paths {
		if err := l.Validate(ctx, path); err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			errs = append(errs, err)
			continue
		}
		doc, err := l.Load(ctx, path)
		if err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
			errs = append(errs, err)
			continue
		}
		count := len(doc.Order)
		if doc.Root != nil {
			count++
		}
		fmt.Fprintf(out, "✓ %s (%d actions)\n", path, count)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d documents invalid: %w", len(errs), len(paths), errors.Join(errs...))
	}
	return nil
}
