package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Belphemur/tagcache/internal/tag"
)

func newKeysCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List all live cache keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			keys, err := c.Keys(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			slices.Sort(keys)
			return printKeys(cmd.OutOrStdout(), keys, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newExpireCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "expire <selector>",
		Short: "Expire keys by name, tag or exact key",
		Long: `Expire every key whose name or one of whose tags equals the selector,
and the key whose canonical string equals it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			deleted, err := c.ExpireKey(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to expire %q: %w", args[0], err)
			}
			return printExpired(cmd.OutOrStdout(), deleted)
		},
	}
}

func newExpireForCmd(a *app) *cobra.Command {
	var types []string
	cmd := &cobra.Command{
		Use:   "expire-for [--type T]... [tag]...",
		Short: "Expire keys related to all of the given tags",
		Long: `Expire every key that matches all of the given tags.

A tag of the form type[id] is an instance tag; any other tag is a literal.
--type names a type and matches its instances and its collection tag.`,
		Example: `  tagcache expire-for user[42]
  tagcache expire-for --type Invoice report
  tagcache expire-for --type sample_type --type account`,
		RunE: func(cmd *cobra.Command, args []string) error {
			objs := make([]any, 0, len(types)+len(args))
			for _, t := range types {
				objs = append(objs, tag.TypeNamed(t))
			}
			for _, raw := range args {
				objs = append(objs, tag.Parse(raw))
			}
			if len(objs) == 0 {
				return errors.New("at least one tag or --type is required")
			}

			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			deleted, err := c.ExpireFor(cmd.Context(), objs...)
			if err != nil {
				return fmt.Errorf("failed to expire tags: %w", err)
			}
			raws := make([]string, len(deleted))
			for i, k := range deleted {
				raws[i] = k.String()
			}
			return printExpired(cmd.OutOrStdout(), raws)
		},
	}
	cmd.Flags().StringArrayVar(&types, "type", nil, "type name to match (repeatable)")
	return cmd
}

func newFlushCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Delete every cache key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to flush without --yes")
			}
			c, err := a.openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.ExpireAll(cmd.Context()); err != nil {
				return fmt.Errorf("failed to flush cache: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Cache flushed")
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every key")
	return cmd
}

func printKeys(w io.Writer, keys []string, asJSON bool) error {
	if asJSON {
		if keys == nil {
			keys = []string{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	}
	for _, k := range keys {
		if _, err := fmt.Fprintln(w, k); err != nil {
			return err
		}
	}
	return nil
}

func printExpired(w io.Writer, keys []string) error {
	slices.Sort(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintln(w, k); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d key(s) expired\n", len(keys))
	return err
}
