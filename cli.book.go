package main

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"
)

// cliValue converts a flag value into what the validator expects: a year
// that parses as an integer is passed as such, anything else is kept as
// text so that a wrong year is reported as not being an integer.
func cliValue(field, raw string) any {
	if field == FieldYearPublished {
		if year, err := strconv.Atoi(raw); err == nil {
			return year
		}
	}
	return raw
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withBookService opens the configured backend, runs fn then releases everything.
// Events are queued when the journal is enabled but only the server consumes them.
func withBookService(cmd *cobra.Command, opts *cliOptions, fn func(ctx context.Context, bs *BookService) error) error {
	config, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := NewCommandLogger(cmd.ErrOrStderr())
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	backend, err := OpenBackend(ctx, logger, config, false)
	if err != nil {
		return err
	}
	defer backend.Close()

	bs := NewBookService(logger, NewClock(config.IsProduction), backend.Storage, backend.Queue, nil, nil)
	return fn(ctx, bs)
}

func parseBookIDArg(raw string) (int64, error) {
	return ParseBookID(raw)
}

func newBookCommand(opts *cliOptions) *cobra.Command {
	book := &cobra.Command{
		Use:   "book",
		Short: "Manage book records directly in the configured storage",
	}
	book.AddCommand(
		newBookAddCommand(opts),
		newBookGetCommand(opts),
		newBookListCommand(opts),
		newBookUpdateCommand(opts),
		newBookDeleteCommand(opts),
	)
	return book
}

func newBookAddCommand(opts *cliOptions) *cobra.Command {
	var name, author, year, bookType string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new book",
		Long: `Add validates then stores a new book with status "available".

Example:
  bookrecords book add --name "Dune" --author "Frank Herbert" --year 1965 --type Novel`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := BookInput{
				Name:          name,
				Author:        author,
				YearPublished: cliValue(FieldYearPublished, year),
				BookType:      bookType,
			}
			return withBookService(cmd, opts, func(ctx context.Context, bs *BookService) error {
				created, err := bs.Create(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd, created)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name of the book")
	cmd.Flags().StringVar(&author, "author", "", "author of the book")
	cmd.Flags().StringVar(&year, "year", "", "publication year")
	cmd.Flags().StringVar(&bookType, "type", "", "type of the book")
	return cmd
}

func newBookGetCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookIDArg(args[0])
			if err != nil {
				return err
			}
			return withBookService(cmd, opts, func(ctx context.Context, bs *BookService) error {
				found, err := bs.GetOne(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, found)
			})
		},
	}
}

func newBookListCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBookService(cmd, opts, func(ctx context.Context, bs *BookService) error {
				books, err := bs.GetAll(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, books)
			})
		},
	}
}

func newBookUpdateCommand(opts *cliOptions) *cobra.Command {
	var field, value string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change one field of a book",
		Long: `Update sets a single field then commits the book. The change is
rejected as a whole if the resulting record breaks a rule.

Example:
  bookrecords book update 3 --field status --value borrowed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookIDArg(args[0])
			if err != nil {
				return err
			}
			return withBookService(cmd, opts, func(ctx context.Context, bs *BookService) error {
				updated, err := bs.UpdateField(ctx, id, field, cliValue(field, value))
				if err != nil {
					return err
				}
				return printJSON(cmd, updated)
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "field to change: name, author, year_published, book_type or status")
	cmd.Flags().StringVar(&value, "value", "", "new value of the field")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}

func newBookDeleteCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookIDArg(args[0])
			if err != nil {
				return err
			}
			return withBookService(cmd, opts, func(ctx context.Context, bs *BookService) error {
				if _, err := bs.Delete(ctx, id); err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"deleted": id})
			})
		},
	}
}
