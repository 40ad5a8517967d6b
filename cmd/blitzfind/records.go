package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
)

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the record stored under id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(s session) error {
				rec, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newQueryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "query <id>",
		Short: "Look id up and report whether it exists instead of failing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(s session) error {
				res, err := s.Query(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newSetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "set <id> <json>",
		Short:   "Create or replace the record stored under id",
		Example: `  blitzfind set custom_001 '{"name":"Custom Location","type":"office"}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("%w: value is not valid JSON", app_errors.ErrInvalidInput)
			}
			return c.withSession(cmd.Context(), func(s session) error {
				res, err := s.Set(cmd.Context(), args[0], json.RawMessage(args[1]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), struct {
					*domain.Record
					Created bool `json:"created"`
				}{res.Record, res.Created})
			})
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove the record stored under id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(s session) error {
				deleted, err := s.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("%w: %s", app_errors.ErrNotFound, args[0])
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			})
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	var skip, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List record ids with their timestamps, ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd.Context(), func(s session) error {
				page, err := s.List(cmd.Context(), skip, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), newListing(page))
			})
		},
	}
	cmd.Flags().IntVar(&skip, "skip", 0, "number of records to skip")
	cmd.Flags().IntVar(&limit, "limit", domain.DefaultListLimit, "maximum number of records to return")
	return cmd
}

type listingEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listing struct {
	Total int64          `json:"total"`
	Skip  int            `json:"skip"`
	Limit int            `json:"limit"`
	Data  []listingEntry `json:"data"`
}

func newListing(page *domain.Page) listing {
	out := listing{Total: page.Total, Skip: page.Skip, Limit: page.Limit, Data: make([]listingEntry, 0, len(page.Records))}
	for _, rec := range page.Records {
		out.Data = append(out.Data, listingEntry{ID: rec.ID, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt})
	}
	return out
}
