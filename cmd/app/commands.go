package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/itemdesk/internal"
	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/models"
	"github.com/starford/itemdesk/internal/snapshot"
)

// withItems loads config, opens the configured store and runs fn against it.
func withItems(ctx context.Context, cmd *cli.Command, fn func(*internal.Items) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	items, err := internal.OpenItems(ctx, cfg.Storage, itemstore.WithLogger(logger))
	if err != nil {
		return err
	}
	defer items.Close()
	return fn(items)
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func idArg(cmd *cli.Command) (int64, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("missing item id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

func fieldFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Item name (at least 3 characters)", Required: true},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Item description", Required: true},
		&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "high, medium or low", Required: true},
	}
}

func fieldsFrom(cmd *cli.Command) itemstore.Fields {
	return itemstore.Fields{
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		Priority:    models.Priority(cmd.String("priority")),
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Create an item",
		Flags: fieldFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withItems(ctx, cmd, func(items *internal.Items) error {
				it, err := items.Store.Add(ctx, fieldsFrom(cmd))
				if err != nil {
					return err
				}
				ok(stdout(cmd), fmt.Sprintf("added %d", it.ID))
				return nil
			})
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Replace name, description and priority of an item",
		ArgsUsage: "<id>",
		Flags:     fieldFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := idArg(cmd)
			if err != nil {
				return err
			}
			return withItems(ctx, cmd, func(items *internal.Items) error {
				it, found, err := items.Store.Update(ctx, id, fieldsFrom(cmd))
				if err != nil {
					return err
				}
				if !found {
					fail(stdout(cmd), fmt.Sprintf("item %d not found", id))
					return nil
				}
				ok(stdout(cmd), fmt.Sprintf("updated %d", it.ID))
				return nil
			})
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete an item",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := idArg(cmd)
			if err != nil {
				return err
			}
			return withItems(ctx, cmd, func(items *internal.Items) error {
				removed, err := items.Store.Remove(ctx, id)
				if err != nil {
					return err
				}
				if removed {
					ok(stdout(cmd), fmt.Sprintf("removed %d", id))
				} else {
					fmt.Fprintln(stdout(cmd), mutedStyle.Render(fmt.Sprintf("item %d did not exist", id)))
				}
				return nil
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List items, newest first",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Filter by name substring"},
			&cli.StringFlag{Name: "priority", Aliases: []string{"p"}, Usage: "Filter by priority"},
			&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Usage: "newest or oldest", Value: string(itemstore.SortNewest)},
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "page-size", Usage: "Items per page (defaults to list.page_size)"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := queryFrom(cmd, cfg.List.PageSize)
			if err != nil {
				return err
			}
			return withItems(ctx, cmd, func(items *internal.Items) error {
				w := stdout(cmd)
				if cmd.Args().Present() {
					id, err := idArg(cmd)
					if err != nil {
						return err
					}
					it, err := items.Store.Get(id)
					if err != nil {
						return err
					}
					if cmd.Bool("json") {
						return writeJSON(w, it)
					}
					renderItem(w, it)
					return nil
				}
				page := items.Store.List(q)
				if cmd.Bool("json") {
					return writeJSON(w, page)
				}
				renderPage(w, page)
				return nil
			})
		},
	}
}

func queryFrom(cmd *cli.Command, defaultPageSize int) (itemstore.Query, error) {
	q := itemstore.Query{
		Filter:   itemstore.Filter{Name: cmd.String("name")},
		Page:     int(cmd.Int("page")),
		PageSize: int(cmd.Int("page-size")),
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}
	if raw := cmd.String("priority"); raw != "" {
		p, valid := models.ParsePriority(raw)
		if !valid {
			return q, errors.New(itemstore.MsgPriority)
		}
		q.Filter.Priority = p
	}
	sort, err := itemstore.ParseSort(cmd.String("sort"))
	if err != nil {
		return q, err
	}
	q.Sort = sort
	return q, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFor(flag, path string) (snapshot.Format, error) {
	if flag != "" {
		return snapshot.ParseFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return snapshot.FormatYAML, nil
	}
	return snapshot.FormatJSON, nil
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write all items as a JSON or YAML document",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json or yaml (default from --output extension)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			out := cmd.String("output")
			format, err := formatFor(cmd.String("format"), out)
			if err != nil {
				return err
			}
			return withItems(ctx, cmd, func(items *internal.Items) error {
				data, err := snapshot.Export(items.Store.All(), format, time.Now())
				if err != nil {
					return err
				}
				if out == "" {
					_, err = stdout(cmd).Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				ok(os.Stderr, fmt.Sprintf("exported %d items to %s", len(items.Store.All()), out))
				return nil
			})
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Replace all items with the contents of a document",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json or yaml (default from file extension)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("missing input file")
			}
			format, err := formatFor(cmd.String("format"), path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			imported, err := snapshot.Import(data, format)
			if err != nil {
				return err
			}
			return withItems(ctx, cmd, func(items *internal.Items) error {
				if err := items.Store.Replace(ctx, imported); err != nil {
					return err
				}
				ok(stdout(cmd), fmt.Sprintf("imported %d items", len(imported)))
				return nil
			})
		},
	}
}
