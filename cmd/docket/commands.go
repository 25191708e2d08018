package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/docket"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/query"
	"github.com/poiesic/docket/repository"
	"github.com/poiesic/docket/storage"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

// Id assignment modes for put.
const (
	idNone    = "none"
	idRandom  = "random"
	idContent = "content"
)

// withRepository opens the database and the container named by --container,
// runs fn, and closes the database.
func withRepository(c *cli.Context, fn func(repo *repository.Repository[core.Object]) error) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	repo, err := docket.NewRepository[core.Object](db, c.String("container"))
	if err != nil {
		return err
	}
	return fn(repo)
}

func getCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one ID, got %d", c.NArg())
	}
	id := c.Args().First()

	return withRepository(c, func(repo *repository.Repository[core.Object]) error {
		doc, found, err := repo.GetItem(c.Context, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return writeJSON(c.App.Writer, doc)
	})
}

func listCommand(c *cli.Context) error {
	filters, err := parseFilters(c.StringSlice("where"))
	if err != nil {
		return err
	}
	limit := c.Int("limit")
	if limit < 0 {
		return fmt.Errorf("limit cannot be negative, got %d", limit)
	}

	return withRepository(c, func(repo *repository.Repository[core.Object]) error {
		if len(filters) == 0 && limit == 0 {
			docs, skipped, err := repo.GetAllWithSkipped(c.Context)
			if err != nil {
				return err
			}
			if skipped > 0 {
				slog.Warn("some documents could not be decoded", "container", c.String("container"), "skipped", skipped)
			}
			return writeJSON(c.App.Writer, lo.Ternary(docs == nil, []core.Object{}, docs))
		}

		q, err := repo.Query(c.Context)
		if err != nil {
			return err
		}
		q = applyFilters(q, filters)
		if limit > 0 {
			q = q.Take(limit)
		}
		docs, err := repository.GetItems(c.Context, repo, q)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, lo.Ternary(docs == nil, []core.Object{}, docs))
	})
}

func countCommand(c *cli.Context) error {
	filters, err := parseFilters(c.StringSlice("where"))
	if err != nil {
		return err
	}

	return withRepository(c, func(repo *repository.Repository[core.Object]) error {
		q, err := repo.Query(c.Context)
		if err != nil {
			return err
		}
		n, err := applyFilters(q, filters).Count(c.Context)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, n)
		return err
	})
}

func putCommand(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("expected at most one FILE, got %d", c.NArg())
	}
	mode := c.String("assign-id")
	if !lo.Contains([]string{idNone, idRandom, idContent}, mode) {
		return fmt.Errorf("invalid assign-id %q: must be one of none, random, content", mode)
	}

	data, err := readInput(c.Args().First(), c.App.Reader)
	if err != nil {
		return err
	}
	docs, isArray, err := decodeObjects(data)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := assignID(doc, mode); err != nil {
			return err
		}
	}

	update := c.Bool("update")
	return withRepository(c, func(repo *repository.Repository[core.Object]) error {
		if !isArray {
			write := lo.Ternary(update, repo.UpdateItem, repo.AddItem)
			id, err := write(c.Context, docs[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, id)
			return err
		}

		write := lo.Ternary(update, repo.UpdateItems, repo.AddItems)
		if _, err := write(c.Context, docs); err != nil {
			var batchErr *repository.BatchError
			if errors.As(err, &batchErr) {
				slog.Error("batch stopped", "written", batchErr.Written(), "total", len(docs))
			}
			return err
		}
		for _, doc := range docs {
			if _, err := fmt.Fprintln(c.App.Writer, doc.DocumentID()); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("expected at least one ID")
	}

	return withRepository(c, func(repo *repository.Repository[core.Object]) error {
		for _, id := range c.Args().Slice() {
			if err := repo.DeleteItem(c.Context, id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", id, err)
			}
		}
		return nil
	})
}

func purgeCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to purge container %q without --yes", c.String("container"))
	}

	return withRepository(c, func(repo *repository.Repository[core.Object]) error {
		return repo.DeleteAll(c.Context)
	})
}

func gcCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	if c.IsSet("discard-ratio") {
		return db.RunValueLogGCWithRatio(ctx, c.Float64("discard-ratio"))
	}
	return db.RunValueLogGC(ctx)
}

type filter struct {
	field string
	value string
}

func parseFilters(raw []string) ([]filter, error) {
	filters := make([]filter, 0, len(raw))
	for _, r := range raw {
		field, value, ok := strings.Cut(r, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q: expected field=value", r)
		}
		filters = append(filters, filter{field: field, value: value})
	}
	return filters, nil
}

func applyFilters(q *query.Query[core.Object], filters []filter) *query.Query[core.Object] {
	for _, f := range filters {
		q = q.Where(func(o core.Object) bool {
			return o.Field(f.field) == f.value
		})
	}
	return q
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// decodeObjects accepts a single JSON object or an array of objects.
func decodeObjects(data []byte) (docs []core.Object, isArray bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("no input")
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, true, fmt.Errorf("failed to parse input array: %w", err)
		}
		if len(docs) == 0 {
			return nil, true, fmt.Errorf("input array is empty")
		}
		return docs, true, nil
	}

	var doc core.Object
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, false, fmt.Errorf("failed to parse input object: %w", err)
	}
	return []core.Object{doc}, false, nil
}

// assignID gives doc an id according to mode when it has none.
func assignID(doc core.Object, mode string) error {
	if doc == nil || doc.DocumentID() != "" {
		return nil
	}
	switch mode {
	case idRandom:
		doc[core.ObjectIDField] = core.NewID()
	case idContent:
		serialized, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		doc[core.ObjectIDField] = core.IDFromContent(serialized)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	pretty, err := storage.MarshalDocumentIndent(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, pretty)
	return err
}
