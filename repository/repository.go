package repository

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/query"
	"github.com/poiesic/docket/storage"
)

// Config locates the container a Repository works on.
type Config struct {
	// DatabasePath identifies the database holding the container.
	DatabasePath string

	// ContainerName is the container within the database.
	ContainerName string

	// Log enables debug logging of every operation, including the full
	// payload of single item writes.
	Log bool
}

// Option configures a Repository.
type Option func(*settings) error

type settings struct {
	logger *slog.Logger
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// Repository is a typed CRUD façade over one container.
// It is safe for concurrent use if the provider and container are.
type Repository[D core.Document] struct {
	provider storage.Provider
	config   Config
	typeName string
	logger   *slog.Logger
}

// New creates a repository for documents of type D stored in the container
// config names. Nothing is opened until the first operation.
func New[D core.Document](provider storage.Provider, config Config, opts ...Option) (*Repository[D], error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if config.DatabasePath == "" {
		return nil, ErrDatabasePathRequired
	}
	if config.ContainerName == "" {
		return nil, ErrContainerNameRequired
	}

	s := &settings{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return &Repository[D]{
		provider: provider,
		config:   config,
		typeName: reflect.TypeFor[D]().String(),
		logger:   s.logger,
	}, nil
}

// Config returns the repository configuration.
func (r *Repository[D]) Config() Config {
	return r.config
}

// container resolves the container handle for this call.
func (r *Repository[D]) container(ctx context.Context) (storage.Container, error) {
	return r.provider.Get(ctx, r.config.DatabasePath, r.config.ContainerName)
}

func (r *Repository[D]) debug(ctx context.Context, method string, args ...any) {
	if !r.config.Log {
		return
	}
	attrs := append([]any{"method", method, "type", r.typeName, "container", r.config.ContainerName}, args...)
	r.logger.DebugContext(ctx, "repository operation", attrs...)
}

// GetItem retrieves the document stored under id.
// found is false, with a nil error, when no such document exists.
func (r *Repository[D]) GetItem(ctx context.Context, id string) (doc D, found bool, err error) {
	r.debug(ctx, "GetItem", "id", id)

	c, err := r.container(ctx)
	if err != nil {
		return doc, false, err
	}

	value, found, err := c.Get(ctx, id)
	if err != nil || !found {
		return doc, false, err
	}

	doc, err = storage.UnmarshalDocument[D](value)
	if err != nil {
		var zero D
		return zero, false, fmt.Errorf("%s %q: %w", r.config.ContainerName, id, err)
	}
	return doc, true, nil
}

// GetItemByIDNamePair retrieves the document pair refers to.
// It is exactly GetItem(ctx, pair.Id).
func (r *Repository[D]) GetItemByIDNamePair(ctx context.Context, pair core.IDNamePair) (D, bool, error) {
	return r.GetItem(ctx, pair.Id)
}

// GetAll retrieves every document in the container, ordered as the container
// lists them. Returns nil when the container is empty. Documents that fail to
// decode are skipped; see GetAllWithSkipped.
func (r *Repository[D]) GetAll(ctx context.Context) ([]D, error) {
	docs, _, err := r.GetAllWithSkipped(ctx)
	return docs, err
}

// GetAllWithSkipped is GetAll that also reports how many stored items were
// skipped because they could not be decoded.
func (r *Repository[D]) GetAllWithSkipped(ctx context.Context) (docs []D, skipped int, err error) {
	r.debug(ctx, "GetAll")

	c, err := r.container(ctx)
	if err != nil {
		return nil, 0, err
	}

	values, err := c.GetAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	if len(values) == 0 {
		return nil, 0, nil
	}

	docs = make([]D, 0, len(values))
	for i, value := range values {
		doc, err := storage.UnmarshalDocument[D](value)
		if err != nil {
			skipped++
			r.logger.WarnContext(ctx, "skipping undecodable document",
				"type", r.typeName, "container", r.config.ContainerName, "index", i, "err", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

// AddItem stores a new document and returns its id.
// The document is validated and serialized before the container is touched;
// failures are reported as core.ErrInvalidDocument or
// storage.ErrSerializationFailed. Key collisions are the container's call.
func (r *Repository[D]) AddItem(ctx context.Context, doc D) (string, error) {
	return r.writeItem(ctx, "AddItem", doc, storage.Container.Add)
}

// AddItems stores documents one at a time, in order, and returns the input
// slice. On failure it stops and returns a *BatchError; earlier documents
// remain stored.
func (r *Repository[D]) AddItems(ctx context.Context, docs []D) ([]D, error) {
	return r.writeItems(ctx, "AddItems", docs, storage.Container.Add)
}

// UpdateItem replaces a stored document and returns its id.
// It follows the AddItem contract, routed to the container's update.
func (r *Repository[D]) UpdateItem(ctx context.Context, doc D) (string, error) {
	return r.writeItem(ctx, "UpdateItem", doc, storage.Container.Update)
}

// UpdateItems replaces documents one at a time, in order, and returns the
// input slice. It follows the AddItems contract.
func (r *Repository[D]) UpdateItems(ctx context.Context, docs []D) ([]D, error) {
	return r.writeItems(ctx, "UpdateItems", docs, storage.Container.Update)
}

// DeleteItem removes the document stored under id.
// Whether a missing id is an error is up to the container.
func (r *Repository[D]) DeleteItem(ctx context.Context, id string) error {
	r.debug(ctx, "DeleteItem", "id", id)

	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	return c.Delete(ctx, id)
}

// DeleteAll irreversibly removes every document in the container.
// It always logs a warning, whether or not logging is enabled.
func (r *Repository[D]) DeleteAll(ctx context.Context) error {
	r.logger.WarnContext(ctx, "deleting all documents",
		"method", "DeleteAll", "type", r.typeName,
		"db", r.config.DatabasePath, "container", r.config.ContainerName)

	c, err := r.container(ctx)
	if err != nil {
		return err
	}
	return c.DeleteAll(ctx)
}

// writeFunc is a container write: storage.Container.Add or storage.Container.Update.
type writeFunc func(c storage.Container, ctx context.Context, key, value string) error

func (r *Repository[D]) writeItem(ctx context.Context, method string, doc D, write writeFunc) (string, error) {
	if r.config.Log && !core.IsNil(doc) {
		pretty, err := storage.MarshalDocumentIndent(doc)
		if err != nil {
			pretty = err.Error()
		}
		r.debug(ctx, method, "document", pretty)
	}

	id, serialized, err := serialize(doc)
	if err != nil {
		return "", err
	}

	c, err := r.container(ctx)
	if err != nil {
		return "", err
	}

	if err := write(c, ctx, id, serialized); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository[D]) writeItems(ctx context.Context, method string, docs []D, write writeFunc) ([]D, error) {
	r.debug(ctx, method, "count", len(docs))

	c, err := r.container(ctx)
	if err != nil {
		return nil, err
	}

	for i, doc := range docs {
		id, serialized, err := serialize(doc)
		if err == nil {
			err = write(c, ctx, id, serialized)
		}
		if err != nil {
			return nil, &BatchError{Index: i, ID: id, Err: err}
		}
	}
	return docs, nil
}

// serialize validates doc and renders it as JSON.
func serialize[D core.Document](doc D) (id, serialized string, err error) {
	if err := core.ValidateDocument(doc); err != nil {
		return "", "", err
	}
	id = doc.DocumentID()
	serialized, err = storage.MarshalDocument(doc)
	if err != nil {
		return id, "", fmt.Errorf("document %q: %w", id, err)
	}
	return id, serialized, nil
}

// BuildQueryable returns a lazily evaluated query over the repository's
// container, decoding each stored document as T. T can be D itself or any
// projection of it.
func BuildQueryable[T any, D core.Document](ctx context.Context, r *Repository[D]) (*query.Query[T], error) {
	c, err := r.container(ctx)
	if err != nil {
		return nil, err
	}
	return query.FromContainer[T](c), nil
}

// Query returns a lazily evaluated query over the repository's documents.
func (r *Repository[D]) Query(ctx context.Context) (*query.Query[D], error) {
	return BuildQueryable[D](ctx, r)
}

// GetItems evaluates q and returns its results.
func GetItems[T any, D core.Document](ctx context.Context, r *Repository[D], q *query.Query[T]) ([]T, error) {
	r.debug(ctx, "GetItems", "result", reflect.TypeFor[T]().String())
	return q.ToList(ctx)
}
