package repository

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
	"github.com/poiesic/docket/storage/badger"
	"github.com/poiesic/docket/storage/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPath      = "testdb"
	testContainer = "notes"
)

type note struct {
	core.DocumentBase
	Name  string  `json:"name"`
	Score float64 `json:"score,omitempty"`
}

func newNote(id, name string) note {
	return note{DocumentBase: core.DocumentBase{Id: id}, Name: name}
}

type summary struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// providers returns every provider implementation the shared tests run against.
func providers(t *testing.T) map[string]storage.Provider {
	t.Helper()
	bp, err := badger.NewMemoryProvider()
	require.NoError(t, err)
	t.Cleanup(func() { bp.Close() })

	return map[string]storage.Provider{
		"mock":   mock.NewMockProvider(),
		"badger": bp,
	}
}

func newTestRepository(t *testing.T, provider storage.Provider, opts ...Option) *Repository[note] {
	t.Helper()
	repo, err := New[note](provider, Config{DatabasePath: testPath, ContainerName: testContainer}, opts...)
	require.NoError(t, err)
	return repo
}

func TestNew_Validation(t *testing.T) {
	provider := mock.NewMockProvider()

	tests := []struct {
		name     string
		provider storage.Provider
		config   Config
		wantErr  error
	}{
		{"missing provider", nil, Config{DatabasePath: testPath, ContainerName: testContainer}, ErrProviderRequired},
		{"missing path", provider, Config{ContainerName: testContainer}, ErrDatabasePathRequired},
		{"missing container", provider, Config{DatabasePath: testPath}, ErrContainerNameRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := New[note](tt.provider, tt.config)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, repo)
		})
	}
}

func TestRepository_Config(t *testing.T) {
	repo := newTestRepository(t, mock.NewMockProvider())
	cfg := repo.Config()
	assert.Equal(t, testPath, cfg.DatabasePath)
	assert.Equal(t, testContainer, cfg.ContainerName)
	assert.False(t, cfg.Log)
}

func TestRepository_AddGetRoundTrip(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			id, err := repo.AddItem(ctx, newNote("a", "first"))
			require.NoError(t, err)
			assert.Equal(t, "a", id)

			got, found, err := repo.GetItem(ctx, "a")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, newNote("a", "first"), got)
		})
	}
}

func TestRepository_UpdateReplaces(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			_, err := repo.AddItem(ctx, newNote("a", "first"))
			require.NoError(t, err)

			id, err := repo.UpdateItem(ctx, newNote("a", "second"))
			require.NoError(t, err)
			assert.Equal(t, "a", id)

			got, found, err := repo.GetItem(ctx, "a")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "second", got.Name)
		})
	}
}

func TestRepository_GetMissingIsAbsent(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			repo := newTestRepository(t, provider)

			got, found, err := repo.GetItem(context.Background(), "nope")
			require.NoError(t, err)
			assert.False(t, found)
			assert.Equal(t, note{}, got)

			// the empty id can never be stored
			got, found, err = repo.GetItem(context.Background(), "")
			require.NoError(t, err)
			assert.False(t, found)
			assert.Equal(t, note{}, got)
		})
	}
}

func TestRepository_DeleteThenGet(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			_, err := repo.AddItem(ctx, newNote("a", "first"))
			require.NoError(t, err)
			require.NoError(t, repo.DeleteItem(ctx, "a"))

			_, found, err := repo.GetItem(ctx, "a")
			require.NoError(t, err)
			assert.False(t, found)

			// deleting again is not an error
			assert.NoError(t, repo.DeleteItem(ctx, "a"))
			assert.NoError(t, repo.DeleteItem(ctx, ""))
		})
	}
}

func TestRepository_DeleteAllEmpties(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			_, err := repo.AddItems(ctx, []note{newNote("a", "1"), newNote("b", "2")})
			require.NoError(t, err)
			require.NoError(t, repo.DeleteAll(ctx))

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			assert.Nil(t, all)
		})
	}
}

func TestRepository_GetAllEmptyIsNil(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			all, skipped, err := newTestRepository(t, provider).GetAllWithSkipped(context.Background())
			require.NoError(t, err)
			assert.Nil(t, all)
			assert.Zero(t, skipped)
		})
	}
}

func TestRepository_AddItemsThenGetAll(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			input := []note{newNote("b", "2"), newNote("a", "1"), newNote("c", "3")}
			out, err := repo.AddItems(ctx, input)
			require.NoError(t, err)
			assert.Equal(t, input, out)

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, input, all)
		})
	}
}

func TestRepository_UpdateItems(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			_, err := repo.AddItems(ctx, []note{newNote("a", "1"), newNote("b", "2")})
			require.NoError(t, err)

			updated := []note{newNote("a", "one"), newNote("b", "two")}
			out, err := repo.UpdateItems(ctx, updated)
			require.NoError(t, err)
			assert.Equal(t, updated, out)

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, updated, all)
		})
	}
}

func TestRepository_GetItemByIDNamePair(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			_, err := repo.AddItem(ctx, newNote("a", "first"))
			require.NoError(t, err)

			// Name is ignored
			got, found, err := repo.GetItemByIDNamePair(ctx, core.IDNamePair{Id: "a", Name: "something else"})
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "first", got.Name)
		})
	}
}

func TestRepository_SingleItemScenario(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			_, err := repo.AddItem(ctx, newNote("a", "x"))
			require.NoError(t, err)

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "a", all[0].Id)
			assert.Equal(t, "x", all[0].Name)
		})
	}
}

func TestRepository_AddDuplicate(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			_, err := repo.AddItem(ctx, newNote("a", "first"))
			require.NoError(t, err)

			_, err = repo.AddItem(ctx, newNote("a", "again"))
			assert.ErrorIs(t, err, storage.ErrDuplicateKey)
		})
	}
}

func TestRepository_UpdateMissing(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := newTestRepository(t, provider).UpdateItem(context.Background(), newNote("a", "first"))
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestRepository_SerializationFailureStoresNothing(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			bad := newNote("a", "nan")
			bad.Score = math.NaN()

			_, err := repo.AddItem(ctx, bad)
			assert.ErrorIs(t, err, storage.ErrSerializationFailed)

			_, found, err := repo.GetItem(ctx, "a")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestRepository_WriteRejectsEmptyID(t *testing.T) {
	provider := mock.NewMockProvider()
	repo := newTestRepository(t, provider)

	_, err := repo.AddItem(context.Background(), newNote("", "anonymous"))
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
	assert.ErrorIs(t, err, core.ErrEmptyID)
	assert.Zero(t, provider.GetMockContainer(testPath, testContainer).CallCount("Add"))
}

func TestRepository_NilPointerDocument(t *testing.T) {
	repo, err := New[*note](mock.NewMockProvider(), Config{DatabasePath: testPath, ContainerName: testContainer})
	require.NoError(t, err)

	_, err = repo.AddItem(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestRepository_BatchStopsAtFailure(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			bad := newNote("b", "nan")
			bad.Score = math.NaN()

			_, err := repo.AddItems(ctx, []note{newNote("a", "1"), bad, newNote("c", "3")})
			require.Error(t, err)
			assert.ErrorIs(t, err, storage.ErrSerializationFailed)

			var batchErr *BatchError
			require.ErrorAs(t, err, &batchErr)
			assert.Equal(t, 1, batchErr.Index)
			assert.Equal(t, 1, batchErr.Written())
			assert.Equal(t, "b", batchErr.ID)

			_, found, err := repo.GetItem(ctx, "a")
			require.NoError(t, err)
			assert.True(t, found, "items before the failure stay written")

			_, found, err = repo.GetItem(ctx, "c")
			require.NoError(t, err)
			assert.False(t, found, "items after the failure are not attempted")
		})
	}
}

func TestRepository_BatchContainerFailure(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewMockProvider()
	container := provider.GetMockContainer(testPath, testContainer)
	boom := errors.New("disk on fire")
	container.UpdateFunc = func(ctx context.Context, key, value string) error {
		if key == "b" {
			return boom
		}
		return nil
	}

	_, err := newTestRepository(t, provider).UpdateItems(ctx, []note{newNote("a", "1"), newNote("b", "2"), newNote("c", "3")})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, container.CallCount("Update"))
}

func TestRepository_GetAllSkipsCorrupt(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewMockProvider()
	container := provider.GetMockContainer(testPath, testContainer)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	repo := newTestRepository(t, provider, WithLogger(logger))

	_, err := repo.AddItems(ctx, []note{newNote("a", "1"), newNote("c", "3")})
	require.NoError(t, err)
	container.Put("b", "{not json")
	container.Put("d", `"just a string"`)

	all, skipped, err := repo.GetAllWithSkipped(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, []note{newNote("a", "1"), newNote("c", "3")}, all)
	assert.Contains(t, buf.String(), "skipping undecodable document")

	plain, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, plain)
}

func TestRepository_GetAllEveryItemCorrupt(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.GetMockContainer(testPath, testContainer).Put("a", "garbage")

	all, skipped, err := newTestRepository(t, provider).GetAllWithSkipped(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestRepository_GetItemCorrupt(t *testing.T) {
	provider := mock.NewMockProvider()
	container := provider.GetMockContainer(testPath, testContainer)
	container.Put("a", "garbage")
	container.Put("n", "null")

	repo := newTestRepository(t, provider)
	_, found, err := repo.GetItem(context.Background(), "a")
	assert.ErrorIs(t, err, storage.ErrDeserializationFailed)
	assert.False(t, found)

	ptrRepo, err := New[*note](provider, Config{DatabasePath: testPath, ContainerName: testContainer})
	require.NoError(t, err)
	got, found, err := ptrRepo.GetItem(context.Background(), "n")
	assert.ErrorIs(t, err, storage.ErrDeserializationFailed)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestRepository_ProviderErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewMockProvider()
	boom := errors.New("provider down")
	provider.GetFunc = func(ctx context.Context, databasePath, containerName string) (storage.Container, error) {
		return nil, boom
	}
	repo := newTestRepository(t, provider)

	_, _, err := repo.GetItem(ctx, "a")
	assert.Same(t, boom, err)
	_, err = repo.GetAll(ctx)
	assert.Same(t, boom, err)
	_, err = repo.AddItem(ctx, newNote("a", "1"))
	assert.Same(t, boom, err)
	_, err = repo.AddItems(ctx, []note{newNote("a", "1")})
	assert.Same(t, boom, err)
	_, err = repo.UpdateItem(ctx, newNote("a", "1"))
	assert.Same(t, boom, err)
	_, err = repo.UpdateItems(ctx, []note{newNote("a", "1")})
	assert.Same(t, boom, err)
	assert.Same(t, boom, repo.DeleteItem(ctx, "a"))
	assert.Same(t, boom, repo.DeleteAll(ctx))
	_, err = repo.Query(ctx)
	assert.Same(t, boom, err)
}

func TestRepository_ContainerErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewMockProvider()
	container := provider.GetMockContainer(testPath, testContainer)
	boom := errors.New("container down")
	container.GetFunc = func(ctx context.Context, key string) (string, bool, error) { return "", false, boom }
	container.GetAllFunc = func(ctx context.Context) ([]string, error) { return nil, boom }
	container.AddFunc = func(ctx context.Context, key, value string) error { return boom }
	container.DeleteFunc = func(ctx context.Context, key string) error { return boom }
	container.DeleteAllFunc = func(ctx context.Context) error { return boom }
	repo := newTestRepository(t, provider)

	_, _, err := repo.GetItem(ctx, "a")
	assert.Same(t, boom, err)
	_, err = repo.GetAll(ctx)
	assert.Same(t, boom, err)
	_, err = repo.AddItem(ctx, newNote("a", "1"))
	assert.Same(t, boom, err)
	assert.Same(t, boom, repo.DeleteItem(ctx, "a"))
	assert.Same(t, boom, repo.DeleteAll(ctx))
}

func TestRepository_ResolvesContainerPerCall(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewMockProvider()
	repo := newTestRepository(t, provider)

	_, err := repo.AddItem(ctx, newNote("a", "1"))
	require.NoError(t, err)
	_, _, err = repo.GetItem(ctx, "a")
	require.NoError(t, err)
	_, err = repo.GetAll(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteItem(ctx, "a"))

	assert.Equal(t, 4, provider.GetCallCount())
}

func TestRepository_ContainerIsolation(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			notes := newTestRepository(t, provider)
			others, err := New[note](provider, Config{DatabasePath: testPath, ContainerName: "others"})
			require.NoError(t, err)

			_, err = notes.AddItem(ctx, newNote("a", "note"))
			require.NoError(t, err)
			_, err = others.AddItem(ctx, newNote("a", "other"))
			require.NoError(t, err)

			require.NoError(t, others.DeleteAll(ctx))

			got, found, err := notes.GetItem(ctx, "a")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "note", got.Name)
		})
	}
}

func TestRepository_Query(t *testing.T) {
	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTestRepository(t, provider)

			_, err := repo.AddItems(ctx, []note{newNote("a", "alpha"), newNote("b", "beta"), newNote("c", "gamma")})
			require.NoError(t, err)

			q, err := repo.Query(ctx)
			require.NoError(t, err)
			got, err := GetItems(ctx, repo, q.Where(func(n note) bool { return n.Name != "beta" }))
			require.NoError(t, err)
			assert.Equal(t, []note{newNote("a", "alpha"), newNote("c", "gamma")}, got)
		})
	}
}

func TestBuildQueryable_Projection(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, mock.NewMockProvider())
	_, err := repo.AddItems(ctx, []note{newNote("a", "alpha"), newNote("b", "beta")})
	require.NoError(t, err)

	q, err := BuildQueryable[summary](ctx, repo)
	require.NoError(t, err)

	first, ok, err := q.OrderBy(func(x, y summary) int { return strings.Compare(y.Name, x.Name) }).First(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summary{Id: "b", Name: "beta"}, first)
}

func TestBuildQueryable_IsLazy(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewMockProvider()
	container := provider.GetMockContainer(testPath, testContainer)
	repo := newTestRepository(t, provider)

	q, err := repo.Query(ctx)
	require.NoError(t, err)
	assert.Zero(t, container.CallCount("Scan"))

	// items added after building are visible at evaluation time
	_, err = repo.AddItem(ctx, newNote("a", "late"))
	require.NoError(t, err)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, container.CallCount("Scan"))
}

func TestRepository_Logging(t *testing.T) {
	ctx := context.Background()

	newLogged := func(t *testing.T, log bool) (*Repository[note], *bytes.Buffer) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		repo, err := New[note](mock.NewMockProvider(),
			Config{DatabasePath: testPath, ContainerName: testContainer, Log: log},
			WithLogger(logger))
		require.NoError(t, err)
		return repo, &buf
	}

	t.Run("enabled", func(t *testing.T) {
		repo, buf := newLogged(t, true)
		_, err := repo.AddItem(ctx, newNote("a", "payload-name"))
		require.NoError(t, err)
		_, _, err = repo.GetItem(ctx, "a")
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "level=DEBUG")
		assert.Contains(t, out, "method=AddItem")
		assert.Contains(t, out, "method=GetItem")
		assert.Contains(t, out, "container=notes")
		assert.Contains(t, out, "payload-name")
	})

	t.Run("disabled", func(t *testing.T) {
		repo, buf := newLogged(t, false)
		_, err := repo.AddItem(ctx, newNote("a", "payload-name"))
		require.NoError(t, err)
		_, _, err = repo.GetItem(ctx, "a")
		require.NoError(t, err)

		assert.Empty(t, buf.String())
	})

	t.Run("delete all always warns", func(t *testing.T) {
		repo, buf := newLogged(t, false)
		require.NoError(t, repo.DeleteAll(ctx))

		out := buf.String()
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, "deleting all documents")
		assert.Contains(t, out, "container=notes")
	})
}

func TestRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, provider := range providers(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := newTestRepository(t, provider).GetItem(ctx, "a")
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
