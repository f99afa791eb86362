package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quantmind-br/readtree-go/internal/cache"
	"github.com/quantmind-br/readtree-go/internal/config"
	"github.com/quantmind-br/readtree-go/internal/domain"
	"github.com/quantmind-br/readtree-go/internal/mocks"
)

const treeURL = "https://github.com/owner/repo/tree/main/docs"

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Cache.TTL = time.Hour
	return cfg
}

func treeResponse(sha string, paths ...string) *domain.TreeResponse {
	files := make([]*domain.TreeFile, len(paths))
	for i, p := range paths {
		content := []byte("content of " + p)
		files[i] = domain.NewTreeFile(p, int64(len(content)), time.Time{}, func() ([]byte, error) {
			return content, nil
		})
	}
	return domain.NewTreeResponse(sha, `"`+sha+`"`, files)
}

func notModified(url string) error {
	return domain.NewReadTreeError(url, domain.NewStageError(domain.ErrNotModified, domain.StageResolveRef, nil))
}

func newTestService(t *testing.T, cfg *config.Config, reader domain.TreeReader, c domain.Cache) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), ServiceOptions{
		Config: cfg,
		Reader: reader,
		Cache:  c,
	})
	require.NoError(t, err)
	return svc
}

func paths(resp *domain.TreeResponse) []string {
	var out []string
	for _, f := range resp.Files() {
		out = append(out, f.Path)
	}
	return out
}

func TestNewService(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := NewService(context.Background(), ServiceOptions{})
		assert.Error(t, err)
	})

	t.Run("builds reader without cache", func(t *testing.T) {
		svc, err := NewService(context.Background(), ServiceOptions{Config: testConfig()})
		require.NoError(t, err)
		defer svc.Close()

		assert.NotNil(t, svc.reader)
		assert.Nil(t, svc.cache)
	})

	t.Run("opens badger cache", func(t *testing.T) {
		cfg := testConfig()
		cfg.Cache.Enabled = true
		cfg.Cache.Directory = t.TempDir()

		svc, err := NewService(context.Background(), ServiceOptions{Config: cfg})
		require.NoError(t, err)

		assert.IsType(t, &cache.BadgerCache{}, svc.cache)
		assert.NoError(t, svc.Close())
	})

	t.Run("no-cache wins over config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Cache.Enabled = true
		cfg.Cache.Directory = t.TempDir()

		svc, err := NewService(context.Background(), ServiceOptions{Config: cfg, NoCache: true})
		require.NoError(t, err)

		assert.Nil(t, svc.cache)
	})

	t.Run("rejects bad host", func(t *testing.T) {
		cfg := testConfig()
		cfg.Hosts = []domain.HostConfig{{Host: "github.com/owner"}}

		_, err := NewService(context.Background(), ServiceOptions{Config: cfg})
		assert.Error(t, err)
	})
}

func TestService_ReadTree_NoCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockTreeReader(ctrl)
	want := treeResponse("aaa", "index.md")

	reader.EXPECT().
		ReadTree(gomock.Any(), treeURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
			assert.Empty(t, opts.IfCommit)
			assert.Nil(t, opts.Filter)
			assert.Equal(t, int64(10*1024*1024), opts.MaxFileSize)
			return want, nil
		})

	svc := newTestService(t, testConfig(), reader, nil)
	got, err := svc.ReadTree(context.Background(), treeURL, ReadOptions{})

	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestService_ReadTree_Revalidates(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockTreeReader(ctrl)
	store := mocks.NewSimpleMockCache()
	svc := newTestService(t, testConfig(), reader, store)

	gomock.InOrder(
		reader.EXPECT().ReadTree(gomock.Any(), treeURL, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
				assert.Empty(t, opts.IfCommit)
				return treeResponse("aaa", "index.md", "guide/setup.md"), nil
			}),
		reader.EXPECT().ReadTree(gomock.Any(), treeURL, gomock.Any()).
			DoAndReturn(func(_ context.Context, url string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
				assert.Equal(t, "aaa", opts.IfCommit)
				return nil, notModified(url)
			}),
		reader.EXPECT().ReadTree(gomock.Any(), treeURL, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
				assert.Equal(t, "aaa", opts.IfCommit)
				return treeResponse("bbb", "index.md"), nil
			}),
	)

	first, err := svc.ReadTree(ctx, treeURL, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "aaa", first.CommitSHA)
	assert.Equal(t, 1, store.Keys())
	assert.Equal(t, time.Hour, store.TTL(cache.TreeKey(treeURL, "")))

	second, err := svc.ReadTree(ctx, treeURL, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "aaa", second.CommitSHA)
	assert.Equal(t, `"aaa"`, second.ETag)
	assert.Equal(t, []string{"index.md", "guide/setup.md"}, paths(second))
	content, err := second.Files()[1].Content()
	require.NoError(t, err)
	assert.Equal(t, "content of guide/setup.md", string(content))

	third, err := svc.ReadTree(ctx, treeURL, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "bbb", third.CommitSHA)

	data, err := store.Get(ctx, cache.TreeKey(treeURL, ""))
	require.NoError(t, err)
	snap, err := cache.UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "bbb", snap.CommitSHA)
}

func TestService_ReadTree_CallerETagBypassesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockTreeReader(ctrl)
	mockCache := mocks.NewMockCache(ctrl)

	reader.EXPECT().
		ReadTree(gomock.Any(), treeURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, url string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
			assert.Equal(t, "abc", opts.IfCommit)
			return nil, notModified(url)
		})

	svc := newTestService(t, testConfig(), reader, mockCache)
	_, err := svc.ReadTree(context.Background(), treeURL, ReadOptions{IfCommit: "abc"})

	assert.True(t, domain.IsNotModified(err))
}

func TestService_ReadTree_CacheFailures(t *testing.T) {
	t.Run("lookup and store errors are not fatal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reader := mocks.NewMockTreeReader(ctrl)
		mockCache := mocks.NewMockCache(ctrl)
		ctx := context.Background()

		mockCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, errors.New("connection refused"))
		reader.EXPECT().ReadTree(ctx, treeURL, gomock.Any()).Return(treeResponse("aaa", "index.md"), nil)
		mockCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), time.Hour).Return(errors.New("disk full"))

		svc := newTestService(t, testConfig(), reader, mockCache)
		resp, err := svc.ReadTree(ctx, treeURL, ReadOptions{})

		require.NoError(t, err)
		assert.Equal(t, "aaa", resp.CommitSHA)
	})

	t.Run("unreadable snapshot is dropped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reader := mocks.NewMockTreeReader(ctrl)
		mockCache := mocks.NewMockCache(ctrl)
		ctx := context.Background()
		key := cache.TreeKey(treeURL, "")

		mockCache.EXPECT().Get(ctx, key).Return([]byte("{not json"), nil)
		mockCache.EXPECT().Delete(ctx, key).Return(nil)
		reader.EXPECT().
			ReadTree(ctx, treeURL, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
				assert.Empty(t, opts.IfCommit)
				return treeResponse("aaa"), nil
			})
		mockCache.EXPECT().Set(ctx, key, gomock.Any(), time.Hour).Return(nil)

		svc := newTestService(t, testConfig(), reader, mockCache)
		_, err := svc.ReadTree(ctx, treeURL, ReadOptions{})

		require.NoError(t, err)
	})

	t.Run("reader errors propagate", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reader := mocks.NewMockTreeReader(ctrl)
		store := mocks.NewSimpleMockCache()
		readErr := domain.NewReadTreeError(treeURL, domain.NewStageError(domain.ErrNotFound, domain.StageResolveRepo, nil))

		reader.EXPECT().ReadTree(gomock.Any(), treeURL, gomock.Any()).Return(nil, readErr)

		svc := newTestService(t, testConfig(), reader, store)
		_, err := svc.ReadTree(context.Background(), treeURL, ReadOptions{})

		assert.True(t, domain.IsNotFound(err))
		assert.Equal(t, 0, store.Keys())
	})
}

func TestService_ReadTree_Exclude(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockTreeReader(ctrl)
	store := mocks.NewSimpleMockCache()
	cfg := testConfig()
	cfg.Extract.Exclude = []string{"*.png", " "}

	reader.EXPECT().
		ReadTree(gomock.Any(), treeURL, gomock.Any()).
		Times(2).
		DoAndReturn(func(_ context.Context, _ string, opts domain.ReadTreeOptions) (*domain.TreeResponse, error) {
			require.NotNil(t, opts.Filter)
			assert.False(t, opts.Filter("img/logo.png", 10))
			assert.True(t, opts.Filter("index.md", 10))
			return treeResponse("aaa", "index.md"), nil
		})

	svc := newTestService(t, cfg, reader, store)
	_, err := svc.ReadTree(context.Background(), treeURL, ReadOptions{})
	require.NoError(t, err)

	_, err = svc.ReadTree(context.Background(), treeURL, ReadOptions{Exclude: []string{"build/"}})
	require.NoError(t, err)

	assert.Equal(t, 2, store.Keys())
}

func TestService_PassThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mocks.NewMockTreeReader(ctrl)
	ctx := context.Background()
	blobURL := "https://github.com/owner/repo/blob/main/README.md"
	searchURL := "https://github.com/owner/repo/tree/main/docs/*.md"

	reader.EXPECT().ReadURL(ctx, blobURL).Return(&domain.ReadURLResponse{Path: "README.md", CommitSHA: "aaa", Content: []byte("hi")}, nil)
	reader.EXPECT().
		Search(ctx, searchURL, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, opts domain.ReadTreeOptions) (*domain.SearchResponse, error) {
			require.NotNil(t, opts.Filter)
			assert.False(t, opts.Filter("draft.md", 1))
			return &domain.SearchResponse{CommitSHA: "aaa"}, nil
		})

	svc := newTestService(t, testConfig(), reader, mocks.NewSimpleMockCache())

	file, err := svc.ReadURL(ctx, blobURL)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(file.Content))

	found, err := svc.Search(ctx, searchURL, ReadOptions{Exclude: []string{"draft.md"}})
	require.NoError(t, err)
	assert.Equal(t, "aaa", found.CommitSHA)
}

func TestExcludeFilter(t *testing.T) {
	assert.Nil(t, excludeFilter(nil))

	keep := excludeFilter([]string{"*.png", "build/", "!keep.png"})
	assert.False(t, keep("a/b/c.png", 0))
	assert.False(t, keep("build/out.js", 0))
	assert.True(t, keep("keep.png", 0))
	assert.True(t, keep("src/main.go", 0))
}
