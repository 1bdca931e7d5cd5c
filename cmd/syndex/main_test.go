//                      _
//  ___ _   _ _ __   __| | _____  __
// / __| | | | '_ \ / _` |/ _ \ \/ /
// \__ \ |_| | | | | (_| |  __/>  <
// |___/\__, |_| |_|\__,_|\___/_/\_\
//      |___/
//
//  Copyright © 2019 - 2026 Syndex B.V. All rights reserved.
//
//  CONTACT: hello@syndex.io
//

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndex/syndex/adapters/repos/bleveindex"
	"github.com/syndex/syndex/usecases/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	return config.Config{
		Store: config.Store{
			Driver: config.DriverBolt,
			Path:   filepath.Join(t.TempDir(), "data"),
		},
		Backend: config.Backend{
			Driver: config.DriverBleve,
			Path:   filepath.Join(t.TempDir(), "indexes"),
		},
		Types: []config.IndexedType{
			{Name: "Article", Index: "articles"},
			{Name: "Comment", Index: "comments"},
		},
	}
}

func TestRunSeed(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)

	require.NoError(t, runSeed(context.Background(), cfg, 25, logger))

	store, err := openStore(cfg, logger)
	require.NoError(t, err)
	defer store.Close()

	for _, typeName := range []string{"Article", "Comment"} {
		count, err := store.CountObjects(typeName, "")
		require.NoError(t, err)
		assert.Equal(t, int64(25), count)
	}
}

func TestRunReindex(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	ctx := context.Background()

	require.NoError(t, runSeed(ctx, cfg, 30, logger))
	require.NoError(t, runReindex(ctx, cfg, logger))

	be := bleveindex.New(cfg.Backend.Path, logger)
	defer be.Close()

	for _, index := range []string{"articles", "comments"} {
		count, err := be.DocCount(index)
		require.NoError(t, err)
		assert.Equal(t, uint64(30), count)
	}
}

func TestRunReindexTwiceKeepsCountsStable(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	ctx := context.Background()

	require.NoError(t, runSeed(ctx, cfg, 10, logger))
	require.NoError(t, runReindex(ctx, cfg, logger))
	// the second run purges before indexing, so nothing doubles
	require.NoError(t, runReindex(ctx, cfg, logger))

	be := bleveindex.New(cfg.Backend.Path, logger)
	defer be.Close()

	count, err := be.DocCount("articles")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), count)
}

func TestRunInspect(t *testing.T) {
	logger, hook := test.NewNullLogger()
	cfg := testConfig(t)
	ctx := context.Background()

	require.NoError(t, runSeed(ctx, cfg, 5, logger))
	require.NoError(t, runReindex(ctx, cfg, logger))
	require.NoError(t, runInspect(ctx, cfg, logger))

	inspected := 0
	for _, entry := range hook.AllEntries() {
		if entry.Data["action"] == "inspect" {
			inspected++
			assert.EqualValues(t, 5, entry.Data["objects"])
			assert.EqualValues(t, 5, entry.Data["documents"])
		}
	}
	assert.Equal(t, 2, inspected)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := openStore(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store driver "mysql"`)
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Backend.Driver = "solr"

	_, err := openBackend(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend driver "solr"`)
}

func TestBuildRegistry(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)

	store, err := openStore(cfg, logger)
	require.NoError(t, err)
	defer store.Close()

	registry, err := buildRegistry(cfg, store)
	require.NoError(t, err)

	types := registry.Types()
	require.Len(t, types, 2)
	assert.Equal(t, "Article", types[0].Name)
	assert.Equal(t, "articles", types[0].Index)
}

func TestBuildRegistry_RejectsDuplicates(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.Types = append(cfg.Types, config.IndexedType{Name: "Article", Index: "articles"})

	store, err := openStore(cfg, logger)
	require.NoError(t, err)
	defer store.Close()

	_, err = buildRegistry(cfg, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}
