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

package elasticsearch

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndex/syndex/entities/models"
)

// integrationBackend connects to a real cluster, or skips the test when
// none is configured.
func integrationBackend(t *testing.T) *Backend {
	t.Helper()

	url := os.Getenv("SYNDEX_TEST_ELASTICSEARCH_URL")
	if url == "" {
		t.Skip("set SYNDEX_TEST_ELASTICSEARCH_URL to run elasticsearch integration tests")
	}

	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	b, err := New(ctx, Config{URL: url, FlushInterval: 100 * time.Millisecond}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, b.Close())
	})
	return b
}

func TestIntegration_RoundTrip(t *testing.T) {
	b := integrationBackend(t)
	ctx := context.Background()

	index := fmt.Sprintf("syndex-it-%s", uuid.New().String())
	require.NoError(t, b.EnsureIndex(ctx, index))
	t.Cleanup(func() {
		_, _ = b.client.DeleteIndex(index).Do(context.Background())
	})

	w, err := b.Writer(index)
	require.NoError(t, err)

	put := func(tenant, id string) {
		require.NoError(t, w.Put(ctx, &models.Document{
			ID:     id,
			Type:   "Article",
			Tenant: tenant,
			Fields: map[string]interface{}{"title": "integration " + id},
		}))
	}
	put("", "id-00")
	put("", "id-01")
	put("", "id-02")
	put("acme", "id-03")
	put("acme", "id-04")

	require.NoError(t, w.Flush(ctx))
	require.NoError(t, b.Flush(ctx, index))
	require.NoError(t, b.Refresh(ctx, index))

	count, err := b.DocCount(index)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	// tenant-scoped purge leaves the untenanted documents alone
	require.NoError(t, b.PurgeAll(ctx, index, "acme"))
	require.NoError(t, b.Refresh(ctx, index))

	count, err = b.DocCount(index)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	require.NoError(t, b.PurgeAll(ctx, index, ""))
	require.NoError(t, b.Refresh(ctx, index))

	count, err = b.DocCount(index)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	require.NoError(t, w.Close())
}

func TestIntegration_DropAndCreate(t *testing.T) {
	b := integrationBackend(t)
	ctx := context.Background()

	index := fmt.Sprintf("syndex-it-%s", uuid.New().String())
	require.NoError(t, b.EnsureIndex(ctx, index))
	t.Cleanup(func() {
		_, _ = b.client.DeleteIndex(index).Do(context.Background())
	})

	w, err := b.Writer(index)
	require.NoError(t, err)
	require.NoError(t, w.Put(ctx, &models.Document{
		ID:     "id-00",
		Type:   "Article",
		Fields: map[string]interface{}{"title": "to be dropped"},
	}))
	require.NoError(t, w.Flush(ctx))
	require.NoError(t, b.Refresh(ctx, index))

	require.NoError(t, b.DropAndCreateIndex(ctx, index))
	require.NoError(t, b.Refresh(ctx, index))

	count, err := b.DocCount(index)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestIntegration_MergeSegments(t *testing.T) {
	b := integrationBackend(t)
	ctx := context.Background()

	index := fmt.Sprintf("syndex-it-%s", uuid.New().String())
	require.NoError(t, b.EnsureIndex(ctx, index))
	t.Cleanup(func() {
		_, _ = b.client.DeleteIndex(index).Do(context.Background())
	})

	require.NoError(t, b.MergeSegments(ctx, index))
}
