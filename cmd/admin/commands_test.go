package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
	repomemory "github.com/tendant/simple-media/pkg/simplemedia/repo/memory"
	"github.com/tendant/simple-media/pkg/simplemedia/storage/memory"
)

func newTestService(t *testing.T) simplemedia.Service {
	t.Helper()
	svc, err := simplemedia.New(
		simplemedia.WithRepository(repomemory.New()),
		simplemedia.WithBlobStore(memory.New()),
	)
	require.NoError(t, err)

	ctx := context.Background()
	for _, title := range []string{"Opening", "Interlude", "Finale"} {
		_, err := svc.CreateVideo(ctx, simplemedia.CreateVideoRequest{Title: title})
		require.NoError(t, err)
	}
	return svc
}

func run(t *testing.T, svc simplemedia.Service, args ...string) (string, error) {
	t.Helper()
	factory := func(cmd *cobra.Command) (simplemedia.Service, func(), error) {
		return svc, func() {}, nil
	}
	root := newRootCommand(factory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBulkStatusCommand(t *testing.T) {
	svc := newTestService(t)

	out, err := run(t, svc, "bulk-status", "archived", "1", "2", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 2 of 3 videos to archived")

	video, err := svc.GetVideo(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, simplemedia.VideoStatusArchived, video.Status)

	_, err = run(t, svc, "bulk-status", "deleted", "1")
	assert.ErrorIs(t, err, simplemedia.ErrInvalidStatus)

	_, err = run(t, svc, "bulk-status", "draft", "abc")
	assert.Error(t, err)
}

func TestBulkDeleteCommandJSON(t *testing.T) {
	svc := newTestService(t)

	out, err := run(t, svc, "bulk-delete", "--json", "1", "3", "42")
	require.NoError(t, err)

	var result simplemedia.BulkDeleteResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, int64(2), result.DeletedCount)
}

func TestListAndStatsCommands(t *testing.T) {
	svc := newTestService(t)

	out, err := run(t, svc, "list", "--status", "draft")
	require.NoError(t, err)
	assert.Contains(t, out, "Interlude")
	assert.Contains(t, out, "Total: 3")

	out, err = run(t, svc, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Video Statistics")

	out, err = run(t, svc, "repair-thumbnails")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 0, attached 0, degraded 0")
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "1"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, ids)

	_, err = parseIDs([]string{"0"})
	assert.Error(t, err)
}
