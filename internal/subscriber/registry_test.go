package subscriber

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "herald/pkg/logx"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subscriptions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileRegistryNormalizes(t *testing.T) {
	path := writeRegistry(t, `{
		"42": {"username": "Ana", "subscriptions": ["MAJOR", "major", "bogus"], "reminder_times": ["1h", "24h", "soon"]},
		"43": {"username": "Bo", "subscriptions": ["ruins"]}
	}`)
	r := NewFileRegistry(path, time.Minute, logx.Nop())

	subs, err := r.All(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)

	require.Equal(t, []string{"major"}, subs["42"].Categories)
	require.Equal(t, []string{"1h", "24h"}, subs["42"].Windows)

	// Missing windows fall back to the full default ladder.
	require.Equal(t, DefaultWindows, subs["43"].Windows)
}

func TestFileRegistryDropsMalformedEntries(t *testing.T) {
	path := writeRegistry(t, `{
		"42": {"username": "Ana", "subscriptions": ["ruins"]},
		"bad": "not an object"
	}`)
	r := NewFileRegistry(path, time.Minute, logx.Nop())

	subs, err := r.All(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Contains(t, subs, "42")
}

func TestFileRegistryKeepsSnapshotOnBreakage(t *testing.T) {
	path := writeRegistry(t, `{"42": {"username": "Ana", "subscriptions": ["ruins"]}}`)
	r := NewFileRegistry(path, time.Nanosecond, logx.Nop())

	first, err := r.All(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	time.Sleep(time.Millisecond)

	second, err := r.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second, "broken file must not wipe the previous snapshot")
}

func TestExpandCategories(t *testing.T) {
	got := ExpandCategories([]string{"fights"})
	require.True(t, got["altars"])
	require.True(t, got["major"])
	require.False(t, got["ruins"])

	got = ExpandCategories([]string{"all"})
	for _, c := range []string{"ruins", "altars", "major"} {
		require.True(t, got[c], c)
	}

	got = ExpandCategories([]string{"chronicle"})
	require.True(t, got["chronicle"])
	require.False(t, got["major"])
}
