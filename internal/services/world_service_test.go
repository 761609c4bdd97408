package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorldService(root string, console *fakeConsole, restarter Restarter) *WorldService {
	return NewWorldService(root, propsStore(root), console, restarter, NewWorldLocker(), NewEventService(nil))
}

func TestWorldService_ListWorlds(t *testing.T) {
	root := newDataRoot(t, "world", "world_nether")
	require.NoError(t, os.Mkdir(filepath.Join(root, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "eula.txt"), []byte("eula=true"), 0o644))

	svc := newWorldService(root, newFakeConsole(), nil)
	worlds, err := svc.ListWorlds()
	require.NoError(t, err)
	require.Len(t, worlds, 2)

	byName := map[string]bool{}
	for _, w := range worlds {
		byName[w.Name] = w.Active
		assert.Equal(t, int64(1024+len("level")), w.SizeBytes)
		assert.False(t, w.LastModified.IsZero())
	}
	assert.Equal(t, map[string]bool{"world": true, "world_nether": false}, byName)
}

func TestWorldService_ListWorlds_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "absent")
	svc := newWorldService(root, newFakeConsole(), nil)

	worlds, err := svc.ListWorlds()
	require.NoError(t, err)
	assert.Empty(t, worlds)
	assert.NotNil(t, worlds)
}

func TestWorldService_ActiveWorld(t *testing.T) {
	t.Run("from level-name", func(t *testing.T) {
		root := newDataRoot(t)
		svc := newWorldService(root, newFakeConsole(), nil)
		assert.Equal(t, "world", svc.ActiveWorld())

		_, err := propsStore(root).Mutate(map[string]string{"level-name": "survival_2"})
		require.NoError(t, err)
		assert.Equal(t, "survival_2", svc.ActiveWorld())
	})

	t.Run("missing file falls back", func(t *testing.T) {
		svc := newWorldService(t.TempDir(), newFakeConsole(), nil)
		assert.Equal(t, DefaultWorldName, svc.ActiveWorld())
	})

	t.Run("blank level-name falls back", func(t *testing.T) {
		root := newDataRoot(t)
		_, err := propsStore(root).Mutate(map[string]string{"level-name": ""})
		require.NoError(t, err)
		svc := newWorldService(root, newFakeConsole(), nil)
		assert.Equal(t, DefaultWorldName, svc.ActiveWorld())
	})
}

func TestWorldService_CreateWorld_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateWorldRequest
	}{
		{"illegal characters", CreateWorldRequest{Name: "bad name!"}},
		{"path traversal", CreateWorldRequest{Name: "../escape"}},
		{"empty", CreateWorldRequest{Name: ""}},
		{"too long", CreateWorldRequest{Name: strings.Repeat("a", 65)}},
		{"existing directory", CreateWorldRequest{Name: "world_nether"}},
		{"bad gamemode", CreateWorldRequest{Name: "fresh", Gamemode: "hardcore"}},
		{"bad difficulty", CreateWorldRequest{Name: "fresh", Difficulty: "extreme"}},
		{"bad world type", CreateWorldRequest{Name: "fresh", WorldType: "caves"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newDataRoot(t, "world", "world_nether")
			console := newFakeConsole()
			svc := newWorldService(root, console, nil)

			_, err := svc.CreateWorld(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindValidation), "got %v", err)

			assert.Equal(t, testProperties, readFile(t, filepath.Join(root, "server.properties")))
			assert.Empty(t, console.Commands())
			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Len(t, entries, 3)
		})
	}
}

func TestWorldService_CreateWorld(t *testing.T) {
	root := newDataRoot(t, "world")
	console := newFakeConsole()
	svc := newWorldService(root, console, nil)

	msg, err := svc.CreateWorld(context.Background(), CreateWorldRequest{
		Name:       "creative_1",
		Seed:       "12345",
		Gamemode:   "Creative",
		Difficulty: "peaceful",
		WorldType:  "minecraft:flat",
	})
	require.NoError(t, err)
	assert.Equal(t, "World 'creative_1' created. Server is restarting to generate it.", msg)
	assert.Equal(t, []string{"stop"}, console.Commands())

	entries, err := propsStore(root).Read()
	require.NoError(t, err)
	for key, want := range map[string]string{
		"level-name": "creative_1",
		"level-seed": "12345",
		"gamemode":   "creative",
		"difficulty": "peaceful",
		"level-type": "minecraft:flat",
		"motd":       "A Minecraft Server",
	} {
		got, ok := entries.Get(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	assert.Equal(t, "creative_1", svc.ActiveWorld())

	events, err := svc.eventService.GetRecentEvents(1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "world.create", events[0].Type)
}

func TestWorldService_CreateWorld_ServerOffline(t *testing.T) {
	t.Run("restarter used as fallback", func(t *testing.T) {
		root := newDataRoot(t, "world")
		restarter := &fakeRestarter{}
		svc := newWorldService(root, offlineConsole(), restarter)

		_, err := svc.CreateWorld(context.Background(), CreateWorldRequest{Name: "fresh"})
		require.NoError(t, err)
		assert.Equal(t, 1, restarter.calls)
		assert.Equal(t, "fresh", svc.ActiveWorld())
	})

	t.Run("no restarter still succeeds", func(t *testing.T) {
		root := newDataRoot(t, "world")
		svc := newWorldService(root, offlineConsole(), nil)

		_, err := svc.CreateWorld(context.Background(), CreateWorldRequest{Name: "fresh"})
		require.NoError(t, err)
		assert.Equal(t, "fresh", svc.ActiveWorld())
	})
}

func TestWorldService_CreateWorld_MissingProperties(t *testing.T) {
	root := t.TempDir()
	svc := newWorldService(root, newFakeConsole(), nil)

	_, err := svc.CreateWorld(context.Background(), CreateWorldRequest{Name: "fresh"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestWorldService_DeleteWorld_ActiveIsGuarded(t *testing.T) {
	worlds := []string{"world", "world_nether", "world_the_end", "survival-2"}
	for _, active := range worlds {
		t.Run(active, func(t *testing.T) {
			root := newDataRoot(t, worlds...)
			_, err := propsStore(root).Mutate(map[string]string{"level-name": active})
			require.NoError(t, err)
			svc := newWorldService(root, newFakeConsole(), nil)

			err = svc.DeleteWorld(active)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindGuard))
			assert.Equal(t, "Cannot delete the active world", UserMessage(err))
			assert.DirExists(t, filepath.Join(root, active))
		})
	}
}

func TestWorldService_DeleteWorld(t *testing.T) {
	root := newDataRoot(t, "world", "world_nether")
	svc := newWorldService(root, newFakeConsole(), nil)

	require.NoError(t, svc.DeleteWorld("world_nether"))
	assert.NoDirExists(t, filepath.Join(root, "world_nether"))
	assert.DirExists(t, filepath.Join(root, "world"))

	t.Run("not found", func(t *testing.T) {
		err := svc.DeleteWorld("world_nether")
		assert.True(t, IsKind(err, KindNotFound))
		assert.Equal(t, "World not found", UserMessage(err))
	})

	t.Run("path outside data root", func(t *testing.T) {
		outside := filepath.Join(filepath.Dir(root), "victim")
		require.NoError(t, os.MkdirAll(outside, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(outside, MarkerFile), nil, 0o644))

		err := svc.DeleteWorld("../victim")
		assert.True(t, IsKind(err, KindNotFound))
		assert.DirExists(t, outside)
	})

	t.Run("locked by backup", func(t *testing.T) {
		makeWorld(t, root, "busy")
		require.True(t, svc.locks.TryLock("busy"))
		defer svc.locks.Unlock("busy")

		err := svc.DeleteWorld("busy")
		assert.True(t, IsKind(err, KindConflict))
		assert.DirExists(t, filepath.Join(root, "busy"))
	})
}

func TestWorldService_CreateThenDeleteOtherWorld(t *testing.T) {
	for _, name := range []string{"a", "New_World-2", "Z9"} {
		t.Run(name, func(t *testing.T) {
			root := newDataRoot(t, "world", "world_nether")
			svc := newWorldService(root, newFakeConsole(), nil)

			_, err := svc.CreateWorld(context.Background(), CreateWorldRequest{Name: name})
			require.NoError(t, err)
			// the server generates the directory on restart
			makeWorld(t, root, name)
			before := readFile(t, filepath.Join(root, name, MarkerFile))

			require.NoError(t, svc.DeleteWorld("world"))
			assert.Equal(t, before, readFile(t, filepath.Join(root, name, MarkerFile)))
			assert.FileExists(t, filepath.Join(root, name, "region", "r.0.0.mca"))
		})
	}
}
