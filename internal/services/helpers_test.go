package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/isdelr/ender-world-manager/internal/properties"
	"github.com/isdelr/ender-world-manager/internal/rcon"
	"github.com/stretchr/testify/require"
)

// fakeConsole records every command and answers from canned responses.
type fakeConsole struct {
	mu        sync.Mutex
	commands  []string
	responses map[string]string
	errs      map[string]error
	onExecute func(command string)
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{responses: map[string]string{}, errs: map[string]error{}}
}

// offlineConsole fails every command the way an unreachable server does.
func offlineConsole() *fakeConsole {
	f := newFakeConsole()
	f.errs["*"] = &rcon.ConnectionError{Addr: "localhost:25575", Op: "dial", Err: errors.New("connection refused")}
	return f
}

func (f *fakeConsole) Execute(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	hook := f.onExecute
	err, ok := f.errs[command]
	if !ok {
		err = f.errs["*"]
	}
	resp := f.responses[command]
	f.mu.Unlock()

	if hook != nil {
		hook(command)
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (f *fakeConsole) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type fakeRestarter struct {
	calls int
	err   error
}

func (r *fakeRestarter) Restart(ctx context.Context) error {
	r.calls++
	return r.err
}

const testProperties = `#Minecraft server properties
#Mon Jan 01 00:00:00 UTC 2024
enable-command-block=false
gamemode=survival
level-name=world
level-seed=
level-type=minecraft\:normal
difficulty=easy
max-players=20
motd=A Minecraft Server
pvp=true
`

// newDataRoot lays out a data root with server.properties and the named worlds.
func newDataRoot(t *testing.T, worlds ...string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "server.properties"), []byte(testProperties), 0o644))
	for _, w := range worlds {
		makeWorld(t, root, w)
	}
	return root
}

func makeWorld(t *testing.T, root, name string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "region"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFile), []byte("level"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "region", "r.0.0.mca"), make([]byte, 1024), 0o644))
}

func propsStore(root string) *properties.Store {
	return properties.NewStore(filepath.Join(root, "server.properties"))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
