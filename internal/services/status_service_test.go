package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/isdelr/ender-world-manager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSync struct{ status models.SyncStatus }

func (s staticSync) Status() models.SyncStatus { return s.status }
func (s staticSync) Upload(ctx context.Context, filename string) (string, error) {
	return "", nil
}
func (s staticSync) ListRemote(ctx context.Context) ([]string, error) { return nil, nil }

func TestParsePlayerList(t *testing.T) {
	tests := []struct {
		response string
		count    int
		max      int
		players  []string
	}{
		{"There are 2 of a max of 20 players online: Steve, Alex", 2, 20, []string{"Steve", "Alex"}},
		{"There are 0 of a max of 20 players online: ", 0, 20, []string{}},
		{"There are 1 of a max 10 players online: Notch", 1, 10, []string{"Notch"}},
		{"There are 3/8 players online:\nA, B, C", 3, 8, []string{"A", "B", "C"}},
		{"Unknown command", 0, 0, []string{}},
	}
	for _, tt := range tests {
		count, maxPlayers, players := ParsePlayerList(tt.response)
		assert.Equal(t, tt.count, count, tt.response)
		assert.Equal(t, tt.max, maxPlayers, tt.response)
		assert.Equal(t, tt.players, players, tt.response)
	}
}

func TestStatusService_GetStatus(t *testing.T) {
	root := newDataRoot(t, "world")
	console := newFakeConsole()
	console.responses["list"] = "There are 1 of a max of 20 players online: Steve"
	sync := staticSync{models.SyncStatus{Configured: true, Message: "Remote 'gdrive' configured"}}
	svc := NewStatusService(root, console, propsStore(root), sync)

	status := svc.GetStatus(context.Background())
	assert.True(t, status.Online)
	assert.Equal(t, []string{"Steve"}, status.Players)
	assert.Equal(t, 1, status.PlayerCount)
	assert.Equal(t, 20, status.MaxPlayers)
	assert.True(t, status.GDrive.Configured)
	assert.Equal(t, []string{"gamemode", "level-name", "level-seed", "level-type", "difficulty", "max-players", "motd", "pvp"}, status.ServerProperties.Keys())
}

func TestStatusService_GetStatus_Offline(t *testing.T) {
	root := newDataRoot(t, "world")
	svc := NewStatusService(root, offlineConsole(), propsStore(root), staticSync{})

	status := svc.GetStatus(context.Background())
	data, err := json.Marshal(status)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, false, body["online"])
	assert.Equal(t, []interface{}{}, body["players"])
	assert.Equal(t, float64(0), body["playerCount"])
	assert.Equal(t, float64(0), body["maxPlayers"])
}

func TestStatusService_ExecuteCommand(t *testing.T) {
	root := newDataRoot(t)
	console := newFakeConsole()
	console.responses["time query daytime"] = "The time is 1000"
	svc := NewStatusService(root, console, propsStore(root), staticSync{})

	resp, err := svc.ExecuteCommand(context.Background(), "  time query daytime ")
	require.NoError(t, err)
	assert.Equal(t, "The time is 1000", resp)

	_, err = svc.ExecuteCommand(context.Background(), "   ")
	assert.True(t, IsKind(err, KindValidation))

	offline := NewStatusService(root, offlineConsole(), propsStore(root), staticSync{})
	_, err = offline.ExecuteCommand(context.Background(), "list")
	assert.True(t, IsKind(err, KindConnection))
}
