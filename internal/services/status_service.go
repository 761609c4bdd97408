package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/isdelr/ender-world-manager/internal/models"
	"github.com/isdelr/ender-world-manager/internal/properties"
	"github.com/isdelr/ender-world-manager/internal/rcon"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
)

// statusPropertyKeys are the server.properties entries shown in the status view.
var statusPropertyKeys = []string{
	"level-name", "gamemode", "difficulty", "max-players", "motd",
	"level-seed", "level-type", "pvp", "server-port",
}

var (
	// "There are 2 of a max of 20 players online: alice, bob"
	listLongPattern = regexp.MustCompile(`(?s)There are (\d+) of a max(?: of)? (\d+) players online:?(.*)`)
	// "There are 2/20 players online: alice, bob"
	listShortPattern = regexp.MustCompile(`(?s)There are (\d+)/(\d+) players online:?(.*)`)
)

// StatusServiceProvider defines the interface for status services.
type StatusServiceProvider interface {
	GetStatus(ctx context.Context) models.ServerStatus
	ExecuteCommand(ctx context.Context, command string) (string, error)
}

// StatusService assembles the live status of the game server.
type StatusService struct {
	dataRoot string
	console  rcon.Executor
	props    *properties.Store
	sync     SyncServiceProvider
}

// NewStatusService creates a new StatusService.
func NewStatusService(dataRoot string, console rcon.Executor, props *properties.Store, sync SyncServiceProvider) *StatusService {
	return &StatusService{
		dataRoot: dataRoot,
		console:  console,
		props:    props,
		sync:     sync,
	}
}

// GetStatus probes the server with "list". An unreachable server is reported
// as offline rather than as an error.
func (s *StatusService) GetStatus(ctx context.Context) models.ServerStatus {
	status := models.ServerStatus{
		Players:          []string{},
		ServerProperties: properties.Map{},
		GDrive:           s.sync.Status(),
	}

	response, err := s.console.Execute(ctx, "list")
	if err != nil {
		log.Debug().Err(err).Msg("Status probe failed, reporting server offline")
	} else {
		status.Online = true
		status.PlayerCount, status.MaxPlayers, status.Players = ParsePlayerList(response)
	}

	if entries, err := s.props.Read(); err == nil {
		status.ServerProperties = entries.Subset(statusPropertyKeys...)
	} else {
		log.Debug().Err(err).Msg("Could not read server.properties for status")
	}

	if usage, err := disk.UsageWithContext(ctx, s.dataRoot); err == nil {
		status.Disk = &models.DiskUsage{
			TotalBytes:  usage.Total,
			FreeBytes:   usage.Free,
			UsedPercent: usage.UsedPercent,
		}
	} else {
		log.Debug().Err(err).Str("path", s.dataRoot).Msg("Could not read disk usage")
	}

	return status
}

// ExecuteCommand forwards a raw command to the remote console.
func (s *StatusService) ExecuteCommand(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", newError(KindValidation, nil, "Command is required")
	}
	response, err := s.console.Execute(ctx, command)
	if err != nil {
		return "", newError(KindConnection, err, "Could not reach the server")
	}
	log.Info().Str("command", command).Msg("RCON command executed")
	return response, nil
}

// ParsePlayerList reads the counts and names out of a "list" response.
// Unrecognised responses yield zero counts and no players.
func ParsePlayerList(response string) (count, maxPlayers int, players []string) {
	players = []string{}
	response = strings.TrimSpace(response)

	m := listLongPattern.FindStringSubmatch(response)
	if m == nil {
		m = listShortPattern.FindStringSubmatch(response)
	}
	if m == nil {
		return 0, 0, players
	}

	count, _ = strconv.Atoi(m[1])
	maxPlayers, _ = strconv.Atoi(m[2])
	names := strings.FieldsFunc(m[3], func(r rune) bool { return r == ',' || r == '\n' })
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			players = append(players, name)
		}
	}
	return count, maxPlayers, players
}
