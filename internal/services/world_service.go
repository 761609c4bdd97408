package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/isdelr/ender-world-manager/internal/models"
	"github.com/isdelr/ender-world-manager/internal/properties"
	"github.com/isdelr/ender-world-manager/internal/rcon"
	"github.com/rs/zerolog/log"
)

const (
	// MarkerFile certifies a directory under the data root as a world.
	MarkerFile = "level.dat"
	// DefaultWorldName is used when server.properties has no level-name.
	DefaultWorldName = "world"

	maxWorldNameLength = 64
)

var worldNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var (
	validGamemodes    = []string{"survival", "creative", "adventure", "spectator"}
	validDifficulties = []string{"peaceful", "easy", "normal", "hard"}
	validWorldTypes   = []string{"normal", "flat", "large_biomes", "amplified", "single_biome_surface"}
)

// Restarter restarts the game server by means other than the remote console.
type Restarter interface {
	Restart(ctx context.Context) error
}

// CreateWorldRequest holds the parameters of a new world. Empty optional
// fields leave the corresponding property untouched.
type CreateWorldRequest struct {
	Name       string `json:"name"`
	Seed       string `json:"seed,omitempty"`
	Gamemode   string `json:"gamemode,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	WorldType  string `json:"worldType,omitempty"`
}

// WorldServiceProvider defines the interface for world services.
type WorldServiceProvider interface {
	ListWorlds() ([]models.World, error)
	ActiveWorld() string
	GetWorld(name string) (models.World, error)
	CreateWorld(ctx context.Context, req CreateWorldRequest) (string, error)
	DeleteWorld(name string) error
}

// WorldService derives worlds from the data root and manages their lifecycle.
type WorldService struct {
	dataRoot     string
	props        *properties.Store
	console      rcon.Executor
	restarter    Restarter
	locks        *WorldLocker
	eventService EventServiceProvider
}

// NewWorldService creates a new WorldService. restarter may be nil.
func NewWorldService(dataRoot string, props *properties.Store, console rcon.Executor, restarter Restarter, locks *WorldLocker, eventService EventServiceProvider) *WorldService {
	return &WorldService{
		dataRoot:     dataRoot,
		props:        props,
		console:      console,
		restarter:    restarter,
		locks:        locks,
		eventService: eventService,
	}
}

// ActiveWorld returns the level-name from server.properties, or
// DefaultWorldName if the file or key is missing.
func (s *WorldService) ActiveWorld() string {
	entries, err := s.props.Read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Msg("Could not read server.properties, assuming default world")
		}
		return DefaultWorldName
	}
	if name, ok := entries.Get("level-name"); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	return DefaultWorldName
}

// ListWorlds returns every world in directory order.
func (s *WorldService) ListWorlds() ([]models.World, error) {
	active := s.ActiveWorld()

	entries, err := os.ReadDir(s.dataRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.World{}, nil
		}
		return nil, newError(KindIO, err, "Failed to read data directory")
	}

	worlds := []models.World{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		world, ok := s.inspectWorld(entry.Name(), active)
		if ok {
			worlds = append(worlds, world)
		}
	}
	return worlds, nil
}

// GetWorld looks up a single world by name.
func (s *WorldService) GetWorld(name string) (models.World, error) {
	if !isValidWorldName(name) {
		return models.World{}, newError(KindNotFound, nil, "World not found")
	}
	world, ok := s.inspectWorld(name, s.ActiveWorld())
	if !ok {
		return models.World{}, newError(KindNotFound, nil, "World not found")
	}
	return world, nil
}

func (s *WorldService) inspectWorld(name, active string) (models.World, bool) {
	path := filepath.Join(s.dataRoot, name)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return models.World{}, false
	}
	marker, err := os.Stat(filepath.Join(path, MarkerFile))
	if err != nil || marker.IsDir() {
		return models.World{}, false
	}

	size, err := dirSize(path)
	if err != nil {
		log.Warn().Err(err).Str("world", name).Msg("Could not calculate world size")
		size = 0
	}

	return models.World{
		Name:         name,
		Active:       name == active,
		SizeBytes:    size,
		LastModified: marker.ModTime(),
	}, true
}

// CreateWorld points level-name at a new world and asks the server to stop so
// that its supervisor restarts it and generates the world. Success means the
// configuration was accepted, not that the world exists yet.
func (s *WorldService) CreateWorld(ctx context.Context, req CreateWorldRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if !isValidWorldName(req.Name) {
		return "", newError(KindValidation, nil, "Invalid world name. Use only letters, numbers, hyphens and underscores.")
	}
	if _, err := os.Stat(filepath.Join(s.dataRoot, req.Name)); err == nil {
		return "", newError(KindValidation, nil, "World '%s' already exists", req.Name)
	}

	edits := map[string]string{"level-name": req.Name}
	if req.Seed != "" {
		edits["level-seed"] = req.Seed
	}
	if req.Gamemode != "" {
		gm := strings.ToLower(req.Gamemode)
		if !contains(validGamemodes, gm) {
			return "", newError(KindValidation, nil, "Invalid gamemode '%s'", req.Gamemode)
		}
		edits["gamemode"] = gm
	}
	if req.Difficulty != "" {
		d := strings.ToLower(req.Difficulty)
		if !contains(validDifficulties, d) {
			return "", newError(KindValidation, nil, "Invalid difficulty '%s'", req.Difficulty)
		}
		edits["difficulty"] = d
	}
	if req.WorldType != "" {
		wt := strings.ToLower(req.WorldType)
		if !contains(validWorldTypes, strings.TrimPrefix(wt, "minecraft:")) {
			return "", newError(KindValidation, nil, "Invalid world type '%s'", req.WorldType)
		}
		edits["level-type"] = wt
	}

	changed, err := s.props.Mutate(edits)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(KindNotFound, err, "server.properties not found")
		}
		return "", newError(KindIO, err, "Failed to update server.properties")
	}
	log.Info().Str("world", req.Name).Strs("changed", changed).Msg("Server properties updated for new world")

	s.requestRestart(ctx)

	msg := fmt.Sprintf("World '%s' created. Server is restarting to generate it.", req.Name)
	s.eventService.CreateEvent("world.create", "info", msg, &req.Name)
	return msg, nil
}

// requestRestart asks the server to stop over RCON. Failure is not an error
// for the caller; the container restarter is tried as a fallback when set.
func (s *WorldService) requestRestart(ctx context.Context) {
	_, err := s.console.Execute(ctx, "stop")
	if err == nil {
		log.Info().Msg("Stop command sent to game server")
		return
	}
	log.Warn().Err(err).Msg("Could not send stop command, server will pick up the new world on next start")

	if s.restarter == nil {
		return
	}
	if err := s.restarter.Restart(ctx); err != nil {
		log.Warn().Err(err).Msg("Container restart fallback failed")
	}
}

// DeleteWorld removes a world directory. The active world is never deleted.
func (s *WorldService) DeleteWorld(name string) error {
	name = strings.TrimSpace(name)
	if _, err := s.GetWorld(name); err != nil {
		return err
	}
	if name == s.ActiveWorld() {
		return newError(KindGuard, nil, "Cannot delete the active world")
	}
	if !s.locks.TryLock(name) {
		return newError(KindConflict, nil, "World '%s' is being backed up", name)
	}
	defer s.locks.Unlock(name)

	path := filepath.Join(s.dataRoot, name)
	log.Info().Str("world", name).Str("path", path).Msg("Deleting world")
	if err := os.RemoveAll(path); err != nil {
		return newError(KindIO, err, "Failed to delete world")
	}

	s.eventService.CreateEvent("world.delete", "warn", fmt.Sprintf("World '%s' was deleted.", name), &name)
	return nil
}

// isValidWorldName checks a name against the allow-list pattern.
func isValidWorldName(name string) bool {
	return len(name) <= maxWorldNameLength && worldNamePattern.MatchString(name)
}

// dirSize calculates the total size of the regular files under path.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
