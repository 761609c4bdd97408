package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the world manager.
var (
	ServerOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worldmanager_server_online",
			Help: "1 if the game server answered the last status probe, 0 otherwise",
		},
	)

	PlayersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worldmanager_players_online",
			Help: "Number of players reported by the last status probe",
		},
	)

	WorldSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worldmanager_world_size_bytes",
			Help: "On-disk size of each world directory",
		},
		[]string{"world"},
	)

	RconCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldmanager_rcon_commands_total",
			Help: "Remote console exchanges by result",
		},
		[]string{"result"},
	)

	Backups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldmanager_backups_total",
			Help: "Backups attempted by result",
		},
		[]string{"result"},
	)

	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worldmanager_backup_duration_seconds",
			Help:    "Wall time of the quiesce/archive/resume sequence",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldmanager_uploads_total",
			Help: "Archive uploads to remote storage by result",
		},
		[]string{"result"},
	)
)

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
