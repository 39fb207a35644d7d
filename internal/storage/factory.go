package storage

import (
	"github.com/xtxerr/metricsd/internal/logging"
)

// Backend type selectors.
const (
	TypeEmbedded = "embedded"
	TypeRemote   = "remote"
)

var factoryLog = logging.Component("storage")

// Open creates the backend selected by cfg.Type.
//
// Selection never fails hard on the remote path: if the remote adapter
// cannot be opened the embedded store is substituted with a logged
// warning. An unknown type likewise falls back to embedded, matching the
// default.
func Open(cfg Config) (Backend, error) {
	switch cfg.Type {
	case TypeRemote:
		b, err := OpenRemote(cfg)
		if err != nil {
			factoryLog.Warn("remote backend unavailable, falling back to embedded",
				"error", err)
			return OpenEmbedded(cfg)
		}
		factoryLog.Info("using remote backend", "bucket", cfg.Remote.Bucket)
		return b, nil

	case TypeEmbedded, "":
		factoryLog.Info("using embedded backend", "path", cfg.Path)
		return OpenEmbedded(cfg)

	default:
		factoryLog.Warn("unknown backend type, falling back to embedded",
			"type", cfg.Type)
		return OpenEmbedded(cfg)
	}
}
