package node

import (
	"github.com/distribuidos-Stock-Dividend-Join/nodes/bloom"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/node/handlers"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/storage"
)

// NewHandler builds the stage handler for a node role.
func NewHandler(role common.NodeRole, nodeID string, cfg *common.JoinConfig) handlers.Handler {
	switch role {
	case common.RoleBloomBuilder:
		return handlers.NewBloomBuilderHandler(nodeID, cfg)
	case common.RoleBloomMerger:
		return handlers.NewBloomMergerHandler(cfg)
	case common.RoleJoinMapper:
		store := storage.NewFilterStore(cfg.FilterPath)
		return handlers.NewJoinMapperHandler(nodeID, cfg, func() (*bloom.Filter, error) {
			return store.Load()
		})
	case common.RoleReconciler:
		return handlers.NewReconcilerHandler(cfg)
	default:
		return nil
	}
}
