// Package transport exposes gRPC/HTTP handlers.
package transport

import (
	"context"
	"fmt"

	blockinsight7000v1 "github.com/goodnatureofminers/blockinsight7000-proto/pkg/blockinsight7000/v1"
)

// ExplorerHandler implements ExplorerServiceServer.
type ExplorerHandler struct {
	blockinsight7000v1.UnimplementedExplorerServiceServer
	index UtxoIndex
}

// NewExplorerHandler returns an ExplorerHandler instance.
func NewExplorerHandler(index UtxoIndex) blockinsight7000v1.ExplorerServiceServer {
	return &ExplorerHandler{index: index}
}

// Health reports server health along with the index heights.
func (h *ExplorerHandler) Health(_ context.Context, _ *blockinsight7000v1.HealthRequest) (*blockinsight7000v1.HealthResponse, error) {
	status := h.index.Status()
	description := fmt.Sprintf("anchor height %d, unstable tip height %d, %d unstable blocks",
		status.AnchorHeight, status.TipHeight, status.UnstableBlocks)
	if status.HasStableTip {
		description = fmt.Sprintf("stable height %d, %s", status.StableTip.Height, description)
	}
	return &blockinsight7000v1.HealthResponse{
		Status:      blockinsight7000v1.HealthStatus_HEALTH_STATUS_HEALTHY,
		Description: description,
	}, nil
}
