package receiver

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/agentscope/agentscope/internal/domain"
)

// Metadata keys set by the upstream gateway after authenticating the
// exporter. The receiver trusts them; it never derives scope from payload
// content.
const (
	MetadataTenantID  = "x-scope-tenant-id"
	MetadataAgentID   = "x-scope-agent-id"
	MetadataAgentName = "x-scope-agent-name"
	MetadataUserID    = "x-scope-user-id"
)

// ScopeFromMetadata materializes the IngestionContext from incoming gRPC
// metadata. Missing or malformed scope metadata fails the RPC with
// Unauthenticated.
func ScopeFromMetadata(ctx context.Context) (domain.IngestionContext, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.IngestionContext{}, status.Error(codes.Unauthenticated, "missing scope metadata")
	}

	tenantID, err := uuid.Parse(firstValue(md, MetadataTenantID))
	if err != nil {
		return domain.IngestionContext{}, status.Error(codes.Unauthenticated, "missing or invalid tenant id")
	}
	agentID, err := uuid.Parse(firstValue(md, MetadataAgentID))
	if err != nil {
		return domain.IngestionContext{}, status.Error(codes.Unauthenticated, "missing or invalid agent id")
	}
	agentName := firstValue(md, MetadataAgentName)
	if agentName == "" {
		return domain.IngestionContext{}, status.Error(codes.Unauthenticated, "missing agent name")
	}

	return domain.IngestionContext{
		TenantID:  tenantID,
		AgentID:   agentID,
		AgentName: agentName,
		UserID:    firstValue(md, MetadataUserID),
	}, nil
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
