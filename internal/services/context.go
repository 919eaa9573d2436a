package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/devforge-org/devforge-backend/internal/requestdata"
)

// currentUserID reads the authenticated user from the request context.
func currentUserID(ctx context.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: request is not authenticated", ErrUnauthorized)
	}
	return rd.UserID, nil
}
