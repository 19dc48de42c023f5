package api

import (
	"net/http"

	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/identity"
	syncengine "coachfit/platform/internal/sync"

	"github.com/gin-gonic/gin"
)

// SyncHandler exposes the session-change hook: resolving the caller's
// session through the sync engine reconciles the cache and subscription set
// and returns the applied identity snapshot.
type SyncHandler struct {
	engine *syncengine.Engine
}

func NewSyncHandler(engine *syncengine.Engine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

type SnapshotResponse struct {
	State       string             `json:"state"`
	Generation  uint64             `json:"generation"`
	BrandColors domain.BrandColors `json:"brandColors"`
	Client      *domain.Client     `json:"client,omitempty"`
	Tenant      *domain.Tenant     `json:"tenant,omitempty"`
}

func mapSnapshotToResponse(snap identity.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		State:       string(snap.State),
		Generation:  snap.Generation,
		BrandColors: snap.BrandColors,
		Client:      snap.Client,
		Tenant:      snap.Tenant,
	}
}

// ResolveSession resolves the authenticated session on the caller's request
// and returns the snapshot. Resolution never fails: backend trouble lands
// in the degraded state, still renderable.
func (h *SyncHandler) ResolveSession(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	snap := h.engine.ResolveSync(c.Request.Context(), &identity.Session{UserID: userID})
	c.JSON(http.StatusOK, mapSnapshotToResponse(snap))
}

// CurrentSnapshot returns the latest applied snapshot without forcing a
// re-resolution.
func (h *SyncHandler) CurrentSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, mapSnapshotToResponse(h.engine.Current()))
}
