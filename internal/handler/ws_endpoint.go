package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storyboard-server/internal/models"
	"storyboard-server/internal/service"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPollInterval = 2 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Происхождение уже проверено CORS-слоем.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressHandler отдает клиенту прогресс раунда генерации по WebSocket:
// снимок истории с сегментами при каждом изменении, до терминального статуса.
type ProgressHandler struct {
	storyService *service.StoryService
	logger       *zap.Logger
}

// NewProgressHandler создает новый ProgressHandler.
func NewProgressHandler(storyService *service.StoryService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		storyService: storyService,
		logger:       logger.Named("progress_handler"),
	}
}

// Feed обрабатывает GET /api/stories/:id/ws.
func (h *ProgressHandler) Feed(c *gin.Context) {
	userID, storyID, ok := userAndPathID(c)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.logger.With(zap.String("story_id", storyID.String()))
	log.Debug("Progress feed opened")

	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		story, segments, err := h.storyService.GetStory(ctx, userID, storyID)
		if err != nil {
			log.Warn("Progress feed closed on fetch error", zap.Error(err))
			return
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(storyResponse{Story: story, Segments: segments}); err != nil {
			log.Debug("Progress feed client gone", zap.Error(err))
			return
		}

		if story.Status.IsTerminal() || story.Status == models.StatusDraft {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(story.Status)))
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
