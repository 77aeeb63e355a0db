package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/astevko/htmx-message-board/internal/app"
	"github.com/astevko/htmx-message-board/internal/model"
	"github.com/astevko/htmx-message-board/internal/pkg/timefmt"
	"github.com/astevko/htmx-message-board/internal/transport/http/middleware"
)

type BoardHandler struct {
	boardService *app.BoardService
	logger       *zap.SugaredLogger
}

type MessageRequest struct {
	Message string `form:"message"`
}

// MessageView is a message with its timestamp already rendered in the
// viewer's timezone.
type MessageView struct {
	Text      string
	Timestamp string
}

func NewBoardHandler(boardService *app.BoardService, logger *zap.SugaredLogger) *BoardHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &BoardHandler{boardService: boardService, logger: logger}
}

func (h *BoardHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

func (h *BoardHandler) Dashboard(c *gin.Context) {
	c.HTML(http.StatusOK, "msgs.html", nil)
}

// CreateMessage stores a message and returns the fragment HTMX prepends to
// the existing list.
func (h *BoardHandler) CreateMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBind(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid request")
		return
	}

	message, err := h.boardService.Post(req.Message)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty), errors.Is(err, app.ErrMessageTooLong):
			c.String(http.StatusBadRequest, err.Error())
		default:
			h.logger.Errorw("store message failed", "error", err)
			c.String(http.StatusInternalServerError, "server error")
		}
		return
	}

	c.HTML(http.StatusOK, "message_partial.html", MessageView{
		Text:      message.Text,
		Timestamp: timefmt.FormatOrUTC(message.CreatedAt, viewerTimezone(c)),
	})
}

// ListMessages renders the full list fragment newest first.
func (h *BoardHandler) ListMessages(c *gin.Context) {
	messages, err := h.boardService.ListRecent()
	if err != nil {
		h.logger.Errorw("list messages failed", "error", err)
		c.String(http.StatusInternalServerError, "server error")
		return
	}
	h.renderList(c, messages)
}

func (h *BoardHandler) SearchMessages(c *gin.Context) {
	messages, err := h.boardService.Search(c.Query("q"))
	if err != nil {
		h.logger.Errorw("search messages failed", "error", err)
		c.String(http.StatusInternalServerError, "server error")
		return
	}
	h.renderList(c, messages)
}

func (h *BoardHandler) renderList(c *gin.Context, messages []model.Message) {
	zone := viewerTimezone(c)
	views := make([]MessageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, MessageView{
			Text:      message.Text,
			Timestamp: timefmt.FormatOrUTC(message.CreatedAt, zone),
		})
	}
	c.HTML(http.StatusOK, "messages_list.html", gin.H{"Messages": views})
}

// viewerTimezone prefers an explicit ?tz= override, then the timezone the
// session was issued with. An unknown zone falls back to UTC at format time.
func viewerTimezone(c *gin.Context) string {
	if tz := c.Query("tz"); tz != "" {
		return tz
	}
	if tz, ok := c.Get(middleware.ContextTimezoneKey); ok {
		if zone, isString := tz.(string); isString {
			return zone
		}
	}
	return "UTC"
}
