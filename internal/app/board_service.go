package app

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/astevko/htmx-message-board/internal/model"
)

const MaxMessageLen = 500

var (
	ErrMessageEmpty   = errors.New("message text is empty")
	ErrMessageTooLong = errors.New("message text exceeds 500 characters")
)

// MessageStore is the persistence port for board messages.
type MessageStore interface {
	Create(message *model.Message) error
	ListRecent() ([]model.Message, error)
	Count() (int64, error)
	Search(term string) ([]model.Message, error)
}

type BoardService struct {
	store MessageStore
}

func NewBoardService(store MessageStore) *BoardService {
	return &BoardService{store: store}
}

// Post validates and persists a message. The insert is synchronous, so the
// message is visible to any ListRecent call that starts after Post returns.
func (s *BoardService) Post(text string) (*model.Message, error) {
	if text == "" {
		return nil, ErrMessageEmpty
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}

	message := &model.Message{
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(message); err != nil {
		return nil, err
	}
	return message, nil
}

// ListRecent returns all messages newest first, freshly queried each call.
func (s *BoardService) ListRecent() ([]model.Message, error) {
	return s.store.ListRecent()
}

func (s *BoardService) Search(term string) ([]model.Message, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.store.ListRecent()
	}
	return s.store.Search(term)
}

func (s *BoardService) Count() (int64, error) {
	return s.store.Count()
}
