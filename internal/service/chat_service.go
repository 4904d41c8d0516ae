package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/docpilot-ai/docpilot/internal/config"
	"github.com/docpilot-ai/docpilot/internal/domain"
	"github.com/docpilot-ai/docpilot/internal/repository"
)

// ChatService handles multi-turn conversations over the RAG pipeline.
// Requests against the same conversation are serialized through a keyed
// lock so concurrent chats never interleave history; distinct
// conversations proceed in parallel.
type ChatService struct {
	cfg      *config.Config
	rag      *RAGService
	convRepo *repository.ConversationRepository
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewChatService creates a new chat service
func NewChatService(
	cfg *config.Config,
	rag *RAGService,
	convRepo *repository.ConversationRepository,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		cfg:      cfg,
		rag:      rag,
		convRepo: convRepo,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing one conversation, creating it on
// first use.
func (s *ChatService) lockFor(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conversationID] = l
	}
	return l
}

// dropLock tears down an idle lock so the map does not grow unbounded.
func (s *ChatService) dropLock(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, conversationID)
}

// Chat answers a question within a conversation. An empty
// conversation_id creates a new conversation; an unknown explicit one
// fails with domain.ErrConversationNotFound. Both the user message and
// the assistant message (with its sources) are appended in order.
func (s *ChatService) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		id, err := s.convRepo.Create(ctx)
		if err != nil {
			return nil, err
		}
		conversationID = id
	} else {
		if _, err := s.convRepo.Get(ctx, conversationID); err != nil {
			return nil, err
		}
	}

	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	// Prior turns only: the current question is carried separately so
	// history truncation can never drop it.
	history, err := s.convRepo.History(ctx, conversationID, s.cfg.RAG.MaxHistoryTurns)
	if err != nil {
		return nil, err
	}

	sources, err := s.rag.Retrieve(ctx, req.Message, s.cfg.RAG.TopKRetrieve, s.cfg.RAG.TopKRerank)
	if err != nil {
		return nil, err
	}

	prompt := s.rag.Assemble(req.Message, sources, history)

	answer, err := s.rag.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.Message{Role: domain.RoleUser, Content: req.Message}
	if err := s.convRepo.Append(ctx, conversationID, userMsg); err != nil {
		return nil, err
	}

	assistantMsg := &domain.Message{
		Role:    domain.RoleAssistant,
		Content: answer,
		Sources: prompt.Sources,
	}
	if err := s.convRepo.Append(ctx, conversationID, assistantMsg); err != nil {
		return nil, err
	}

	s.logger.Info("chat turn completed",
		zap.String("conversation_id", conversationID),
		zap.Int("sources", len(prompt.Sources)),
	)

	return &domain.ChatResponse{
		Answer:         answer,
		Sources:        sourcesOrEmpty(prompt.Sources),
		ConversationID: conversationID,
		Model:          s.rag.Model(),
	}, nil
}

// GetConversation returns a conversation with its full history.
func (s *ChatService) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.convRepo.History(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages
	return conv, nil
}

// ListConversations lists all conversations, most recently updated first.
func (s *ChatService) ListConversations(ctx context.Context) ([]*domain.ConversationSummary, error) {
	return s.convRepo.List(ctx)
}

// DeleteConversation removes a conversation and tears down its lock.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.convRepo.Delete(ctx, conversationID); err != nil {
		return err
	}
	s.dropLock(conversationID)
	return nil
}

// Reset clears all conversations and locks, returning the number removed.
func (s *ChatService) Reset(ctx context.Context) (int, error) {
	count, err := s.convRepo.Reset(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.locks = make(map[string]*sync.Mutex)
	s.mu.Unlock()

	s.logger.Info("conversations cleared", zap.Int("count", count))
	return count, nil
}
