package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	adkmemory "google.golang.org/adk/memory"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// ADKService exposes the episodic index as an adk memory.Service, so agents
// built on adk share facts with the HTTP memory service.
type ADKService struct {
	index *EpisodicIndex
	topK  int
}

var _ adkmemory.Service = (*ADKService)(nil)

// NewADKService creates a new memory service returning at most topK entries per search.
func NewADKService(index *EpisodicIndex, topK int) *ADKService {
	return &ADKService{index: index, topK: topK}
}

// AddSession implements memory.Service interface.
// Every user event of the session is run through fact extraction under the
// session's user and id.
func (s *ADKService) AddSession(ctx context.Context, sess session.Session) error {
	var errs []error
	for event := range sess.Events().All() {
		if event.Author != "user" || event.Content == nil {
			continue
		}

		text := strings.Join(extractTextFromContent([]*genai.Content{event.Content}), " ")
		if text == "" {
			continue
		}

		if _, err := s.index.ExtractAndStore(ctx, sess.UserID(), sess.ID(), text); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to add session to memory: %w", err)
	}
	return nil
}

// Search implements memory.Service interface.
// It ranks all of the user's episodes against the query.
func (s *ADKService) Search(ctx context.Context, req *adkmemory.SearchRequest) (*adkmemory.SearchResponse, error) {
	episodes, err := s.index.RetrieveRelevant(ctx, req.UserID, req.Query, "", s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search episodes: %w", err)
	}

	memories := make([]adkmemory.Entry, 0, len(episodes))
	for _, ep := range episodes {
		// genai.Text returns []*Content, we need the first one
		contentParts := genai.Text(ep.Fact)
		if len(contentParts) == 0 {
			continue
		}

		memories = append(memories, adkmemory.Entry{
			Content:   contentParts[0],
			Author:    "memory",
			Timestamp: ep.CreatedAt,
		})
	}

	return &adkmemory.SearchResponse{Memories: memories}, nil
}

// extractTextFromContent extracts text from genai.Content parts
func extractTextFromContent(content []*genai.Content) []string {
	var texts []string
	for _, c := range content {
		for _, part := range c.Parts {
			if part == nil {
				continue
			}
			if text := part.Text; text != "" {
				texts = append(texts, text)
			}
		}
	}
	return texts
}
