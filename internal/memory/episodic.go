package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/easeaico/convo-memory/internal/llm"
)

const (
	// MaxFactsPerMessage caps how many candidates one extraction may yield.
	MaxFactsPerMessage = 3

	defaultImportance = 0.5
)

// FactCandidate is one fact proposed by the inference service.
type FactCandidate struct {
	Fact       string
	Importance float64
}

// ExtractionResult is the parsed extraction output. ParseFailed is set when the
// output was not a list of facts; Facts is then empty.
type ExtractionResult struct {
	Facts       []FactCandidate
	ParseFailed bool
}

// ParseFactCandidates reads the extraction output. It accepts a bare JSON
// array, an array wrapped in prose or a code fence, or an object with a
// "facts" array. Items may be objects or plain strings.
func ParseFactCandidates(raw string) ExtractionResult {
	body := strings.TrimSpace(raw)
	if start, end := strings.IndexAny(body, "[{"), strings.LastIndexAny(body, "]}"); start >= 0 && end > start {
		body = body[start : end+1]
	}
	if body == "" || !gjson.Valid(body) {
		return ExtractionResult{ParseFailed: true}
	}

	list := gjson.Parse(body)
	if list.IsObject() {
		list = list.Get("facts")
	}
	if !list.IsArray() {
		return ExtractionResult{ParseFailed: true}
	}

	var facts []FactCandidate
	for i, item := range list.Array() {
		if i == MaxFactsPerMessage {
			break
		}

		c := FactCandidate{Importance: defaultImportance}
		switch {
		case item.IsObject():
			c.Fact = item.Get("fact").String()
			if imp := item.Get("importance"); imp.Exists() {
				c.Importance = clampImportance(imp.Float())
			}
		case item.Type == gjson.String:
			c.Fact = item.String()
		default:
			continue
		}
		facts = append(facts, c)
	}

	return ExtractionResult{Facts: facts}
}

func clampImportance(v float64) float64 {
	return min(max(v, 0), 1)
}

// EpisodicIndex extracts facts from text and retrieves the ones relevant to a query.
type EpisodicIndex struct {
	store Store
	llm   llm.Client
	log   *logrus.Entry
}

// NewEpisodicIndex creates an index over store using client for extraction and embeddings.
func NewEpisodicIndex(store Store, client llm.Client) *EpisodicIndex {
	return &EpisodicIndex{
		store: store,
		llm:   client,
		log:   logrus.WithField("component", "episodic"),
	}
}

// ExtractAndStore asks the inference service for facts in text, embeds each and
// stores it. Empty facts and facts without an embedding are dropped. Output that
// cannot be parsed yields no episodes and no error.
func (x *EpisodicIndex) ExtractAndStore(ctx context.Context, owner, sessionID, text string) ([]Episode, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	raw, err := x.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: extractionSystemPrompt},
		{Role: llm.RoleUser, Content: render(extractionPromptTmpl, map[string]any{"Max": MaxFactsPerMessage, "Text": text})},
	}, summaryTemperature)
	if err != nil {
		return nil, fmt.Errorf("failed to extract facts: %w", err)
	}

	result := ParseFactCandidates(raw)
	if result.ParseFailed {
		x.log.WithFields(logrus.Fields{"owner": owner, "session": sessionID}).
			Debugf("extraction output not parseable: %q", raw)
		return nil, nil
	}

	var stored []Episode
	var errs []error
	for _, c := range result.Facts {
		fact := strings.TrimSpace(c.Fact)
		if fact == "" {
			continue
		}

		vec, err := x.llm.Embed(ctx, fact)
		if err != nil || len(vec) == 0 {
			x.log.WithError(err).WithField("owner", owner).Warn("dropping fact without embedding")
			continue
		}

		ep := Episode{
			Owner:      owner,
			SessionID:  sessionID,
			Fact:       fact,
			Importance: c.Importance,
			Embedding:  vec,
		}
		if err := x.store.AppendEpisode(ctx, &ep); err != nil {
			errs = append(errs, err)
			continue
		}
		stored = append(stored, ep)
	}

	return stored, errors.Join(errs...)
}

// RetrieveRelevant returns up to topK episodes most similar to query, most
// relevant first. The scope is the whole owner when sessionID is empty.
// A query that cannot be embedded yields no episodes.
func (x *EpisodicIndex) RetrieveRelevant(ctx context.Context, owner, query, sessionID string, topK int) ([]Episode, error) {
	vec, err := x.llm.Embed(ctx, query)
	if err != nil || len(vec) == 0 {
		x.log.WithError(err).WithField("owner", owner).Warn("query embedding unavailable")
		return nil, nil
	}

	episodes, err := x.store.ListEpisodes(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate[Episode], len(episodes))
	for i, ep := range episodes {
		candidates[i] = Candidate[Episode]{Item: ep, Vector: ep.Embedding}
	}

	return Rank(vec, candidates, topK), nil
}

// RecentFacts returns the newest episodes of a session.
func (x *EpisodicIndex) RecentFacts(ctx context.Context, owner, sessionID string, limit int) ([]Episode, error) {
	return x.store.RecentEpisodes(ctx, owner, sessionID, limit)
}
