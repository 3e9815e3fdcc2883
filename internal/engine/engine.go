// Package engine owns the conversation state machine: it decides per
// incoming message whether to keep collecting requirements or to
// finalize, renders prompts, invokes the completion client, and keeps
// session history consistent.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"specbuddy/internal/extract"
	"specbuddy/internal/llm"
	"specbuddy/internal/prompt"
	"specbuddy/internal/session"
	"specbuddy/internal/unsplash"
)

// Strategy names the two finalization behaviors the product grew: a
// Markdown narrative summary, and a structured JSON payload reformatted
// for the user.
type Strategy string

const (
	StrategyMarkdown   Strategy = "markdown"
	StrategyStructured Strategy = "structured"
)

// doneSentinel ends collection. Only an exact trimmed, case-folded
// match triggers finalization; the word appearing inside a longer
// message never does. The trade-off is that a message consisting of
// just this word can never be ordinary text.
const doneSentinel = "done"

// Reply is the engine's structured result for one turn.
type Reply struct {
	Text          string
	Summary       *extract.Summary
	FollowUp      string
	ImageQuery    string
	ImageURL      string
	Ended         bool
	ExtractFailed bool
}

// Engine drives conversations. One Engine serves all sessions; all
// per-session mutation happens under that session's lock.
type Engine struct {
	store    session.Store
	llm      llm.Client
	images   *unsplash.Client
	archive  *session.Archive
	cache    responseCache
	tracer   trace.Tracer
	logger   *slog.Logger
	strategy Strategy
}

func New(store session.Store, client llm.Client, images *unsplash.Client, archive *session.Archive, strategy Strategy, tracer trace.Tracer, logger *slog.Logger) *Engine {
	if strategy != StrategyMarkdown {
		strategy = StrategyStructured
	}
	return &Engine{
		store:    store,
		llm:      client,
		images:   images,
		archive:  archive,
		tracer:   tracer,
		logger:   logger,
		strategy: strategy,
	}
}

// IsDone reports whether a message is the finalization sentinel.
func IsDone(message string) bool {
	return strings.EqualFold(strings.TrimSpace(message), doneSentinel)
}

// HandleMessage processes one inbound message for a session. The
// session lock is held for the whole turn, so concurrent requests for
// the same id are serialized in arrival order and history can never
// interleave. On a completion failure the user turn stays recorded, no
// assistant turn is appended, and the error is surfaced.
//
// After a finalization the session stays alive: its mode is recorded as
// finalized, but further messages continue the same conversation with
// full history and a later "done" summarizes again. Reset is the only
// way to start over.
func (e *Engine) HandleMessage(ctx context.Context, persona prompt.Persona, sessionID, message string) (*Reply, error) {
	ctx, span := e.tracer.Start(ctx, "conversation_turn")
	defer span.End()

	sess := e.store.GetOrCreate(sessionID)
	sess.Lock()
	defer sess.Unlock()
	sess.Touch()

	sess.Append(session.RoleUser, message)

	var (
		reply *Reply
		err   error
	)
	if IsDone(message) {
		reply, err = e.finalize(ctx, persona, sess)
	} else {
		reply, err = e.collect(ctx, persona, sess)
	}
	if err != nil {
		e.logger.Error("turn failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	sess.Append(session.RoleAssistant, reply.Text)
	e.archiveAsync(sess)

	return reply, nil
}

// Reset drops a session. It is idempotent and reports whether a
// session existed.
func (e *Engine) Reset(sessionID string) bool {
	existed := e.store.Delete(sessionID)
	e.logger.Info("conversation reset", "session_id", sessionID, "existed", existed)
	return existed
}

// collect runs one requirement-gathering turn.
func (e *Engine) collect(ctx context.Context, persona prompt.Persona, sess *session.Session) (*Reply, error) {
	turns := sess.Snapshot()
	system := prompt.CollectionSystem(persona)

	key := cacheKey(string(persona), turns)
	if cached, ok := e.cache.get(key); ok {
		e.logger.Info("cache hit", "session_id", sess.ID, "key", key[:16])
		return &Reply{Text: cached}, nil
	}

	text, err := e.llm.Complete(ctx, system, turns)
	if err != nil {
		return nil, err
	}

	e.cache.put(key, text)
	return &Reply{Text: text}, nil
}

// finalize runs the summarization turn for the selected strategy and
// marks the session finalized.
func (e *Engine) finalize(ctx context.Context, persona prompt.Persona, sess *session.Session) (*Reply, error) {
	// History up to but not including the sentinel itself.
	turns := sess.Snapshot()
	turns = turns[:len(turns)-1]

	var reply *Reply
	var err error
	switch {
	case persona == prompt.PersonaSalesTrainer:
		reply, err = e.finalizeNarrative(ctx, prompt.SalesTrainerSummarySystem, turns, false)
	case e.strategy == StrategyMarkdown:
		reply, err = e.finalizeNarrative(ctx, prompt.MarkdownSummarySystem, turns, true)
	default:
		reply, err = e.finalizeStructured(ctx, turns)
	}
	if err != nil {
		return nil, err
	}

	sess.Mode = session.ModeFinalized
	return reply, nil
}

// finalizeNarrative produces the Markdown narrative summary. When
// withImage is set, a second completion derives the image-search query
// from the summary text, as the original product did.
func (e *Engine) finalizeNarrative(ctx context.Context, system string, turns []session.Turn, withImage bool) (*Reply, error) {
	historyTurn := []session.Turn{{Role: session.RoleUser, Content: prompt.BuildSummaryUser(turns)}}

	text, err := e.llm.Complete(ctx, system, historyTurn)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	reply := &Reply{Text: text, Ended: true}
	if withImage {
		reply.ImageQuery = e.imageQueryFromSummary(ctx, text)
		reply.ImageURL = e.images.Search(ctx, reply.ImageQuery)
	}
	return reply, nil
}

// finalizeStructured asks for the JSON payload and runs the extractor.
// Extraction failure is recoverable: the raw text is returned verbatim
// with the failure flagged, and no image is resolved.
func (e *Engine) finalizeStructured(ctx context.Context, turns []session.Turn) (*Reply, error) {
	historyTurn := []session.Turn{{Role: session.RoleUser, Content: prompt.BuildSummaryUser(turns)}}

	raw, err := e.llm.Complete(ctx, prompt.StructuredSummarySystem, historyTurn)
	if err != nil {
		return nil, err
	}

	res := extract.Extract(raw)
	if res.Failed {
		e.logger.Warn("summary extraction failed, returning raw reply")
		return &Reply{Text: strings.TrimSpace(raw), Ended: true, ExtractFailed: true}, nil
	}

	text := res.Summary.Render()
	if res.FollowUp != "" {
		text += "\n\n" + res.FollowUp
	}

	reply := &Reply{
		Text:     text,
		Summary:  res.Summary,
		FollowUp: res.FollowUp,
		Ended:    true,
	}
	if query := res.Summary.ImageQuery(); query != "" {
		reply.ImageQuery = query
		reply.ImageURL = e.images.Search(ctx, query)
	}
	return reply, nil
}

// imageQueryFromSummary asks the model for a concise search phrase.
// Failures degrade to an empty query, which disables the image lookup.
func (e *Engine) imageQueryFromSummary(ctx context.Context, summary string) string {
	turn := []session.Turn{{
		Role:    session.RoleUser,
		Content: "Summary:\n" + summary + "\n\nReturn only the search query.",
	}}
	query, err := e.llm.Complete(ctx, prompt.ImageQuerySystem, turn)
	if err != nil {
		e.logger.Warn("image query generation failed", "error", err)
		return ""
	}
	return strings.Trim(strings.TrimSpace(query), `"`)
}

// archiveAsync snapshots the session to the archive without holding up
// the response. Callers must hold the session lock when calling; the
// snapshot is taken synchronously, the write is not.
func (e *Engine) archiveAsync(sess *session.Session) {
	if e.archive == nil {
		return
	}
	id, mode, start, turns := sess.ID, sess.Mode, sess.StartTime, sess.Snapshot()
	go func() {
		if err := e.archive.Save(id, mode, start, turns); err != nil {
			e.logger.Error("failed to archive conversation", "conversation_id", id, "error", err)
		}
	}()
}
