package conversation

import (
	"context"
	"strings"
	"sync"

	"ecoagent-be/internal/pkg/logger"
	"ecoagent-be/pkg/analysis"
)

const (
	// DefaultConfidenceFloor is the confidence_final threshold under which
	// the finished category is re-elicited.
	DefaultConfidenceFloor = 0.8
	// DefaultMaxReasks bounds the re-elicitation loop per pipeline run.
	DefaultMaxReasks = 2

	completionMessage = "Analysis complete. No further questions."
)

// Orchestrator drives a guided intake conversation against the analysis
// backend: it sequences question/answer steps, launches the post-category
// pipeline (summary → emissions → confidence, with correction and re-ask
// retries), and withholds the upcoming category from visible state until
// that pipeline has finished.
type Orchestrator struct {
	client   analysis.Client
	notifier Notifier
	log      logger.ILogger

	ConfidenceFloor float64
	MaxReasks       int

	pipelines sync.WaitGroup
}

func NewOrchestrator(client analysis.Client, notifier Notifier, log logger.ILogger) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Orchestrator{
		client:          client,
		notifier:        notifier,
		log:             log,
		ConfidenceFloor: DefaultConfidenceFloor,
		MaxReasks:       DefaultMaxReasks,
	}
}

// Wait blocks until every in-flight post-category pipeline has finished.
// Used on shutdown and by tests.
func (o *Orchestrator) Wait() {
	o.pipelines.Wait()
}

// Initialize fetches the opening step for a fresh session. Transport
// failures are logged and swallowed: the session stays untouched and
// interactive. Calling this twice for the same session is a caller bug.
func (o *Orchestrator) Initialize(ctx context.Context, s *Session) {
	s.mu.Lock()
	s.Awaiting = true
	s.mu.Unlock()

	resp, err := o.client.NextStep(ctx, analysis.StepRequest{SessionID: s.ID})
	if err != nil {
		o.log.Error("Conversation", "Initial step fetch failed", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
		o.settle(s)
		return
	}

	o.handleResponse(ctx, s, resp)
	o.settle(s)
}

// SubmitAnswer records the user's answer optimistically, pairs it with the
// most recent assistant question and forwards both to the backend. Blank
// answers are a silent no-op. On transport failure the answer stays in the
// transcript; answers are never rolled back.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, s *Session, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.AnalysisComplete {
		s.mu.Unlock()
		return
	}
	msg := s.appendMessageLocked(RoleUser, text)
	question := s.lastAssistantTextLocked()
	category := s.CurrentCategory
	s.Awaiting = true
	s.mu.Unlock()

	o.notifier.Notify(s.ID, EventMessageAppended, map[string]interface{}{"message": msg})

	resp, err := o.client.NextStep(ctx, analysis.StepRequest{
		SessionID: s.ID,
		Category:  category,
		Question:  question,
		Answer:    text,
	})
	if err != nil {
		o.log.Error("Conversation", "Answer submission failed", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
		o.settle(s)
		return
	}

	o.handleResponse(ctx, s, resp)
	o.settle(s)
}

// settle clears the awaiting flag unless a pipeline took ownership of it.
func (o *Orchestrator) settle(s *Session) {
	s.mu.Lock()
	if !s.pipelineRunning {
		s.Awaiting = false
	}
	s.mu.Unlock()
}

type pendingEvent struct {
	typ     string
	payload map[string]interface{}
}

func (o *Orchestrator) emit(sessionID string, events []pendingEvent) {
	for _, e := range events {
		o.notifier.Notify(sessionID, e.typ, e.payload)
	}
}

// handleResponse is the single entry point for every step response,
// including the recursive ones produced by the re-ask loop.
func (o *Orchestrator) handleResponse(ctx context.Context, s *Session, resp *analysis.StepResponse) {
	if resp == nil {
		return
	}

	var events []pendingEvent
	s.mu.Lock()

	// Bootstrap: before any category is current, adopt the one named by the
	// response and show it immediately. This is the only path on which a
	// category becomes visible without a preceding pipeline.
	if s.CurrentCategory == "" {
		initial := resp.NextCategory
		if initial == "" {
			initial = resp.Category
		}
		if initial != "" {
			s.CurrentCategory = initial
			s.addDetectedCategoryLocked(initial)
			events = append(events, pendingEvent{EventCategoryDetected, map[string]interface{}{"category": initial}})
		}
	}

	ids := make([]string, 0, len(resp.ExtractedFields))
	for _, f := range resp.ExtractedFields {
		if id := f.Identifier(); id != "" {
			ids = append(ids, id)
		}
	}
	if added := s.addEntitiesLocked(ids); len(added) > 0 {
		events = append(events, pendingEvent{EventEntitiesAdded, map[string]interface{}{"entities": added}})
	}

	if resp.CategoryComplete {
		// The category the user was answering is done. The backend may have
		// bundled the next category's first question into this response; it
		// must stay buffered until the pipeline for the finished category
		// has committed its emissions and confidence.
		finished := s.CurrentCategory
		if resp.NextCategory != "" {
			s.pendingNextCategory = resp.NextCategory
		}
		if resp.NextQuestion != "" {
			s.pendingNextQuestion = resp.NextQuestion
		}

		launch := !s.pipelineRunning && finished != ""
		if launch {
			s.pipelineRunning = true
			s.Awaiting = true
		}
		s.mu.Unlock()
		o.emit(s.ID, events)

		if launch {
			o.notifier.Notify(s.ID, EventPipelineStarted, map[string]interface{}{"category": finished})
			o.pipelines.Add(1)
			go func() {
				defer o.pipelines.Done()
				// The request context may be canceled as soon as the HTTP
				// handler returns; the pipeline outlives it.
				o.runPipeline(context.WithoutCancel(ctx), s, finished, resp)
			}()
		}
		return
	}

	if resp.NextQuestion != "" {
		msg := s.appendMessageLocked(RoleAssistant, resp.NextQuestion)
		events = append(events, pendingEvent{EventMessageAppended, map[string]interface{}{"message": msg}})
	}

	if resp.AnalysisComplete {
		s.AnalysisComplete = true
		msg := s.appendMessageLocked(RoleAssistant, completionMessage)
		events = append(events,
			pendingEvent{EventMessageAppended, map[string]interface{}{"message": msg}},
			pendingEvent{EventAnalysisComplete, map[string]interface{}{}},
		)
	}

	s.mu.Unlock()
	o.emit(s.ID, events)
}

// runPipeline executes the post-category sequence for finished. Exactly one
// pipeline runs per session at a time; the caller has already claimed the
// running flag. Errors never escape: whatever partial state was committed
// (emissions, transcript) stays, and the cleanup always returns the session
// to an interactive state.
func (o *Orchestrator) runPipeline(ctx context.Context, s *Session, finished string, trigger *analysis.StepResponse) {
	defer func() {
		s.mu.Lock()
		s.pipelineRunning = false
		s.summaryInFlight = false
		s.emissionsInFlight = false
		s.confidenceInFlight = false
		s.Awaiting = false
		s.mu.Unlock()
		o.notifier.Notify(s.ID, EventPipelineFinished, map[string]interface{}{"category": finished})
	}()

	// 1. Summary refresh is best-effort.
	s.setSummaryInFlight(true)
	if err := o.client.UpdateSummary(ctx, s.ID, finished); err != nil {
		o.log.Warn("Conversation", "Summary update failed, continuing", map[string]interface{}{
			"session_id": s.ID,
			"category":   finished,
			"error":      err.Error(),
		})
	}
	s.setSummaryInFlight(false)

	conf, err := o.runEmissionsAndConfidence(ctx, s, finished, "")
	if err != nil {
		o.log.Error("Conversation", "Post-category pipeline aborted", map[string]interface{}{
			"session_id": s.ID,
			"category":   finished,
			"error":      err.Error(),
		})
		return
	}

	// 2. One corrective re-run when the backend marks the calculation invalid.
	// A second invalid verdict is accepted as-is.
	if conf.CalculationValid != nil && !*conf.CalculationValid {
		conf, err = o.runEmissionsAndConfidence(ctx, s, finished, conf.CorrectionNote)
		if err != nil {
			o.log.Error("Conversation", "Post-category pipeline aborted", map[string]interface{}{
				"session_id": s.ID,
				"category":   finished,
				"error":      err.Error(),
			})
			return
		}
	}

	// 3. Re-elicit while confidence stays under the floor, bounded.
	for reasks := 0; conf.ConfidenceFinal != nil && *conf.ConfidenceFinal < o.ConfidenceFloor && reasks < o.MaxReasks; {
		reasks++
		missing := conf.MissingFields
		if missing == nil {
			missing = []string{}
		}

		// Empty question/answer force the backend to re-elicit the finished
		// category around the missing fields.
		reResp, rerr := o.client.NextStep(ctx, analysis.StepRequest{
			SessionID:     s.ID,
			Category:      finished,
			MissingFields: missing,
		})
		if rerr != nil {
			o.log.Warn("Conversation", "Re-ask failed, continuing", map[string]interface{}{
				"session_id": s.ID,
				"category":   finished,
				"error":      rerr.Error(),
			})
		} else {
			o.handleResponse(ctx, s, reResp)
		}

		conf, err = o.runEmissionsAndConfidence(ctx, s, finished, "")
		if err != nil {
			o.log.Error("Conversation", "Post-category pipeline aborted", map[string]interface{}{
				"session_id": s.ID,
				"category":   finished,
				"error":      err.Error(),
			})
			return
		}
	}

	o.transition(ctx, s, trigger)
}

// runEmissionsAndConfidence performs the fatal pair of pipeline calls.
// A numeric emissions figure is committed to the chart data even when a
// later step fails.
func (o *Orchestrator) runEmissionsAndConfidence(ctx context.Context, s *Session, category, correctionNote string) (*analysis.ConfidenceResponse, error) {
	s.setEmissionsInFlight(true)
	em, err := o.client.CalculateEmissions(ctx, analysis.EmissionsRequest{
		SessionID:      s.ID,
		Category:       category,
		CorrectionNote: correctionNote,
	})
	s.setEmissionsInFlight(false)
	if err != nil {
		return nil, err
	}

	if em != nil && em.RawEmissions != nil {
		s.mu.Lock()
		s.upsertEmissionsLocked(category, *em.RawEmissions)
		s.mu.Unlock()
		o.notifier.Notify(s.ID, EventEmissionsUpdated, map[string]interface{}{
			"category": category,
			"tonnes":   *em.RawEmissions,
		})
	}

	s.setConfidenceInFlight(true)
	conf, err := o.client.CheckConfidence(ctx, s.ID, category)
	s.setConfidenceInFlight(false)
	if err != nil {
		return nil, err
	}
	return conf, nil
}

// transition reveals the next category once the pipeline has finished: this
// is the first moment it may appear in detected categories or the
// transcript. The pending buffer is consumed and cleared in the same
// critical section as the current-category switch.
func (o *Orchestrator) transition(ctx context.Context, s *Session, trigger *analysis.StepResponse) {
	var events []pendingEvent
	s.mu.Lock()

	next := s.pendingNextCategory
	if next == "" && trigger != nil {
		next = trigger.NextCategory
	}
	pendingQ := s.pendingNextQuestion
	s.pendingNextCategory = ""
	s.pendingNextQuestion = ""

	if next == "" {
		// Rare: no upcoming category, but a question was buffered.
		if pendingQ != "" {
			msg := s.appendMessageLocked(RoleAssistant, pendingQ)
			events = append(events, pendingEvent{EventMessageAppended, map[string]interface{}{"message": msg}})
		}
		s.mu.Unlock()
		o.emit(s.ID, events)
		return
	}

	s.CurrentCategory = next
	s.addDetectedCategoryLocked(next)
	events = append(events, pendingEvent{EventCategoryDetected, map[string]interface{}{"category": next}})

	if pendingQ != "" {
		msg := s.appendMessageLocked(RoleAssistant, pendingQ)
		events = append(events, pendingEvent{EventMessageAppended, map[string]interface{}{"message": msg}})
		s.mu.Unlock()
		o.emit(s.ID, events)
		return
	}

	s.mu.Unlock()
	o.emit(s.ID, events)

	// Nothing buffered: ask the backend for the new category's first question.
	resp, err := o.client.NextStep(ctx, analysis.StepRequest{
		SessionID: s.ID,
		Category:  next,
	})
	if err != nil {
		o.log.Warn("Conversation", "First question fetch for new category failed", map[string]interface{}{
			"session_id": s.ID,
			"category":   next,
			"error":      err.Error(),
		})
		return
	}
	o.handleResponse(ctx, s, resp)
}

func (s *Session) setSummaryInFlight(v bool) {
	s.mu.Lock()
	s.summaryInFlight = v
	s.mu.Unlock()
}

func (s *Session) setEmissionsInFlight(v bool) {
	s.mu.Lock()
	s.emissionsInFlight = v
	s.mu.Unlock()
}

func (s *Session) setConfidenceInFlight(v bool) {
	s.mu.Lock()
	s.confidenceInFlight = v
	s.mu.Unlock()
}
