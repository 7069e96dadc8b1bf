package conversation

// Event codes published as the conversation advances. Consumers (the
// websocket fan-out, the probe CLI) use these to decide what to re-render.
const (
	EventMessageAppended  = "MESSAGE_APPENDED"
	EventEntitiesAdded    = "ENTITIES_ADDED"
	EventCategoryDetected = "CATEGORY_DETECTED"
	EventEmissionsUpdated = "EMISSIONS_UPDATED"
	EventPipelineStarted  = "PIPELINE_STARTED"
	EventPipelineFinished = "PIPELINE_FINISHED"
	EventAnalysisComplete = "ANALYSIS_COMPLETE"
)

// Notifier receives state-change notifications for a session. Implementations
// must not block: the orchestrator calls this inline on its hot path.
type Notifier interface {
	Notify(sessionID, eventType string, payload map[string]interface{})
}

type NopNotifier struct{}

func (NopNotifier) Notify(string, string, map[string]interface{}) {}
