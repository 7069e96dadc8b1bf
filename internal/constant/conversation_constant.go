package constant

const (
	// ConversationEventsTopic is the in-process pub/sub topic every session
	// event is published to.
	ConversationEventsTopic = "conversation_events"

	// ClusterEventsChannel is the redis channel used to fan events out to
	// other instances when redis is configured.
	ClusterEventsChannel = "cluster_events"
)
