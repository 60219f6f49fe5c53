package audit

const (
	EventIngestAccepted            = "ingest.accepted"
	EventIngestRejected            = "ingest.rejected"
	EventIngestTransportFailed     = "ingest.transport_failed"
	EventIngestSerializationFailed = "ingest.serialization_failed"
	EventIngestDecodeFailed        = "ingest.decode_failed"
)

const (
	EventAuthFailure = "auth.failure"
)

func GetEventCategory(eventType string) string {
	switch eventType {
	case EventIngestAccepted, EventIngestRejected, EventIngestTransportFailed,
		EventIngestSerializationFailed, EventIngestDecodeFailed:
		return "ingest"
	case EventAuthFailure:
		return "auth"
	default:
		return "unknown"
	}
}

func GetEventSeverity(eventType string) string {
	switch eventType {
	case EventIngestRejected, EventIngestTransportFailed, EventAuthFailure:
		return "high"
	case EventIngestSerializationFailed, EventIngestDecodeFailed:
		return "medium"
	case EventIngestAccepted:
		return "low"
	default:
		return "medium"
	}
}
