package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeStreamIDRequired        = "STREAM_ID_REQUIRED"
	CodeStreamConcurrency       = "STREAM_CONCURRENCY_CONFLICT"
	CodeStreamIntegrity         = "STREAM_INTEGRITY_VIOLATION"
	CodeEventPayloadInvalid     = "EVENT_PAYLOAD_INVALID"
	CodeEventTypeRequired       = "EVENT_TYPE_REQUIRED"
	CodeEventTypeUnknown        = "EVENT_TYPE_UNKNOWN"
	CodeProjectionUnhandledType = "PROJECTION_UNHANDLED_EVENT_TYPE"
	CodeProjectionFoldFailed    = "PROJECTION_FOLD_FAILED"
	CodeNotFound                = "NOT_FOUND"
)

var enUSMessages = map[Code]string{
	CodeStreamIDRequired:        "A stream ID is required",
	CodeStreamConcurrency:       "Stream {{.StreamID}} is at version {{.ActualVersion}}, not {{.ExpectedVersion}}; reload and try again",
	CodeStreamIntegrity:         "Stream {{.StreamID}} failed integrity verification at version {{.Version}}",
	CodeEventPayloadInvalid:     "The event payload cannot be serialized deterministically",
	CodeEventTypeRequired:       "An event type is required",
	CodeEventTypeUnknown:        "Event type {{.EventType}} is not registered",
	CodeProjectionUnhandledType: "No handler is registered for event type {{.EventType}} at version {{.Version}}",
	CodeProjectionFoldFailed:    "Projection failed at version {{.Version}}",
	CodeNotFound:                "Record not found",
}

var ptBRMessages = map[Code]string{
	CodeStreamIDRequired:        "O ID do stream é obrigatório",
	CodeStreamConcurrency:       "O stream {{.StreamID}} está na versão {{.ActualVersion}}, não {{.ExpectedVersion}}; recarregue e tente novamente",
	CodeStreamIntegrity:         "O stream {{.StreamID}} falhou na verificação de integridade na versão {{.Version}}",
	CodeEventPayloadInvalid:     "O payload do evento não pode ser serializado de forma determinística",
	CodeEventTypeRequired:       "O tipo do evento é obrigatório",
	CodeEventTypeUnknown:        "O tipo de evento {{.EventType}} não está registrado",
	CodeProjectionUnhandledType: "Nenhum handler registrado para o tipo {{.EventType}} na versão {{.Version}}",
	CodeNotFound:                "Registro não encontrado",
}
