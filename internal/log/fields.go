package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldClientIP    = "client_ip"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldChatID      = "chat_id"
	FieldUserID      = "user_id"
	FieldTelegramID  = "telegram_id"
	FieldFlow        = "flow"
	FieldStep        = "step"
	FieldKind        = "kind"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldUpdateID    = "update_id"
	FieldCommand     = "command"
	FieldWebhookURL  = "webhook_url"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentBot     = "bot"
	ComponentDialog  = "dialog"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWebhook = "webhook"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpSum      = "sum"
	OpDispatch = "dispatch"
	OpResume   = "resume"
	OpRegister = "register"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
