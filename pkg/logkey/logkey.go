package logkey

// attribute keys shared by every slog call in the service
const (
	TraceID   = "TRACE ID"
	ERROR     = "ERROR"
	UserID    = "UserID"
	OrderID   = "OrderID"
	ProductID = "ProductID"
	PaymentID = "PaymentID"
	EventID   = "EventID"
)
