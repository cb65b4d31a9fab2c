package transaction

// History paging defaults
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)
