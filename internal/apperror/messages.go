package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:    "Invalid input provided",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:     "Service request timeout",
	CodeServiceUnavailable: "Service temporarily unavailable",
	CodeRateLimitExceeded:  "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to node",
	CodeEthereumRPCError:         "Node RPC call failed",
	CodeBlockNotFound:            "Block not found",
	CodeNodeSyncing:              "Node is syncing",

	CodeInvalidBlockHeader: "Invalid block header",

	CodeMonitorAPIError:          "Monitor API request failed",
	CodeMetricsScrapeFailed:      "Failed to scrape metrics endpoint",
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeCircuitOpen: "Circuit breaker is open",
}
