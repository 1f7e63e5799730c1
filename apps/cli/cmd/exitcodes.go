package cmd

// Exit codes for xmlhttp CLI
const (
	// ExitSuccess indicates the fetch completed and every check passed
	ExitSuccess = 0

	// ExitTestFailure indicates a failed assertion, schema or threshold
	ExitTestFailure = 1

	// ExitParseError indicates an invalid capture or assertion expression
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates the transfer failed or was aborted
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage, or a request the
	// emulation refused to open or send
	ExitUsageError = 64
)
