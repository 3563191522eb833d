package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Protocol Violations (R001-R009)
	// ============================================

	"R001": {
		Category: CategoryProtocol,
		Message:  "Unknown node",
		Detail:   "The mutation stream referenced a node id that is not registered. The engine and renderer disagree about which nodes are live.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R001",
	},
	"R002": {
		Category: CategoryProtocol,
		Message:  "Duplicate node",
		Detail:   "A create instruction used a node id that is still live. Ids may only be reused after Remove or ReplaceWith released them.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R002",
	},
	"R003": {
		Category: CategoryProtocol,
		Message:  "Stack underflow",
		Detail:   "An instruction popped more nodes than the batch pushed.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R003",
	},
	"R004": {
		Category: CategoryProtocol,
		Message:  "Unknown instruction",
		Detail:   "The batch contained an opcode this renderer does not implement. Engine and renderer protocol versions likely differ.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R004",
	},
	"R005": {
		Category: CategoryProtocol,
		Message:  "Renderer faulted",
		Detail:   "An earlier batch failed with a protocol violation. The DOM no longer matches the engine's view and further batches are rejected until the renderer is reset.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R005",
	},
	"R006": {
		Category: CategoryProtocol,
		Message:  "Node id out of range",
		Detail:   "A create instruction used a node id above the registry limit. Node ids are expected to be small integers.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R006",
	},

	"R007": {
		Category: CategoryProtocol,
		Message:  "Malformed batch",
		Detail:   "A mutation frame could not be decoded. Nothing from it was applied.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R007",
	},

	// ============================================
	// Native Capability Failures (R010-R019)
	// ============================================

	"R010": {
		Category: CategoryNative,
		Message:  "Native call failed",
		Detail:   "The DOM rejected an operation. The instruction was skipped and the rest of the batch applied.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R010",
	},

	// ============================================
	// Event Decode Failures (R020-R029)
	// ============================================

	"R020": {
		Category: CategoryDecode,
		Message:  "Event decode failed",
		Detail:   "A native event was missing a field its category requires. The event was dropped.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R020",
	},

	// ============================================
	// Configuration Errors (R030-R039)
	// ============================================

	"R030": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file contains an invalid value.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R030",
	},
	"R031": {
		Category: CategoryConfig,
		Message:  "Configuration file unreadable",
		Detail:   "The configuration file could not be read or is not valid TOML.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R031",
	},

	// ============================================
	// Transport Errors (R040-R049)
	// ============================================

	"R040": {
		Category: CategoryTransport,
		Message:  "Transport failure",
		Detail:   "The connection to the engine failed or was closed unexpectedly.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R040",
	},
	"R041": {
		Category: CategoryTransport,
		Message:  "Source unavailable",
		Detail:   "The recorded mutation stream could not be opened.",
		DocURL:   "https://vango.dev/docs/vrender/errors/R041",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
