package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeUnknown              = "UNKNOWN"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeDuplicateEntity      = "DUPLICATE_ENTITY"
	CodeAlreadyProcessed     = "ALREADY_PROCESSED"
	CodeRequestNotFound      = "REQUEST_NOT_FOUND"
	CodeUnavailable          = "UNAVAILABLE"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotFound             = "NOT_FOUND"
	CodeVerificationMismatch = "VERIFICATION_MISMATCH"
)

// Draw status keys used for user-visible progress messages.
const (
	KeyDrawPending      = "DRAW_PENDING"
	KeyDrawRevealed     = "DRAW_REVEALED"
	KeyDrawValid        = "DRAW_VALID"
	KeyDrawUnverifiable = "DRAW_UNVERIFIABLE"
)

var enUSCatalog = &Catalog{
	locale: BaseLocale,
	messages: map[Code]string{
		CodeUnknown:      "Something went wrong",
		CodeInvalidInput: "Invalid input: {{.Reason}}",

		// Commitment errors
		CodeDuplicateEntity:  "You already ran this exact draw. Choose a new salt to run it again.",
		CodeAlreadyProcessed: "You already ran this exact draw. Choose a new salt to run it again.",
		CodeRequestNotFound:  "Randomness was delivered for an unknown request {{.RequestID}}",

		// Randomness source errors
		CodeUnavailable:  "The randomness service is temporarily unavailable, try again shortly",
		CodeUnauthorized: "The randomness service rejected the credentials",

		CodeNotFound: "No commitment was found for {{.Key}}",

		// Verification
		CodeVerificationMismatch: "Invalid: the published {{.Field}} does not match the recomputed value, the draw may have been tampered with",
		KeyDrawPending:           "Waiting for randomness for commitment {{.EntityHash}}",
		KeyDrawRevealed:          "Randomness delivered for commitment {{.EntityHash}}",
		KeyDrawValid:             "Valid: the commitment and winners match the published inputs",
		KeyDrawUnverifiable:      "Unable to verify: {{.Missing}} is missing",
	},
}
