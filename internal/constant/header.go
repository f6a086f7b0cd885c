package constant

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderSessionID = "X-Session-Id"
	HeaderAccountID = "X-Account-Id"
	HeaderSigner    = "X-Signer"
	HeaderRequestID = "X-Request-Id"
)
