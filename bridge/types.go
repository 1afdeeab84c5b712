package bridge

// Message names on the host channel.
const (
	msgRegister   = "register"
	msgHTTPGet    = "httpGET"
	msgHTTPPost   = "httpPOST"
	msgHTTPPut    = "httpPUT"
	msgHTTPDelete = "httpDELETE"
	msgOpen       = "open"
	msgOpenList   = "openList"
	msgRefresh    = "refresh"
)

// Lifecycle and relay event names the client emits to local listeners.
const (
	EventReady  = "ready"
	EventError  = "error"
	EventCustom = "customEvent"
	EventUpdate = "update"
)

// registerRequest is the handshake payload sent to the host.
type registerRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Color string `json:"color"`
}

// httpRequest is the payload for proxied HTTP verb calls. Body is
// pre-serialized so the size limit applies to exactly what goes on the
// wire.
type httpRequest struct {
	RelativeURL string `json:"relativeURL"`
	Body        any    `json:"body,omitempty"`
}

// RegistrationInfo customizes the handshake. All fields are optional;
// Title and Color fall back to the client's configured values and then
// to package defaults, URL falls back to the launch URL.
type RegistrationInfo struct {
	Title string
	URL   string
	Color string
}

// Credentials is the read-only snapshot of host-provided session
// identity extracted from the launch URL. Fields that were absent or
// failed validation are empty.
type Credentials struct {
	CorporationID  string
	PrivateLabelID string
	UserID         string
	RestURL        string
	RestToken      string
}
