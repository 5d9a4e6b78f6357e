package terminology

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// SessionFactory produces HTTP clients configured with exponential backoff
// retries for transient transport failures. The client retries connection
// and timeout errors as well as 429/5xx responses; once the retry budget is
// exhausted the final response is handed back to the caller so the status
// and body stay available.
//
// Each expansion call acquires its own session and closes it when the call
// finishes, so connection reuse never outlives one logical operation.
type SessionFactory struct {
	// RetryMax bounds the transport-level retry budget.
	RetryMax int
	// Backoff is the initial backoff interval; it doubles on each retry.
	Backoff time.Duration
}

// NewSessionFactory returns a factory with the default retry policy.
func NewSessionFactory(retryMax int) *SessionFactory {
	if retryMax <= 0 {
		retryMax = 4
	}
	return &SessionFactory{RetryMax: retryMax, Backoff: 2 * time.Second}
}

// New builds a fresh session. The caller must call Close on it when the
// surrounding operation completes, on every exit path.
func (f *SessionFactory) New() *Session {
	client := retryablehttp.NewClient()
	client.RetryMax = f.RetryMax
	client.RetryWaitMin = f.Backoff
	client.RetryWaitMax = f.Backoff * 32
	client.Logger = nil
	// Keep the last response when retries run out instead of swallowing it;
	// the caller inspects the status and body.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Session{client: client}
}

// Session is a scoped HTTP client for one paginated operation.
type Session struct {
	client *retryablehttp.Client
}

// Do executes the request with the session's retry policy.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, err
	}
	return s.client.Do(rreq)
}

// Close releases the session's idle connections.
func (s *Session) Close() {
	s.client.HTTPClient.CloseIdleConnections()
}
