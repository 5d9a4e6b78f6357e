package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fhirsync/fhirsync/internal/platform/fhir"
)

// BasicAuth is a username/password pair for a terminology server.
type BasicAuth struct {
	Username string
	Password string
}

// StatusError reports a terminology server response with status >= 400.
// The transport retry budget has already been exhausted by the time this is
// returned; it is not retried further.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("terminology server returned %d for %s", e.StatusCode, e.URL)
}

// Client drives the paginated ValueSet/$expand protocol against the
// terminology server responsible for a value set's authority.
type Client struct {
	authPerServer map[string]BasicAuth
	sessions      *SessionFactory
	log           zerolog.Logger
}

// NewClient creates a terminology client. Every key of authPerServer must be
// one of the configured terminology server base URLs; unknown keys reject
// construction before any network call is made.
func NewClient(authPerServer map[string]BasicAuth, sessions *SessionFactory, log zerolog.Logger) (*Client, error) {
	allowed := KnownServers()
	var unknown []string
	for server := range authPerServer {
		if !allowed[server] {
			unknown = append(unknown, server)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		known := make([]string, 0, len(allowed))
		for server := range allowed {
			known = append(known, server)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unexpected server(s) in credential map: %s; must be one of %s",
			strings.Join(unknown, ", "), strings.Join(known, ", "))
	}

	if sessions == nil {
		sessions = NewSessionFactory(0)
	}

	return &Client{
		authPerServer: authPerServer,
		sessions:      sessions,
		log:           log,
	}, nil
}

// ExpandValueSet retrieves the complete expansion of the value set from the
// appropriate terminology server, following the server's pagination until
// every code has been collected. The returned value set is the last page's
// definition with its expansion replaced by the full accumulated code list.
func (c *Client) ExpandValueSet(ctx context.Context, valueSetURL string) (*fhir.ValueSet, error) {
	vsURL, vsVersion := fhir.ParseURLVersion(valueSetURL)

	baseURL, err := ResolveBaseURL(vsURL)
	if err != nil {
		return nil, err
	}

	auth, hasAuth := c.authPerServer[baseURL]
	requestURL := strings.TrimSuffix(baseURL, "/") + "/ValueSet/$expand"

	session := c.sessions.New()
	defer session.Close()

	c.log.Info().
		Str("url", vsURL).
		Str("version", vsVersion).
		Str("server", baseURL).
		Msg("expanding value set")

	offset := 0
	var codes []fhir.Contains

	for {
		params := url.Values{}
		params.Set("url", vsURL)
		if vsVersion != "" {
			params.Set("valueSetVersion", vsVersion)
		}
		params.Set("offset", strconv.Itoa(offset))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("build expand request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if hasAuth {
			req.SetBasicAuth(auth.Username, auth.Password)
		}

		resp, err := session.Do(req)
		if err != nil {
			return nil, fmt.Errorf("expand value set %s: %w", vsURL, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read expand response: %w", err)
		}

		if resp.StatusCode >= 400 {
			c.log.Error().
				Int("status", resp.StatusCode).
				Str("url", vsURL).
				Str("body", string(body)).
				Msg("error from terminology server")
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: vsURL, Body: string(body)}
		}

		// Unvalidated conversion: malformed but well-typed JSON is accepted.
		var page fhir.ValueSet
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode expand response: %w", err)
		}

		codes = append(codes, page.Expansion.Contains...)
		offset += len(page.Expansion.Contains)

		c.log.Info().
			Int("page_codes", len(page.Expansion.Contains)).
			Int("total_codes", offset).
			Str("url", vsURL).
			Str("version", vsVersion).
			Str("server", baseURL).
			Msg("retrieved expansion page")

		// The total attribute is absent when the server is not paginating;
		// in that case the first page is complete.
		if page.Expansion.Total == nil || offset >= *page.Expansion.Total {
			page.Expansion.Contains = codes
			return &page, nil
		}
	}
}
