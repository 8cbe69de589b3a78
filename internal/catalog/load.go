package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/handlescan/handlescan/internal/detect"
)

// schemaKey is the JSON-Schema reference some published catalogs carry as a
// top-level entry. It is metadata, not a site.
const schemaKey = "$schema"

// siteJSON is the wire form of one catalog entry, using the field names of
// the published data file.
type siteJSON struct {
	URL               string            `json:"url"`
	URLMain           string            `json:"urlMain"`
	URLProbe          string            `json:"urlProbe"`
	ErrorType         string            `json:"errorType"`
	ErrorMsg          errorMessages     `json:"errorMsg"`
	ErrorURL          string            `json:"errorUrl"`
	RegexCheck        string            `json:"regexCheck"`
	Headers           map[string]string `json:"headers"`
	RequestHeadOnly   bool              `json:"request_head_only"`
	RequestMethod     string            `json:"request_method"`
	RequestPayload    json.RawMessage   `json:"request_payload"`
	UsernameClaimed   string            `json:"username_claimed"`
	UsernameUnclaimed string            `json:"username_unclaimed"`
	IsNSFW            bool              `json:"isNSFW"`
}

// errorMessages accepts the errorMsg field's two wire forms: a single
// string, or a list of strings.
type errorMessages []string

// UnmarshalJSON implements json.Unmarshaler.
func (m *errorMessages) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = errorMessages{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*m = errorMessages(list)
	return nil
}

// Parse reads a catalog document, validating every entry and resolving each
// site's detection strategy. The returned catalog preserves the document's
// declaration order, which encoding/json's map decoding would lose; entries
// are therefore consumed through the token stream.
func Parse(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)

	open, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: document root must be an object", ErrMalformedCatalog)
	}

	c := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string site name", ErrMalformedCatalog)
		}

		if name == schemaKey {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
			}
			continue
		}

		var raw siteJSON
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("site %q: %w: %v", name, ErrMalformedCatalog, err)
		}
		desc, err := raw.descriptor(name)
		if err != nil {
			return nil, err
		}
		if err := c.Add(desc); err != nil {
			return nil, err
		}
	}

	// Consume the closing brace so a truncated document still errors.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	return c, nil
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided catalog path is intentional
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // Read-only file

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// descriptor validates one entry and builds its Descriptor.
func (s siteJSON) descriptor(name string) (*Descriptor, error) {
	if name == "" {
		return nil, ErrEmptySiteName
	}
	if s.URL == "" {
		return nil, fmt.Errorf("site %q: %w", name, ErrMissingUserURL)
	}
	if s.URLMain == "" {
		return nil, fmt.Errorf("site %q: %w", name, ErrMissingMainURL)
	}

	strategy, err := detect.New(s.ErrorType, detect.Options{
		ErrorMessages: s.ErrorMsg,
		HeadOnly:      s.RequestHeadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("site %q: %w", name, err)
	}

	method, err := resolveMethod(s.RequestMethod, s.RequestHeadOnly, strategy)
	if err != nil {
		return nil, fmt.Errorf("site %q: %w", name, err)
	}

	payload := decodePayload(s.RequestPayload)
	if payload != "" && method != http.MethodPost {
		return nil, fmt.Errorf("site %q: %w", name, ErrPayloadWithoutPost)
	}

	var legality *regexp2.Regexp
	if s.RegexCheck != "" {
		legality, err = regexp2.Compile(s.RegexCheck, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("site %q: %w: %v", name, ErrBadLegalityRegex, err)
		}
	}

	return &Descriptor{
		Name:              name,
		MainURL:           s.URLMain,
		UserURL:           s.URL,
		ProbeURL:          s.URLProbe,
		Method:            method,
		Payload:           payload,
		Headers:           s.Headers,
		Detect:            strategy,
		Legality:          legality,
		UsernameClaimed:   s.UsernameClaimed,
		UsernameUnclaimed: s.UsernameUnclaimed,
		NSFW:              s.IsNSFW,
	}, nil
}

// resolveMethod fixes the HTTP method at load time. An explicit method wins;
// otherwise the head-only hint upgrades GET to HEAD where the detection kind
// can classify without a body.
func resolveMethod(raw string, headOnly bool, strategy detect.Strategy) (string, error) {
	switch strings.ToUpper(raw) {
	case "":
		if headOnly && strategy.AllowsHeadProbe() {
			return http.MethodHead, nil
		}
		return http.MethodGet, nil
	case http.MethodGet:
		return http.MethodGet, nil
	case http.MethodHead:
		return http.MethodHead, nil
	case http.MethodPost:
		return http.MethodPost, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, raw)
	}
}

// decodePayload renders the request_payload field as the literal body
// template. Published catalogs declare payloads as JSON objects, so anything
// that is not a plain string is kept as its raw JSON text.
func decodePayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
