// HTTP access to the backend API.
//
// Queries are a POST against the query endpoint with a bearer token; the reply body is the
// newline-delimited record lines directly.  401/403 are authorization failures, anything else
// that goes wrong on the wire is a transport failure.  The full response detail is logged here;
// callers see only the classified error with a one-line reason.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"replaytop/common"
)

// Per-request ceiling; fetch windows are a few minutes of data and the backend answers in seconds
// when healthy.
const httpFetchTimeout = 90 * time.Second

type HTTPSource struct {
	base   *url.URL
	token  string
	orgUID string
	client *http.Client
}

func NewHTTPSource(base *url.URL, token, orgUID string) *HTTPSource {
	return &HTTPSource{
		base:   base,
		token:  token,
		orgUID: orgUID,
		client: &http.Client{Timeout: httpFetchTimeout},
	}
}

type queryBody struct {
	OrgUID    string  `json:"org_uid"`
	SourceUID string  `json:"src_uid"`
	DataType  string  `json:"data_type"`
	StartTime float64 `json:"st"`
	EndTime   float64 `json:"et"`
}

func (hs *HTTPSource) Fetch(
	ctx context.Context,
	sourceID, dataKind string,
	start, end float64,
) ([]byte, error) {
	body, err := json.Marshal(queryBody{
		OrgUID:    hs.orgUID,
		SourceUID: sourceID,
		DataType:  dataKind,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(
		ctx, "POST", hs.endpoint("/api/v1/source/query/"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+hs.token)

	resp, err := hs.client.Do(req)
	if err != nil {
		common.Log.Infof("Query for %s/%s failed: %v", sourceID, dataKind, err)
		return nil, &TransportError{Op: "query", Reason: "cannot reach the backend", Err: err}
	}
	defer resp.Body.Close()
	if err := classifyStatus("query", resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		common.Log.Infof("Reading query response for %s/%s failed: %v", sourceID, dataKind, err)
		return nil, &TransportError{Op: "query", Reason: "response truncated", Err: err}
	}
	return data, nil
}

// ListSources enumerates the machines of the configured organization, for cluster fan-out.

func (hs *HTTPSource) ListSources(ctx context.Context) ([]SourceInfo, error) {
	req, err := http.NewRequestWithContext(
		ctx, "GET", hs.endpoint("/api/v1/org/"+url.PathEscape(hs.orgUID)+"/source/"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+hs.token)

	resp, err := hs.client.Do(req)
	if err != nil {
		common.Log.Infof("Source listing failed: %v", err)
		return nil, &TransportError{Op: "sources", Reason: "cannot reach the backend", Err: err}
	}
	defer resp.Body.Close()
	if err := classifyStatus("sources", resp); err != nil {
		return nil, err
	}
	var sources []SourceInfo
	if err := json.NewDecoder(resp.Body).Decode(&sources); err != nil {
		common.Log.Infof("Undecodable source listing: %v", err)
		return nil, &TransportError{Op: "sources", Reason: "malformed source listing", Err: err}
	}
	return sources, nil
}

func (hs *HTTPSource) endpoint(path string) string {
	return strings.TrimRight(hs.base.String(), "/") + path
}

func classifyStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	common.Log.Infof("%s returned %s: %s", op, resp.Status, string(detail))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{
			Status: resp.StatusCode,
			Reason: "the backend rejected the credentials, check API key and organization",
		}
	default:
		return &TransportError{
			Op:     op,
			Reason: fmt.Sprintf("the backend answered %s", resp.Status),
		}
	}
}
