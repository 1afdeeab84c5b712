package bridge

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// The helpers below are thin compositions over the HTTP verbs with
// fixed path templates. They add no failure modes of their own; every
// error comes from the underlying verb call.

// GetEntity fetches one entity by type and id, optionally restricted
// to the given fields. The reply's data element is unwrapped when
// present.
func (c *Client) GetEntity(ctx context.Context, entityType, id string, fields ...string) (json.RawMessage, error) {
	rel := "/entity/" + entityType + "/" + id + fieldsQuery(fields, nil)
	reply, err := c.HTTPGet(ctx, rel)
	if err != nil {
		return nil, err
	}
	return unwrapData(reply), nil
}

// Search runs a host-side search over the entity type.
func (c *Client) Search(ctx context.Context, entityType, query string, fields ...string) (json.RawMessage, error) {
	v := url.Values{}
	v.Set("query", query)
	rel := "/search/" + entityType + fieldsQuery(fields, v)
	reply, err := c.HTTPGet(ctx, rel)
	if err != nil {
		return nil, err
	}
	return unwrapData(reply), nil
}

// Query lists entities matching a where clause.
func (c *Client) Query(ctx context.Context, entityType, where string, fields ...string) (json.RawMessage, error) {
	v := url.Values{}
	v.Set("where", where)
	rel := "/query/" + entityType + fieldsQuery(fields, v)
	reply, err := c.HTTPGet(ctx, rel)
	if err != nil {
		return nil, err
	}
	return unwrapData(reply), nil
}

// UpdateEntity applies a partial update to an existing entity.
func (c *Client) UpdateEntity(ctx context.Context, entityType, id string, changes any) (json.RawMessage, error) {
	return c.HTTPPost(ctx, "/entity/"+entityType+"/"+id, changes)
}

// CreateNote creates a note attached to the current record. The host
// REST convention uses PUT for creation.
func (c *Client) CreateNote(ctx context.Context, note any) (json.RawMessage, error) {
	return c.HTTPPut(ctx, "/entity/Note", note)
}

// fieldsQuery renders the optional fields list (and any extra
// parameters) as a query string, or "" when there is nothing to add.
func fieldsQuery(fields []string, extra url.Values) string {
	v := url.Values{}
	for key, vals := range extra {
		v[key] = vals
	}
	if len(fields) > 0 {
		v.Set("fields", strings.Join(fields, ","))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// unwrapData returns the reply's "data" element when the host wrapped
// the result, otherwise the reply itself.
func unwrapData(reply json.RawMessage) json.RawMessage {
	if data := gjson.GetBytes(reply, "data"); data.Exists() {
		return json.RawMessage(data.Raw)
	}
	return reply
}
