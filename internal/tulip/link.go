package tulip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// TableLink is a handle for a relation between records of two tables.
type TableLink struct {
	api Requester
	id  string
}

// NewTableLink returns a handle for the link with the given id.
func NewTableLink(api Requester, id string) *TableLink {
	return &TableLink{api: api, id: id}
}

// ID returns the link id.
func (l *TableLink) ID() string { return l.id }

func (l *TableLink) basePath() string {
	return "tableLinks/" + url.PathEscape(l.id)
}

type linkBody struct {
	LeftRecord  string `json:"leftRecord"`
	RightRecord string `json:"rightRecord"`
}

// Details returns the link's metadata as sent by the API.
func (l *TableLink) Details(ctx context.Context) (map[string]json.RawMessage, error) {
	var d map[string]json.RawMessage
	if err := l.api.Request(ctx, http.MethodGet, l.basePath(), nil, nil, &d); err != nil {
		return nil, fmt.Errorf("get table link %s: %w", l.id, err)
	}
	return d, nil
}

// Link relates the two records.
func (l *TableLink) Link(ctx context.Context, leftRecordID, rightRecordID string) error {
	body := linkBody{LeftRecord: leftRecordID, RightRecord: rightRecordID}
	if err := l.api.RequestExpectNothing(ctx, http.MethodPut, l.basePath()+"/link", nil, body); err != nil {
		return fmt.Errorf("link %s to %s: %w", leftRecordID, rightRecordID, err)
	}
	return nil
}

// Unlink removes the relation between the two records.
func (l *TableLink) Unlink(ctx context.Context, leftRecordID, rightRecordID string) error {
	body := linkBody{LeftRecord: leftRecordID, RightRecord: rightRecordID}
	if err := l.api.RequestExpectNothing(ctx, http.MethodPut, l.basePath()+"/unlink", nil, body); err != nil {
		return fmt.Errorf("unlink %s from %s: %w", leftRecordID, rightRecordID, err)
	}
	return nil
}
