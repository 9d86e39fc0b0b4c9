package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tulipapi/internal/tulip"
)

// pathParam returns a route parameter with percent-escapes decoded. chi
// matches on the raw path when the request carries escaped slashes.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return invalidf("invalid JSON body: %v", err)
	}
	return nil
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Details(pathParam(r, "tableID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

type updateTableRequest struct {
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Deleted     bool           `json:"deleted"`
	Columns     []tulip.Column `json:"columns"`
}

func (s *Server) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	var req updateTableRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	d, err := s.store.UpdateTable(pathParam(r, "tableID"), req.Label, req.Description, req.Deleted, req.Columns)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// parseQuery reads paging, sorting and filters.{i}.* parameters.
func parseQuery(values url.Values) (Query, error) {
	q := Query{
		Limit:      tulip.MaxChunkSize,
		SortBy:     values.Get("sortBy"),
		SortAsc:    values.Get("sortDir") == "asc",
		Aggregator: tulip.FilterAggregator(values.Get("filterAggregator")),
	}

	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Query{}, invalidf("limit %q is not a number", v)
		}
		q.Limit = n
	}
	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Query{}, invalidf("offset %q is not a number", v)
		}
		q.Offset = n
	}

	switch q.Aggregator {
	case "":
		q.Aggregator = tulip.AggregateAll
	case tulip.AggregateAll, tulip.AggregateAny:
	default:
		return Query{}, invalidf("filterAggregator %q must be all or any", q.Aggregator)
	}

	for i := 0; ; i++ {
		prefix := fmt.Sprintf("filters.%d.", i)
		field := values.Get(prefix + "field")
		if field == "" {
			break
		}
		q.Filters = append(q.Filters, tulip.Filter{
			Field:        field,
			FunctionType: values.Get(prefix + "functionType"),
			Arg:          tulip.StringValue(values.Get(prefix + "arg")),
		})
	}
	return q, nil
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}

	records, err := s.store.List(pathParam(r, "tableID"), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec tulip.Record
	if err := decodeBody(r, &rec); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.store.Insert(pathParam(r, "tableID"), rec)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(pathParam(r, "tableID"), pathParam(r, "recordID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var fields tulip.Record
	if err := decodeBody(r, &fields); err != nil {
		respondError(w, r, err)
		return
	}

	rec, err := s.store.Update(pathParam(r, "tableID"), pathParam(r, "recordID"), fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Delete(pathParam(r, "tableID"), pathParam(r, "recordID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type incrementRequest struct {
	FieldName string      `json:"fieldName"`
	Value     tulip.Value `json:"value"`
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	var req incrementRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.FieldName == "" {
		respondError(w, r, invalidf("fieldName is required"))
		return
	}

	rec, err := s.store.Increment(pathParam(r, "tableID"), pathParam(r, "recordID"), req.FieldName, req.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetLink(w http.ResponseWriter, r *http.Request) {
	l, err := s.store.LinkDetails(pathParam(r, "linkID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

type linkRequest struct {
	LeftRecord  string `json:"leftRecord"`
	RightRecord string `json:"rightRecord"`
}

func (s *Server) handleLink(linked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req linkRequest
		if err := decodeBody(r, &req); err != nil {
			respondError(w, r, err)
			return
		}

		if err := s.store.SetLinked(pathParam(r, "linkID"), req.LeftRecord, req.RightRecord, linked); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type attributesRequest struct {
	Attributes []tulip.AttributeReport `json:"attributes"`
}

func (s *Server) handleAttributesReport(w http.ResponseWriter, r *http.Request) {
	var req attributesRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.Attributes) == 0 {
		respondError(w, r, invalidf("attributes must not be empty"))
		return
	}

	if err := s.store.Report(req.Attributes); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
