package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/result"
	"github.com/leapstack-labs/sqlgate/pkg/stores/sqlstore"
)

const maxBodyBytes = 1 << 20

// kindRequest tags errors about the HTTP request itself.
const kindRequest result.Kind = "Request"

// statementRequest is a single SQL statement with positional arguments.
type statementRequest struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`

	// Mode is "query" or "execute". Empty infers it from the statement.
	Mode string `json:"mode,omitempty"`
}

type transactionRequest struct {
	Statements []statementRequest `json:"statements"`
}

// response is the envelope of every gateway reply.
type response struct {
	OK     bool              `json:"ok"`
	Result any               `json:"result,omitempty"`
	Error  *result.ErrorInfo `json:"error,omitempty"`

	// FailedIndex is the statement that failed within a transaction batch.
	FailedIndex *int `json:"failedIndex,omitempty"`
}

type affectedResult struct {
	AffectedRows uint32 `json:"affectedRows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "provider": s.gw.Provider()})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := req.query()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.gw.QueryRaw(r.Context(), q)
	if err != nil {
		s.fault(w, r, err)
		return
	}
	writeResult(w, res.Value(), res.Error())
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := req.query()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.gw.ExecuteRaw(r.Context(), q)
	if err != nil {
		s.fault(w, r, err)
		return
	}
	writeResult(w, affectedResult{AffectedRows: res.Value()}, res.Error())
}

// handleTransaction runs a batch inside one transaction. The first failed
// statement rolls the transaction back; otherwise it commits.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	queries := make([]core.Query, len(req.Statements))
	for i, stmt := range req.Statements {
		q, err := stmt.query()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("statement %d: %s", i, err))
			return
		}
		queries[i] = q
	}

	ctx := r.Context()
	txRes, err := s.gw.StartTransaction(ctx)
	if err != nil {
		s.fault(w, r, err)
		return
	}
	if !txRes.IsOk() {
		writeResult(w, nil, txRes.Error())
		return
	}
	tx := txRes.Value()
	// Releases the connection if a statement panics.
	defer func() {
		if !tx.Closed() {
			s.rollback(r, tx)
		}
	}()

	results := make([]any, 0, len(queries))
	for i, q := range queries {
		var (
			value any
			info  *result.ErrorInfo
		)
		if req.Statements[i].returnsRows() {
			res, err := tx.QueryRaw(ctx, q)
			if err != nil {
				s.rollback(r, tx)
				s.fault(w, r, err)
				return
			}
			value, info = res.Value(), res.Error()
		} else {
			res, err := tx.ExecuteRaw(ctx, q)
			if err != nil {
				s.rollback(r, tx)
				s.fault(w, r, err)
				return
			}
			value, info = affectedResult{AffectedRows: res.Value()}, res.Error()
		}

		if info != nil {
			s.rollback(r, tx)
			idx := i
			writeJSON(w, http.StatusOK, response{OK: false, Error: info, FailedIndex: &idx})
			return
		}
		results = append(results, value)
	}

	commit, err := tx.Commit(ctx)
	if err != nil {
		s.fault(w, r, err)
		return
	}
	writeResult(w, results, commit.Error())
}

func (s *Server) rollback(r *http.Request, tx *adapter.Transaction) {
	if _, err := tx.Rollback(r.Context()); err != nil {
		s.logger.Error("rollback failed", slog.String("tx", tx.ID()), slog.String("error", err.Error()))
	}
}

// fault reports an unclassified error. Its details stay in the log.
func (s *Server) fault(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("gateway fault",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (req statementRequest) query() (core.Query, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return core.Query{}, errors.New("sql is required")
	}
	switch req.Mode {
	case "", "query", "execute":
	default:
		return core.Query{}, fmt.Errorf("invalid mode %q", req.Mode)
	}
	args := make([]any, len(req.Args))
	for i, a := range req.Args {
		args[i] = normalizeArg(a)
	}
	return core.NewQuery(req.SQL, args...), nil
}

func (req statementRequest) returnsRows() bool {
	switch req.Mode {
	case "query":
		return true
	case "execute":
		return false
	}
	return sqlstore.ReturnsRows(req.SQL)
}

// normalizeArg narrows JSON numbers to int64 when integral.
func normalizeArg(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, value any, info *result.ErrorInfo) {
	if info != nil {
		writeJSON(w, http.StatusOK, response{OK: false, Error: info})
		return
	}
	writeJSON(w, http.StatusOK, response{OK: true, Result: value})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{OK: false, Error: &result.ErrorInfo{Kind: kindRequest, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, `{"ok":false}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
