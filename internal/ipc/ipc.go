// Package ipc serves the boundary operations over newline-delimited JSON.
//
// Each input line is one request:
//
//	{"id":1,"op":"get-user","params":{"id":7}}
//
// and produces exactly one output line, in request order:
//
//	{"id":1,"result":{...}}
//	{"id":1,"error":"unknown op \"x\""}
//
// "error" is reserved for malformed requests. Operation failures are
// results with success=false.
package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/app"
	"github.com/roach88/rollbook/internal/model"
)

// Request is one decoded input line.
type Request struct {
	ID     int64           `json:"id"`
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is one output line. Exactly one of Result and Error is set.
type Response struct {
	ID     int64  `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type handler func(ctx context.Context, params json.RawMessage) (any, error)

type idParams struct {
	ID int64 `json:"id"`
}

type recordParams struct {
	RecordID int64 `json:"user_id"`
}

type loginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type paymentParams struct {
	RecordID    int64   `json:"user_id"`
	Amount      float64 `json:"amount"`
	PaymentDate string  `json:"payment_date"`
}

type uploadParams struct {
	RecordID int64           `json:"user_id"`
	Photos   []*model.Upload `json:"photos"`
}

// Server dispatches requests to a Service.
type Server struct {
	svc      *app.Service
	log      *zap.Logger
	handlers map[string]handler
}

// NewServer creates a server for svc.
func NewServer(svc *app.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, log: logger}
	s.handlers = map[string]handler{
		"login":               s.login,
		"get-dashboard-stats": s.dashboardStats,
		"get-users":           s.listRecords,
		"add-user":            s.createRecord,
		"get-user":            s.getRecord,
		"update-user":         s.updateRecord,
		"add-payment":         s.addPayment,
		"upload-photos":       s.replacePhotos,
		"get-user-photos":     s.listPhotos,
	}
	return s
}

// Serve reads requests from r until EOF or ctx is done and writes one
// response per request to w. A read blocked on r does not delay shutdown.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		in := bufio.NewReader(r)
		for {
			line, err := in.ReadBytes('\n')
			if line = bytes.TrimSpace(line); len(line) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	out := bufio.NewWriter(w)
	enc := json.NewEncoder(out)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("read request: %w", err)
				default:
					return nil
				}
			}
			if err := enc.Encode(s.HandleLine(ctx, line)); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			if err := out.Flush(); err != nil {
				return fmt.Errorf("flush response: %w", err)
			}
		}
	}
}

// HandleLine decodes and handles one request line.
func (s *Server) HandleLine(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn("malformed request", zap.Error(err))
		return Response{ID: req.ID, Error: fmt.Sprintf("malformed request: %v", err)}
	}
	return s.Handle(ctx, req)
}

// Handle runs one request.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	h, ok := s.handlers[req.Op]
	if !ok {
		s.log.Warn("unknown op", zap.Int64("id", req.ID), zap.String("op", req.Op))
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown op %q", req.Op)}
	}

	result, err := h(ctx, req.Params)
	if err != nil {
		s.log.Warn("bad params", zap.Int64("id", req.ID), zap.String("op", req.Op), zap.Error(err))
		return Response{ID: req.ID, Error: fmt.Sprintf("%s: invalid params: %v", req.Op, err)}
	}
	s.log.Debug("handled", zap.Int64("id", req.ID), zap.String("op", req.Op))
	return Response{ID: req.ID, Result: result}
}

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}
	return json.Unmarshal(params, v)
}

func (s *Server) login(ctx context.Context, params json.RawMessage) (any, error) {
	var p loginParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.svc.Login(ctx, p.Username, p.Password), nil
}

func (s *Server) dashboardStats(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.svc.DashboardStats(ctx), nil
}

func (s *Server) listRecords(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.svc.ListRecords(ctx), nil
}

func (s *Server) createRecord(ctx context.Context, params json.RawMessage) (any, error) {
	var r model.Record
	if err := decode(params, &r); err != nil {
		return nil, err
	}
	return s.svc.CreateRecord(ctx, r), nil
}

func (s *Server) getRecord(ctx context.Context, params json.RawMessage) (any, error) {
	var p idParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.svc.GetRecord(ctx, p.ID), nil
}

func (s *Server) updateRecord(ctx context.Context, params json.RawMessage) (any, error) {
	var (
		p idParams
		r model.Record
	)
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := decode(params, &r); err != nil {
		return nil, err
	}
	return s.svc.UpdateRecord(ctx, p.ID, r), nil
}

func (s *Server) addPayment(ctx context.Context, params json.RawMessage) (any, error) {
	var p paymentParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.svc.AddPayment(ctx, p.RecordID, p.Amount, p.PaymentDate), nil
}

func (s *Server) replacePhotos(ctx context.Context, params json.RawMessage) (any, error) {
	var p uploadParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.svc.ReplacePhotos(ctx, p.RecordID, p.Photos), nil
}

func (s *Server) listPhotos(ctx context.Context, params json.RawMessage) (any, error) {
	var p recordParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return s.svc.ListPhotos(ctx, p.RecordID), nil
}
