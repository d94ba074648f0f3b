// Package transport exposes the decoder over HTTP.
package transport

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goodnatureofminers/blockinsight7000-decoder/internal/decoder"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const (
	contentTypeNDJSON = "application/x-ndjson"
	contentTypeJSON   = "application/json"

	defaultMaxBodyBytes int64 = 16 << 20
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// DecodeHandler decodes blocks, transactions and headers posted either as
// raw bytes (application/octet-stream) or as hex text.
type DecodeHandler struct {
	logger       *zap.Logger
	maxBodyBytes int64
	opts         []decoder.Option
}

// NewDecodeHandler returns a handler decoding with opts. maxBodyBytes caps
// the request body; zero selects the default.
func NewDecodeHandler(logger *zap.Logger, maxBodyBytes int64, opts ...decoder.Option) *DecodeHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &DecodeHandler{
		logger:       logger.Named("decodeHandler"),
		maxBodyBytes: maxBodyBytes,
		opts:         opts,
	}
}

// Register mounts the decode routes on mux.
func (h *DecodeHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/decode/block", h.DecodeBlock)
	mux.HandleFunc("POST /v1/decode/transaction", h.DecodeTransaction)
	mux.HandleFunc("POST /v1/decode/header", h.DecodeHeader)
	mux.HandleFunc("GET /v1/health", h.Health)
}

// DecodeBlock streams the records of one block as NDJSON. A failure after
// the first record has been written ends the stream with an error line.
func (h *DecodeHandler) DecodeBlock(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	opts := h.options(r)
	if r.URL.Query().Get("bare") == "true" {
		opts = append(opts, decoder.WithBareHeader())
	}

	parser := decoder.NewParser(decoder.NewBytesSource(data), opts...)
	flusher, _ := w.(http.Flusher)
	enc := jsonAPI.NewEncoder(w)
	written := 0
	for rec, err := range parser.Records(r.Context()) {
		if err != nil {
			if written == 0 {
				h.writeError(w, err)
				return
			}
			h.logger.Debug("block stream failed", zap.Int("records", written), zap.Error(err))
			_ = enc.Encode(errorLine{Type: "ERROR", Error: err.Error()})
			return
		}
		if written == 0 {
			w.Header().Set("Content-Type", contentTypeNDJSON)
			w.WriteHeader(http.StatusOK)
		}
		if err := enc.Encode(rec); err != nil {
			h.logger.Debug("write record", zap.Error(err))
			return
		}
		written++
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// DecodeTransaction decodes exactly one transaction.
func (h *DecodeHandler) DecodeTransaction(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	tx, err := decoder.DecodeTransaction(r.Context(), data, h.options(r)...)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// DecodeHeader decodes an 80-byte header, optionally followed by the
// transaction count.
func (h *DecodeHandler) DecodeHeader(w http.ResponseWriter, r *http.Request) {
	data, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	header, err := decoder.DecodeHeader(r.Context(), data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, header)
}

// Health reports server health.
func (h *DecodeHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "HEALTH_STATUS_HEALTHY"})
}

func (h *DecodeHandler) options(r *http.Request) []decoder.Option {
	opts := append([]decoder.Option(nil), h.opts...)
	if r.URL.Query().Get("legacyFlag") == "true" {
		opts = append(opts, decoder.WithLegacyFlagFallback())
	}
	return opts
}

// readBody returns the decoded payload of r. Bodies that are not
// application/octet-stream are read as hex, surrounding whitespace and an
// optional 0x prefix allowed.
func (h *DecodeHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if mediaType(r) == "application/octet-stream" {
		return body, nil
	}

	text := strings.TrimSpace(string(body))
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, decoder.Error.Wrap(fmt.Errorf("%w: %v", decoder.ErrInvalidHex, err))
	}
	return data, nil
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func (h *DecodeHandler) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("decode request failed", zap.Error(err))
	} else {
		h.logger.Debug("decode request rejected", zap.Int("status", status), zap.Error(err))
	}
	h.writeJSON(w, status, errorLine{Error: err.Error()})
}

func (h *DecodeHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := jsonAPI.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("write response", zap.Error(err))
	}
}

// statusOf maps decode failures to HTTP statuses: truncated input is
// unprocessable, any other malformed input is a bad request.
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, decoder.ErrShortRead):
		return http.StatusUnprocessableEntity
	case decoder.Error.Has(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorLine struct {
	Type  string `json:"type,omitempty"`
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
}
