package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"paymentScope/internal/model"
	"paymentScope/internal/reference"
	"paymentScope/internal/storage"
)

const maxRequestBody = 1 << 20

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	detector BalanceDetector
	storage  storage.Storage
	logger   *zap.Logger
	now      func() time.Time
}

// ReferenceResponse is the body of GET /v1/reference.
type ReferenceResponse struct {
	Reference string `json:"reference"`
	Hashed    string `json:"hashed"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetBalance detects the balance of the request in the body.
// Detection failures are reported in the result with a 200 status.
func (h *Handlers) GetBalance(w http.ResponseWriter, r *http.Request) {
	var req model.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.RequestID == "" {
		h.writeError(w, http.StatusBadRequest, "requestId is required")
		return
	}

	result := h.detector.GetBalance(r.Context(), &req)

	if h.storage != nil {
		snapshot := storage.Snapshot{
			RequestID:  req.RequestID,
			DetectedAt: h.now().UTC(),
			Result:     result,
		}
		if ids := req.PaymentNetworks(); len(ids) == 1 {
			snapshot.PaymentNetwork = ids[0]
		}
		if err := h.storage.WriteSnapshot(r.Context(), snapshot); err != nil {
			h.logger.Warn("write snapshot", zap.String("request_id", req.RequestID), zap.Error(err))
		}
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetReference computes the payment reference of requestId, salt and address.
func (h *Handlers) GetReference(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, err := reference.Calculate(q.Get("requestId"), q.Get("salt"), q.Get("address"))
	if errors.Is(err, reference.ErrInvalidArgument) {
		h.writeError(w, http.StatusBadRequest, "requestId, salt and address are required")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hashed, err := reference.Hashed(ref)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, ReferenceResponse{Reference: ref, Hashed: hashed})
}
