package main

import (
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/oai"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/platform/httpserver"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/repo"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
	importsvc "github.com/au-research/igsn-metadata-registry-sub001/internal/service/imports"
)

const importMaxBytes = 64 << 20 // matches the payload archive limit

type registryAPI struct {
	logger    *slog.Logger
	responder *oai.Responder
	imports   *importsvc.Service
}

func newRegistryAPI(logger *slog.Logger, responder *oai.Responder, imports *importsvc.Service) *registryAPI {
	return &registryAPI{
		logger:    logger,
		responder: responder,
		imports:   imports,
	}
}

func (api *registryAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/service/oai", api.handleOAI)
	mux.HandleFunc("POST /api/service/import", api.handleImport)
}

// handleOAI serves the harvesting endpoint. Protocol errors travel
// inside the envelope, so the HTTP status is 200 for every well-formed
// request; only a store or marshalling failure yields a 500.
func (api *registryAPI) handleOAI(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := oai.Params{
		Verb:            query.Get("verb"),
		Identifier:      query.Get("identifier"),
		MetadataPrefix:  query.Get("metadataPrefix"),
		From:            query.Get("from"),
		Until:           query.Get("until"),
		ResumptionToken: query.Get("resumptionToken"),
	}

	envelope, err := api.responder.Respond(r.Context(), params)
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "harvest_failed")
		return
	}
	body, err := xml.MarshalIndent(envelope, "", "  ")
	if err != nil {
		api.logger.Error("oai envelope marshal failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

func (api *registryAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	requestID, ok := httpserver.RequestIDFromContext(r.Context())
	if !ok || strings.TrimSpace(requestID) == "" {
		requestID = strings.TrimSpace(r.Header.Get("X-Request-Id"))
	}

	query := r.URL.Query()
	ownerID := strings.TrimSpace(query.Get("ownerId"))
	if ownerID == "" {
		api.writeError(w, r, http.StatusBadRequest, "owner_id_required")
		return
	}
	allocationID := strings.TrimSpace(query.Get("allocationId"))
	if allocationID == "" {
		api.writeError(w, r, http.StatusBadRequest, "allocation_id_required")
		return
	}
	ownerType := domain.OwnerType(strings.TrimSpace(query.Get("ownerType")))
	if ownerType == "" {
		ownerType = domain.OwnerUser
	}
	if ownerType != domain.OwnerUser && ownerType != domain.OwnerDataCenter {
		api.writeError(w, r, http.StatusBadRequest, "owner_type_invalid")
		return
	}
	eventType := domain.EventType(strings.TrimSpace(query.Get("eventType")))
	if eventType != "" && !eventType.Valid() {
		api.writeError(w, r, http.StatusBadRequest, "event_type_invalid")
		return
	}

	if r.ContentLength > importMaxBytes {
		api.writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, importMaxBytes+1))
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "payload_read_failed")
		return
	}
	if int64(len(payload)) > importMaxBytes {
		api.writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large")
		return
	}
	if len(payload) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "payload_required")
		return
	}

	creatorID := strings.TrimSpace(query.Get("creatorId"))
	if creatorID == "" {
		creatorID = ownerID
	}

	result, err := api.imports.Run(r.Context(), importsvc.Request{
		Payload:      payload,
		SchemaID:     strings.TrimSpace(query.Get("schema")),
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		AllocationID: allocationID,
		CreatorID:    creatorID,
		RequestID:    requestID,
		EventType:    eventType,
	})
	if err != nil {
		switch {
		case errors.Is(err, schema.ErrSchemaNotFound):
			api.writeError(w, r, http.StatusBadRequest, "schema_unknown")
		case errors.Is(err, schema.ErrContentInvalid):
			api.writeError(w, r, http.StatusBadRequest, "payload_invalid")
		case errors.Is(err, repo.ErrForbidden):
			api.writeError(w, r, http.StatusForbidden, "forbidden")
		default:
			api.logger.Error("import failed", "request_id", requestID, "error", err)
			api.writeError(w, r, http.StatusBadRequest, "import_rejected")
		}
		return
	}

	status := http.StatusOK
	if result.Failed > 0 && result.Succeeded == 0 && result.Skipped == 0 {
		status = http.StatusUnprocessableEntity
	}
	httpserver.WriteJSON(w, status, result)
}

func (api *registryAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	httpserver.WriteJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}
