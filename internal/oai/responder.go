// Package oai answers OAI-PMH 2.0 harvesting requests over the
// registry's already-materialized versions. The responder is
// read-only; pagination rides on stateless resumption tokens, so a
// harvest session needs no server-side state and tolerates concurrent
// writes (each page reflects the store at the time it was read).
package oai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/repo"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/service/versions"
)

const (
	protocolVersion = "2.0"
	datestampLayout = "2006-01-02T15:04:05Z"
	defaultPageSize = 100
)

// Params are the recognized query parameters of a harvesting request.
type Params struct {
	Verb            string
	Identifier      string
	MetadataPrefix  string
	From            string
	Until           string
	ResumptionToken string
}

// Config describes the repository to harvesters.
type Config struct {
	RepositoryName    string
	BaseURL           string
	AdminEmail        string
	EarliestDatestamp time.Time
	PageSize          int
}

// Responder dispatches harvesting verbs.
type Responder struct {
	logger     *slog.Logger
	schemas    *schema.Registry
	records    repo.RecordRepository
	versionSvc *versions.Service
	harvest    repo.HarvestRepository
	cfg        Config
	now        func() time.Time
}

func NewResponder(
	logger *slog.Logger,
	schemas *schema.Registry,
	records repo.RecordRepository,
	versionSvc *versions.Service,
	harvest repo.HarvestRepository,
	cfg Config,
) (*Responder, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if schemas == nil {
		return nil, errors.New("schema registry is required")
	}
	if records == nil {
		return nil, errors.New("record repository is required")
	}
	if versionSvc == nil {
		return nil, errors.New("versioning service is required")
	}
	if harvest == nil {
		return nil, errors.New("harvest repository is required")
	}
	if strings.TrimSpace(cfg.RepositoryName) == "" {
		return nil, errors.New("repository name is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("base url is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Responder{
		logger:     logger,
		schemas:    schemas,
		records:    records,
		versionSvc: versionSvc,
		harvest:    harvest,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// Respond answers one harvesting request. Protocol errors come back
// inside the envelope; a non-nil error means the store faltered and
// the caller should fail the request instead of sending a misleading
// protocol code.
func (r *Responder) Respond(ctx context.Context, p Params) (Envelope, error) {
	env := Envelope{
		Namespace:      "http://www.openarchives.org/OAI/2.0/",
		NSXSI:          "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://www.openarchives.org/OAI/2.0/ http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd",
		ResponseDate:   r.now().UTC().Format(datestampLayout),
		Request:        r.echo(p),
	}

	var err error
	switch p.Verb {
	case "Identify":
		env.Identify = r.identify()
	case "GetRecord":
		err = r.getRecord(ctx, p, &env)
	case "ListRecords":
		err = r.list(ctx, p, &env, false)
	case "ListIdentifiers":
		err = r.list(ctx, p, &env, true)
	case "ListMetadataFormats":
		err = r.listMetadataFormats(ctx, p, &env)
	case "ListSets":
		env.Errors = append(env.Errors, ProtocolError{Code: CodeNoSetHierarchy, Message: "this repository does not support sets"})
	case "":
		env.Request = RequestEcho{BaseURL: r.cfg.BaseURL}
		env.Errors = append(env.Errors, ProtocolError{Code: CodeBadVerb, Message: "verb is required"})
	default:
		env.Request = RequestEcho{BaseURL: r.cfg.BaseURL}
		env.Errors = append(env.Errors, ProtocolError{Code: CodeBadVerb, Message: fmt.Sprintf("unknown verb %q", p.Verb)})
	}
	if err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (r *Responder) echo(p Params) RequestEcho {
	return RequestEcho{
		Verb:            p.Verb,
		Identifier:      p.Identifier,
		MetadataPrefix:  p.MetadataPrefix,
		From:            p.From,
		Until:           p.Until,
		ResumptionToken: p.ResumptionToken,
		BaseURL:         r.cfg.BaseURL,
	}
}

func (r *Responder) identify() *Identify {
	earliest := r.cfg.EarliestDatestamp
	if earliest.IsZero() {
		earliest = time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Identify{
		RepositoryName:    r.cfg.RepositoryName,
		BaseURL:           r.cfg.BaseURL,
		ProtocolVersion:   protocolVersion,
		AdminEmail:        r.cfg.AdminEmail,
		EarliestDatestamp: earliest.UTC().Format(datestampLayout),
		DeletedRecord:     "no",
		Granularity:       "YYYY-MM-DDThh:mm:ssZ",
	}
}

func (r *Responder) getRecord(ctx context.Context, p Params, env *Envelope) error {
	if strings.TrimSpace(p.Identifier) == "" || strings.TrimSpace(p.MetadataPrefix) == "" {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeBadArgument, Message: "identifier and metadataPrefix are required"})
		return nil
	}
	desc, err := r.schemas.Resolve(p.MetadataPrefix)
	if err != nil || !desc.Harvestable {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeCannotDisseminateFormat, Message: fmt.Sprintf("metadataPrefix %q is not supported", p.MetadataPrefix)})
		return nil
	}

	record, err := r.records.FindRecordByIdentifier(ctx, domain.IdentifierIGSN, p.Identifier)
	if errors.Is(err, repo.ErrNotFound) {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeIDDoesNotExist, Message: fmt.Sprintf("no record with identifier %q", p.Identifier)})
		return nil
	}
	if err != nil {
		r.logger.Error("record lookup failed", "identifier", p.Identifier, "error", err)
		return fmt.Errorf("record lookup: %w", err)
	}
	if !record.Visible || record.Status != domain.RecordPublished {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeIDDoesNotExist, Message: fmt.Sprintf("no record with identifier %q", p.Identifier)})
		return nil
	}

	version, err := r.versionSvc.Current(ctx, record.ID, desc.ID)
	if errors.Is(err, repo.ErrNotFound) {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeCannotDisseminateFormat, Message: fmt.Sprintf("no %s version for identifier %q", desc.ID, p.Identifier)})
		return nil
	}
	if err != nil {
		r.logger.Error("version lookup failed", "record_id", record.ID, "schema", desc.ID, "error", err)
		return fmt.Errorf("version lookup: %w", err)
	}

	env.GetRecord = &GetRecord{Record: RecordEntry{
		Header:   Header{Identifier: p.Identifier, Datestamp: version.CreatedAt.UTC().Format(datestampLayout)},
		Metadata: Metadata{InnerXML: string(version.Content)},
	}}
	return nil
}

// list serves ListRecords and ListIdentifiers; they share selection
// and pagination and differ only in payload shape.
func (r *Responder) list(ctx context.Context, p Params, env *Envelope, headersOnly bool) error {
	var (
		cursor    harvestCursor
		hasCursor bool
	)
	if strings.TrimSpace(p.ResumptionToken) != "" {
		if strings.TrimSpace(p.MetadataPrefix) != "" || strings.TrimSpace(p.From) != "" || strings.TrimSpace(p.Until) != "" {
			env.Errors = append(env.Errors, ProtocolError{Code: CodeBadArgument, Message: "resumptionToken is an exclusive argument"})
			return nil
		}
		decoded, err := decodeCursor(p.ResumptionToken)
		if err != nil {
			env.Errors = append(env.Errors, ProtocolError{Code: CodeBadResumptionToken, Message: "resumption token is not valid"})
			return nil
		}
		cursor = decoded
		hasCursor = true
		p.MetadataPrefix = cursor.Prefix
		p.From = cursor.From
		p.Until = cursor.Until
	}

	if strings.TrimSpace(p.MetadataPrefix) == "" {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeBadArgument, Message: "metadataPrefix is required"})
		return nil
	}
	desc, err := r.schemas.Resolve(p.MetadataPrefix)
	if err != nil || !desc.Harvestable {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeCannotDisseminateFormat, Message: fmt.Sprintf("metadataPrefix %q is not supported", p.MetadataPrefix)})
		return nil
	}

	from, err := parseWindowTime(p.From, false)
	if err != nil {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeBadArgument, Message: "from is not a valid datestamp"})
		return nil
	}
	until, err := parseWindowTime(p.Until, true)
	if err != nil {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeBadArgument, Message: "until is not a valid datestamp"})
		return nil
	}
	if from != nil && until != nil && from.After(*until) {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeBadArgument, Message: "from is after until"})
		return nil
	}

	filter := repo.HarvestFilter{
		SchemaID: desc.ID,
		From:     from,
		Until:    until,
		Limit:    r.cfg.PageSize + 1,
	}
	completeListSize := cursor.CompleteListSize
	delivered := cursor.Delivered
	if hasCursor {
		lastModified, _ := time.Parse(time.RFC3339Nano, cursor.LastModified)
		filter.AfterModified = lastModified
		filter.AfterRecordID = cursor.LastRecordID
	} else {
		countFilter := filter
		countFilter.Limit = 0
		completeListSize, err = r.harvest.HarvestCount(ctx, countFilter)
		if err != nil {
			r.logger.Error("harvest count failed", "schema", desc.ID, "error", err)
			return fmt.Errorf("harvest count: %w", err)
		}
	}

	items, err := r.harvest.HarvestPage(ctx, filter)
	if err != nil {
		r.logger.Error("harvest page failed", "schema", desc.ID, "error", err)
		return fmt.Errorf("harvest page: %w", err)
	}
	if len(items) == 0 && !hasCursor {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeNoRecordsMatch, Message: "no records match the selection"})
		return nil
	}

	more := len(items) > r.cfg.PageSize
	if more {
		items = items[:r.cfg.PageSize]
	}

	var token *ResumptionToken
	if more {
		last := items[len(items)-1]
		value, err := encodeCursor(harvestCursor{
			Prefix:           desc.ID,
			From:             p.From,
			Until:            p.Until,
			LastModified:     last.Version.CreatedAt.UTC().Format(time.RFC3339Nano),
			LastRecordID:     last.Record.ID,
			Delivered:        delivered + len(items),
			CompleteListSize: completeListSize,
		})
		if err != nil {
			r.logger.Error("encode resumption token failed", "error", err)
			return fmt.Errorf("encode resumption token: %w", err)
		}
		token = &ResumptionToken{CompleteListSize: completeListSize, Cursor: delivered, Value: value}
	} else if hasCursor {
		// Closing empty token marks the end of a token-driven list.
		token = &ResumptionToken{CompleteListSize: completeListSize, Cursor: delivered}
	}

	if headersOnly {
		payload := &ListIdentifiers{ResumptionToken: token}
		for _, item := range items {
			payload.Headers = append(payload.Headers, header(item))
		}
		env.ListIdentifiers = payload
		return nil
	}
	payload := &ListRecords{ResumptionToken: token}
	for _, item := range items {
		payload.Records = append(payload.Records, RecordEntry{
			Header:   header(item),
			Metadata: Metadata{InnerXML: string(item.Version.Content)},
		})
	}
	env.ListRecords = payload
	return nil
}

func (r *Responder) listMetadataFormats(ctx context.Context, p Params, env *Envelope) error {
	harvestable := r.schemas.Harvestable()
	if strings.TrimSpace(p.Identifier) != "" {
		record, err := r.records.FindRecordByIdentifier(ctx, domain.IdentifierIGSN, p.Identifier)
		if errors.Is(err, repo.ErrNotFound) {
			env.Errors = append(env.Errors, ProtocolError{Code: CodeIDDoesNotExist, Message: fmt.Sprintf("no record with identifier %q", p.Identifier)})
			return nil
		}
		if err != nil {
			r.logger.Error("record lookup failed", "identifier", p.Identifier, "error", err)
			return fmt.Errorf("record lookup: %w", err)
		}
		current, err := r.versionSvc.AllCurrent(ctx, record.ID)
		if err != nil {
			r.logger.Error("version lookup failed", "record_id", record.ID, "error", err)
			return fmt.Errorf("version lookup: %w", err)
		}
		available := map[string]bool{}
		for _, version := range current {
			available[version.SchemaID] = true
		}
		filtered := harvestable[:0:0]
		for _, desc := range harvestable {
			if available[desc.ID] {
				filtered = append(filtered, desc)
			}
		}
		harvestable = filtered
	}
	if len(harvestable) == 0 {
		env.Errors = append(env.Errors, ProtocolError{Code: CodeNoMetadataFormats, Message: "no metadata formats available"})
		return nil
	}
	payload := &ListMetadataFormats{}
	for _, desc := range harvestable {
		payload.Formats = append(payload.Formats, MetadataFormat{
			MetadataPrefix:    desc.ID,
			MetadataNamespace: desc.Namespace,
		})
	}
	env.ListMetadataFormats = payload
	return nil
}

// header builds the OAI header for one harvested item. Records without
// a resolvable IGSN fall back to the record id so a page never loses
// an item.
func header(item repo.HarvestItem) Header {
	identifier := item.IGSN
	if identifier == "" {
		identifier = item.Record.ID
	}
	return Header{
		Identifier: identifier,
		Datestamp:  item.Version.CreatedAt.UTC().Format(datestampLayout),
	}
}

// parseWindowTime accepts date-only and full-timestamp datestamps. A
// date-only until is widened to the end of that day so the window
// stays inclusive.
func parseWindowTime(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(datestampLayout, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		t = t.UTC()
		if endOfDay {
			t = t.Add(24*time.Hour - time.Second)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("unrecognized datestamp %q", raw)
}
