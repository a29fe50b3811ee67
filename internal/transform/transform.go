// Package transform derives one schema representation of a record's
// metadata from another. Transformers are selected from an explicit
// table keyed by the ordered (from, to) schema pair; output is
// deterministic given the source content and accumulated parameters,
// and always carries the source version's request id forward.
package transform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
	"github.com/google/uuid"
)

// Parameter keys understood by the bundled transformers.
const (
	ParamEventType      = "eventType"
	ParamRegistrantName = "registrantName"
	ParamTimestamp      = "timestamp"
	ParamLandingPage    = "landingPage"
)

// ErrTransformerNotFound reports an unsupported schema pair.
var ErrTransformerNotFound = errors.New("transformer not found")

// Transformer turns a source version into a version of the target
// schema. SetParam accumulates parameters fluently; re-setting a key
// overwrites its previous value.
type Transformer interface {
	SetParam(key, value string) Transformer
	Transform(source domain.Version) (domain.Version, error)
}

type pairKey struct {
	from string
	to   string
}

type factory func() Transformer

// Engine is the (from, to) -> transformer lookup table, populated at
// startup.
type Engine struct {
	factories map[pairKey]factory
}

// NewEngine builds the engine over the schema catalog.
func NewEngine(schemas *schema.Registry) (*Engine, error) {
	if schemas == nil {
		return nil, errors.New("schema registry is required")
	}
	eng := &Engine{factories: map[pairKey]factory{}}

	for _, from := range []string{schema.ARDCDescriptive, schema.IGSNDescriptive} {
		from := from
		eng.factories[pairKey{from: from, to: schema.Registration}] = func() Transformer {
			return newBase(from, schema.Registration, registrationTransform)
		}
		eng.factories[pairKey{from: from, to: schema.OAIDC}] = func() Transformer {
			return newBase(from, schema.OAIDC, dublinCoreTransform)
		}
		eng.factories[pairKey{from: from, to: schema.JSONLD}] = func() Transformer {
			return newBase(from, schema.JSONLD, jsonLDTransform)
		}
	}
	return eng, nil
}

// New returns a fresh transformer for the ordered schema pair.
func (e *Engine) New(fromSchema, toSchema string) (Transformer, error) {
	if e == nil {
		return nil, errors.New("transform engine not initialized")
	}
	key := pairKey{from: strings.TrimSpace(fromSchema), to: strings.TrimSpace(toSchema)}
	f, ok := e.factories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransformerNotFound, key.from, key.to)
	}
	return f(), nil
}

// contentFunc produces target content from source content and params.
type contentFunc func(fromSchema string, content []byte, params map[string]string) ([]byte, error)

// base carries the shared transformer mechanics: parameter
// accumulation and output version assembly.
type base struct {
	fromSchema string
	toSchema   string
	params     map[string]string
	run        contentFunc
}

func newBase(fromSchema, toSchema string, run contentFunc) *base {
	return &base{
		fromSchema: fromSchema,
		toSchema:   toSchema,
		params:     map[string]string{},
		run:        run,
	}
}

func (b *base) SetParam(key, value string) Transformer {
	b.params[strings.TrimSpace(key)] = value
	return b
}

func (b *base) Transform(source domain.Version) (domain.Version, error) {
	if source.SchemaID != b.fromSchema {
		return domain.Version{}, fmt.Errorf("transformer expects schema %s, got %s", b.fromSchema, source.SchemaID)
	}
	content, err := b.run(b.fromSchema, source.Content, b.params)
	if err != nil {
		return domain.Version{}, err
	}
	return domain.Version{
		ID:        uuid.NewString(),
		RecordID:  source.RecordID,
		SchemaID:  b.toSchema,
		Content:   content,
		Hash:      domain.ContentHash(content),
		Current:   true,
		CreatedAt: time.Now().UTC(),
		CreatorID: source.CreatorID,
		RequestID: source.RequestID,
	}, nil
}
