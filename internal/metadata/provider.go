// Package metadata extracts semantic facts (title, landing page,
// embargo, visibility, identifier value, registration status,
// fragments) from raw version content. Providers are selected through
// an explicit registry keyed by (schema id, capability) populated at
// startup; nothing is chosen by runtime type inspection.
package metadata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
)

// Capability names one extraction a provider can perform.
type Capability string

const (
	CapTitle       Capability = "title"
	CapLandingPage Capability = "landing_page"
	CapIdentifier  Capability = "identifier"
	CapEmbargoEnd  Capability = "embargo_end"
	CapVisibility  Capability = "visibility"
	CapFragment    Capability = "fragment"
	CapStatus      Capability = "status"
)

// ErrProviderNotFound reports that no provider is registered for the
// requested (schema, capability) pair.
var ErrProviderNotFound = errors.New("content provider not found")

// TitleProvider extracts a human-readable title. An absent title is
// reported as an empty string, not an error.
type TitleProvider interface {
	Title(content []byte) (string, error)
}

// LandingPageProvider extracts the externally resolvable URL of the
// record.
type LandingPageProvider interface {
	LandingPage(content []byte) (string, error)
}

// IdentifierProvider extracts the persistent identifier value the
// document describes.
type IdentifierProvider interface {
	IdentifierValue(content []byte) (string, error)
}

// EmbargoEndProvider parses the embargo end, accepting year-only and
// full-timestamp forms. Nil means no embargo.
type EmbargoEndProvider interface {
	EmbargoEnd(content []byte) (*time.Time, error)
}

// VisibilityProvider reports whether the record should be exposed.
// A document with no visibility marker is visible; the registry fails
// open here so that a sparse document never hides a record.
type VisibilityProvider interface {
	Visible(content []byte) (bool, error)
}

// FragmentProvider splits a multi-resource batch document into
// standalone single-resource documents.
type FragmentProvider interface {
	FragmentCount(content []byte) (int, error)
	Fragment(content []byte, index int) ([]byte, error)
}

// StatusProvider derives the registration status of a record from its
// primary identifier and canonical document.
type StatusProvider interface {
	Status(primary domain.Identifier, content []byte) domain.RegistryStatus
}

type providerKey struct {
	schemaID   string
	capability Capability
}

// Registry maps (schema id, capability) to provider instances.
type Registry struct {
	schemas   *schema.Registry
	providers map[providerKey]any
}

// NewRegistry builds the provider registry for the given schema
// catalog.
func NewRegistry(schemas *schema.Registry) (*Registry, error) {
	if schemas == nil {
		return nil, errors.New("schema registry is required")
	}
	reg := &Registry{
		schemas:   schemas,
		providers: map[providerKey]any{},
	}

	for _, id := range []string{schema.ARDCDescriptive, schema.IGSNDescriptive} {
		desc := descriptiveProvider{schemaID: id}
		reg.register(id, CapTitle, desc)
		reg.register(id, CapLandingPage, desc)
		reg.register(id, CapIdentifier, desc)
		reg.register(id, CapEmbargoEnd, desc)
		reg.register(id, CapVisibility, desc)
		reg.register(id, CapFragment, desc)
		reg.register(id, CapStatus, statusProvider{events: desc})
	}

	obj := jsonLDProvider{}
	reg.register(schema.JSONLD, CapTitle, obj)
	reg.register(schema.JSONLD, CapLandingPage, obj)
	reg.register(schema.JSONLD, CapIdentifier, obj)

	return reg, nil
}

func (r *Registry) register(schemaID string, capability Capability, provider any) {
	r.providers[providerKey{schemaID: schemaID, capability: capability}] = provider
}

func (r *Registry) lookup(schemaID string, capability Capability) (any, error) {
	if r == nil {
		return nil, errors.New("provider registry not initialized")
	}
	schemaID = strings.TrimSpace(schemaID)
	if _, err := r.schemas.Resolve(schemaID); err != nil {
		return nil, err
	}
	p, ok := r.providers[providerKey{schemaID: schemaID, capability: capability}]
	if !ok {
		return nil, fmt.Errorf("%w: schema %s capability %s", ErrProviderNotFound, schemaID, capability)
	}
	return p, nil
}

func (r *Registry) Title(schemaID string) (TitleProvider, error) {
	p, err := r.lookup(schemaID, CapTitle)
	if err != nil {
		return nil, err
	}
	return p.(TitleProvider), nil
}

func (r *Registry) LandingPage(schemaID string) (LandingPageProvider, error) {
	p, err := r.lookup(schemaID, CapLandingPage)
	if err != nil {
		return nil, err
	}
	return p.(LandingPageProvider), nil
}

func (r *Registry) Identifier(schemaID string) (IdentifierProvider, error) {
	p, err := r.lookup(schemaID, CapIdentifier)
	if err != nil {
		return nil, err
	}
	return p.(IdentifierProvider), nil
}

func (r *Registry) EmbargoEnd(schemaID string) (EmbargoEndProvider, error) {
	p, err := r.lookup(schemaID, CapEmbargoEnd)
	if err != nil {
		return nil, err
	}
	return p.(EmbargoEndProvider), nil
}

func (r *Registry) Visibility(schemaID string) (VisibilityProvider, error) {
	p, err := r.lookup(schemaID, CapVisibility)
	if err != nil {
		return nil, err
	}
	return p.(VisibilityProvider), nil
}

func (r *Registry) Fragment(schemaID string) (FragmentProvider, error) {
	p, err := r.lookup(schemaID, CapFragment)
	if err != nil {
		return nil, err
	}
	return p.(FragmentProvider), nil
}

func (r *Registry) Status(schemaID string) (StatusProvider, error) {
	p, err := r.lookup(schemaID, CapStatus)
	if err != nil {
		return nil, err
	}
	return p.(StatusProvider), nil
}
