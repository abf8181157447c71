// Package config provides domain configuration: timeouts, resource
// bounds and feature toggles needed to create_domain, independent of
// how the caller obtained them (a raw struct or a parsed XML document).
package config

import (
	"encoding/xml"

	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
)

// DomainConfig holds the configuration domain_create consumes.
type DomainConfig struct {
	// Resource limits
	MaxParticipants int `json:"max_participants" xml:"MaxParticipants"`
	MaxTopics       int `json:"max_topics" xml:"MaxTopics"`

	// Timeouts (milliseconds)
	TypeLookupTimeoutMs int `json:"type_lookup_timeout_ms" xml:"TypeLookupTimeoutMs"`
	CloseDrainTimeoutMs int `json:"close_drain_timeout_ms" xml:"CloseDrainTimeoutMs"`

	// Thread monitor
	StartThreadMonitor bool `json:"start_thread_monitor" xml:"StartThreadMonitor"`

	// Logging
	LogLevel string `json:"log_level" xml:"LogLevel"`
}

// DefaultDomainConfig returns a DomainConfig with default values, the
// configuration create_domain uses when the caller supplies none.
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxParticipants:     0, // 0 == unbounded
		MaxTopics:           0,
		TypeLookupTimeoutMs: 5000,
		CloseDrainTimeoutMs: 2000,
		StartThreadMonitor:  true,
		LogLevel:            "info",
	}
}

// Loader is the external collaborator narrow interface create_domain
// depends on for its two accepted config kinds.
type Loader interface {
	// FromStruct copies raw verbatim; raw must not be nil.
	FromStruct(raw *DomainConfig) (*DomainConfig, error)
	// ParseXML parses an XML document into a DomainConfig.
	ParseXML(doc string) (*DomainConfig, error)
}

type defaultLoader struct{}

// NewLoader returns the default Loader: FromStruct copies verbatim,
// ParseXML decodes the XML document into a DomainConfig.
func NewLoader() Loader { return defaultLoader{} }

func (defaultLoader) FromStruct(raw *DomainConfig) (*DomainConfig, error) {
	if raw == nil {
		return nil, ddserrors.New("config.FromStruct", ddserrors.BadParameter, "raw config pointer must not be nil")
	}
	cp := *raw
	return &cp, nil
}

func (defaultLoader) ParseXML(doc string) (*DomainConfig, error) {
	if doc == "" {
		return nil, ddserrors.New("config.ParseXML", ddserrors.BadParameter, "empty configuration document")
	}
	cfg := DefaultDomainConfig()
	if err := xml.Unmarshal([]byte(doc), cfg); err != nil {
		return nil, ddserrors.Wrap("config.ParseXML", ddserrors.BadParameter, "malformed configuration document", err)
	}
	return cfg, nil
}
