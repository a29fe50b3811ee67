package transform

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/metadata"
)

// registrationSample is the registration-schema document sent to the
// external registration authority by the caller.
type registrationSample struct {
	XMLName      xml.Name            `xml:"sample"`
	Namespace    string              `xml:"xmlns,attr"`
	SampleNumber registrationNumber  `xml:"sampleNumber"`
	Registrant   *registrant         `xml:"registrant,omitempty"`
	Log          registrationLog     `xml:"log"`
	LandingPage  string              `xml:"landingPage,omitempty"`
}

type registrationNumber struct {
	IdentifierType string `xml:"identifierType,attr"`
	Value          string `xml:",chardata"`
}

type registrant struct {
	Name string `xml:"registrantName"`
}

type registrationLog struct {
	Elements []registrationLogElement `xml:"logElement"`
}

type registrationLogElement struct {
	Event     string `xml:"event,attr"`
	TimeStamp string `xml:"timeStamp,attr,omitempty"`
}

func registrationTransform(fromSchema string, content []byte, params map[string]string) ([]byte, error) {
	doc, err := metadata.ParseDescriptive(fromSchema, content)
	if err != nil {
		return nil, err
	}
	res := doc.Resources[0]
	value := strings.TrimSpace(res.Identifier)
	if value == "" {
		return nil, fmt.Errorf("resourceIdentifier is required for registration metadata")
	}

	eventType := strings.TrimSpace(params[ParamEventType])
	if eventType == "" {
		eventType = string(domain.EventRegistered)
	}

	sample := registrationSample{
		Namespace: "http://schema.igsn.org/description/1.0",
		SampleNumber: registrationNumber{
			IdentifierType: "igsn",
			Value:          value,
		},
		Log: registrationLog{
			Elements: []registrationLogElement{{
				Event:     eventType,
				TimeStamp: strings.TrimSpace(params[ParamTimestamp]),
			}},
		},
		LandingPage: strings.TrimSpace(res.LandingPage),
	}
	if name := strings.TrimSpace(params[ParamRegistrantName]); name != "" {
		sample.Registrant = &registrant{Name: name}
	}

	out, err := xml.MarshalIndent(sample, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode registration metadata: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
