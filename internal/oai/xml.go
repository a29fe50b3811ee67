package oai

import "encoding/xml"

// Envelope is the OAI-PMH 2.0 response document. Every reply, error
// included, is wrapped in it together with an echo of the request.
type Envelope struct {
	XMLName        xml.Name `xml:"OAI-PMH"`
	Namespace      string   `xml:"xmlns,attr"`
	NSXSI          string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	ResponseDate   string   `xml:"responseDate"`
	Request        RequestEcho
	Errors         []ProtocolError `xml:"error,omitempty"`

	Identify            *Identify            `xml:"Identify,omitempty"`
	GetRecord           *GetRecord           `xml:"GetRecord,omitempty"`
	ListRecords         *ListRecords         `xml:"ListRecords,omitempty"`
	ListIdentifiers     *ListIdentifiers     `xml:"ListIdentifiers,omitempty"`
	ListMetadataFormats *ListMetadataFormats `xml:"ListMetadataFormats,omitempty"`
}

// RequestEcho mirrors the request parameters back to the client.
// Attributes are omitted on error responses for illegal arguments, per
// protocol.
type RequestEcho struct {
	XMLName         xml.Name `xml:"request"`
	Verb            string   `xml:"verb,attr,omitempty"`
	Identifier      string   `xml:"identifier,attr,omitempty"`
	MetadataPrefix  string   `xml:"metadataPrefix,attr,omitempty"`
	From            string   `xml:"from,attr,omitempty"`
	Until           string   `xml:"until,attr,omitempty"`
	ResumptionToken string   `xml:"resumptionToken,attr,omitempty"`
	BaseURL         string   `xml:",chardata"`
}

// ProtocolError is one of the fixed protocol error codes.
type ProtocolError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// Protocol error codes.
const (
	CodeBadArgument             = "badArgument"
	CodeBadVerb                 = "badVerb"
	CodeBadResumptionToken      = "badResumptionToken"
	CodeCannotDisseminateFormat = "cannotDisseminateFormat"
	CodeIDDoesNotExist          = "idDoesNotExist"
	CodeNoRecordsMatch          = "noRecordsMatch"
	CodeNoMetadataFormats       = "noMetadataFormats"
	CodeNoSetHierarchy          = "noSetHierarchy"
)

type Identify struct {
	RepositoryName    string `xml:"repositoryName"`
	BaseURL           string `xml:"baseURL"`
	ProtocolVersion   string `xml:"protocolVersion"`
	AdminEmail        string `xml:"adminEmail"`
	EarliestDatestamp string `xml:"earliestDatestamp"`
	DeletedRecord     string `xml:"deletedRecord"`
	Granularity       string `xml:"granularity"`
}

type Header struct {
	Identifier string `xml:"identifier"`
	Datestamp  string `xml:"datestamp"`
}

type Metadata struct {
	InnerXML string `xml:",innerxml"`
}

type RecordEntry struct {
	Header   Header   `xml:"header"`
	Metadata Metadata `xml:"metadata"`
}

type GetRecord struct {
	Record RecordEntry `xml:"record"`
}

type ResumptionToken struct {
	CompleteListSize int    `xml:"completeListSize,attr,omitempty"`
	Cursor           int    `xml:"cursor,attr"`
	Value            string `xml:",chardata"`
}

type ListRecords struct {
	Records         []RecordEntry    `xml:"record"`
	ResumptionToken *ResumptionToken `xml:"resumptionToken,omitempty"`
}

type ListIdentifiers struct {
	Headers         []Header         `xml:"header"`
	ResumptionToken *ResumptionToken `xml:"resumptionToken,omitempty"`
}

type MetadataFormat struct {
	MetadataPrefix    string `xml:"metadataPrefix"`
	Schema            string `xml:"schema,omitempty"`
	MetadataNamespace string `xml:"metadataNamespace"`
}

type ListMetadataFormats struct {
	Formats []MetadataFormat `xml:"metadataFormat"`
}
