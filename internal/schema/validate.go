package schema

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrContentInvalid reports content that fails its schema kind's
// validator. Callers treat it as a per-document failure, not a batch
// abort.
var ErrContentInvalid = errors.New("content invalid")

// ValidateContent checks content against the kind-level validator of
// the descriptor. Only the checks needed to drive transformation
// selection are performed; full schema validation stays out of scope.
func ValidateContent(desc Descriptor, content []byte) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return fmt.Errorf("%w: empty document", ErrContentInvalid)
	}
	switch desc.Kind {
	case KindMarkup:
		return validateMarkup(desc, content)
	case KindObject:
		if !json.Valid(content) {
			return fmt.Errorf("%w: schema %s expects a JSON document", ErrContentInvalid, desc.ID)
		}
		return nil
	case KindText:
		if !utf8.Valid(content) {
			return fmt.Errorf("%w: schema %s expects UTF-8 text", ErrContentInvalid, desc.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported schema kind %q", ErrContentInvalid, desc.Kind)
	}
}

func validateMarkup(desc Descriptor, content []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	sawElement := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: schema %s: %v", ErrContentInvalid, desc.ID, err)
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
	if !sawElement {
		return fmt.Errorf("%w: schema %s: no root element", ErrContentInvalid, desc.ID)
	}
	return nil
}
