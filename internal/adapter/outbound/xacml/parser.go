// Package xacml extracts identity metadata from raw XACML documents.
package xacml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/Arbiter-AC/arbiter/internal/domain/policy"
)

// Root element names of the two XACML document kinds.
const (
	ElementPolicy    = "Policy"
	ElementPolicySet = "PolicySet"
)

// ErrNoPolicyID is returned when the document's root element carries no
// PolicyId or PolicySetId attribute.
var ErrNoPolicyID = errors.New("document has no policy id")

// Parser implements policy.DocumentParser for XACML Policy and PolicySet
// documents. Only the root element is inspected; full validation belongs to
// the evaluation engine.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser { return &Parser{} }

// PolicyID returns the PolicyId (or PolicySetId) attribute of the
// document's root element.
func (p *Parser) PolicyID(document string) (string, error) {
	root, err := rootElement(document)
	if err != nil {
		return "", err
	}

	want := "PolicyId"
	if root.Name.Local == ElementPolicySet {
		want = "PolicySetId"
	}
	for _, attr := range root.Attr {
		if attr.Name.Local == want {
			return attr.Value, nil
		}
	}
	return "", fmt.Errorf("%s element: %w", root.Name.Local, ErrNoPolicyID)
}

// DocumentType returns ElementPolicy or ElementPolicySet depending on the
// document's root element.
func (p *Parser) DocumentType(document string) (string, error) {
	root, err := rootElement(document)
	if err != nil {
		return "", err
	}
	return root.Name.Local, nil
}

func rootElement(document string) (xml.StartElement, error) {
	dec := xml.NewDecoder(strings.NewReader(document))
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("parse policy document: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != ElementPolicy && start.Name.Local != ElementPolicySet {
			return xml.StartElement{}, fmt.Errorf("unexpected root element %q", start.Name.Local)
		}
		return start, nil
	}
}

// Compile-time interface verification.
var _ policy.DocumentParser = (*Parser)(nil)
