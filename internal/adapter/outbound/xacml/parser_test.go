package xacml

import (
	"errors"
	"testing"
)

func TestParser_PolicyID(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		document string
		want     string
	}{
		{
			name:     "policy",
			document: `<Policy PolicyId="urn:policy:read" RuleCombiningAlgId="deny-overrides"></Policy>`,
			want:     "urn:policy:read",
		},
		{
			name:     "policy set",
			document: `<PolicySet PolicySetId="urn:set:root"></PolicySet>`,
			want:     "urn:set:root",
		},
		{
			name: "namespaced policy",
			document: `<xacml:Policy xmlns:xacml="urn:oasis:names:tc:xacml:3.0:core:schema:wd-17"
				PolicyId="ns-policy"></xacml:Policy>`,
			want: "ns-policy",
		},
		{
			name:     "xml declaration and leading comment",
			document: "<?xml version=\"1.0\"?>\n<!-- exported -->\n<Policy PolicyId=\"p1\"></Policy>",
			want:     "p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.PolicyID(tt.document)
			if err != nil {
				t.Fatalf("PolicyID() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("PolicyID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParser_PolicyID_Errors(t *testing.T) {
	parser := NewParser()

	t.Run("missing id attribute", func(t *testing.T) {
		_, err := parser.PolicyID(`<Policy RuleCombiningAlgId="deny-overrides"></Policy>`)
		if !errors.Is(err, ErrNoPolicyID) {
			t.Fatalf("error = %v, want ErrNoPolicyID", err)
		}
	})

	t.Run("policy set id attribute on policy element is ignored", func(t *testing.T) {
		_, err := parser.PolicyID(`<Policy PolicySetId="wrong-kind"></Policy>`)
		if !errors.Is(err, ErrNoPolicyID) {
			t.Fatalf("error = %v, want ErrNoPolicyID", err)
		}
	})

	t.Run("wrong root element", func(t *testing.T) {
		if _, err := parser.PolicyID(`<Rule RuleId="r1"/>`); err == nil {
			t.Fatal("expected error for non-policy root element")
		}
	})

	t.Run("not xml", func(t *testing.T) {
		if _, err := parser.PolicyID("plain text"); err == nil {
			t.Fatal("expected error for non-XML input")
		}
	})

	t.Run("empty document", func(t *testing.T) {
		if _, err := parser.PolicyID(""); err == nil {
			t.Fatal("expected error for empty input")
		}
	})
}

func TestParser_DocumentType(t *testing.T) {
	parser := NewParser()

	typ, err := parser.DocumentType(`<Policy PolicyId="p"></Policy>`)
	if err != nil {
		t.Fatalf("DocumentType() unexpected error: %v", err)
	}
	if typ != ElementPolicy {
		t.Errorf("DocumentType() = %q, want %q", typ, ElementPolicy)
	}

	typ, err = parser.DocumentType(`<PolicySet PolicySetId="s"></PolicySet>`)
	if err != nil {
		t.Fatalf("DocumentType() unexpected error: %v", err)
	}
	if typ != ElementPolicySet {
		t.Errorf("DocumentType() = %q, want %q", typ, ElementPolicySet)
	}
}
