package metadata

import (
	"testing"

	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
	"github.com/au-research/igsn-metadata-registry-sub001/internal/schema"
)

func statusDocument(logDates string) []byte {
	return []byte(`<resources><resource>
		<resourceIdentifier>10273/ZZ0001</resourceIdentifier>
		<landingPage>https://example.org/z</landingPage>` + logDates + `
	</resource></resources>`)
}

func TestStatusDerivation(t *testing.T) {
	providers, _ := newTestRegistry(t)
	status, err := providers.Status(schema.ARDCDescriptive)
	if err != nil {
		t.Fatalf("Status() err=%v", err)
	}
	accessible := domain.Identifier{Status: domain.IdentifierAccessible}

	tests := []struct {
		name     string
		logDates string
		want     domain.RegistryStatus
	}{
		{
			"latest registered",
			`<logDate eventType="registered">2024-03-01</logDate>`,
			domain.StatusRegistered,
		},
		{
			"updated counts as registered",
			`<logDate eventType="registered">2024-03-01</logDate>
			 <logDate eventType="updated">2024-06-15</logDate>`,
			domain.StatusRegistered,
		},
		{
			"destroyed wins by date",
			`<logDate eventType="registered">2024-03-01</logDate>
			 <logDate eventType="destroyed">2025-01-01</logDate>`,
			domain.StatusDestroyed,
		},
		{
			"deprecated wins by date",
			`<logDate eventType="deprecated">2025-01-01</logDate>
			 <logDate eventType="registered">2024-03-01</logDate>`,
			domain.StatusDeprecated,
		},
		{
			"same date keeps document order",
			`<logDate eventType="registered">2024-03-01</logDate>
			 <logDate eventType="deprecated">2024-03-01</logDate>`,
			domain.StatusDeprecated,
		},
		{
			"no events",
			``,
			domain.StatusUnknown,
		},
		{
			"unknown event type",
			`<logDate eventType="submitted">2024-03-01</logDate>`,
			domain.StatusUnknown,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := status.Status(accessible, statusDocument(tc.logDates))
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestStatusReservedOverridesContent(t *testing.T) {
	providers, _ := newTestRegistry(t)
	status, err := providers.Status(schema.ARDCDescriptive)
	if err != nil {
		t.Fatalf("Status() err=%v", err)
	}

	reserved := domain.Identifier{Status: domain.IdentifierReserved}
	content := statusDocument(`<logDate eventType="registered">2024-03-01</logDate>`)
	if got := status.Status(reserved, content); got != domain.StatusReserved {
		t.Fatalf("expected Reserved, got %s", got)
	}
}

func TestStatusNoContent(t *testing.T) {
	providers, _ := newTestRegistry(t)
	status, err := providers.Status(schema.ARDCDescriptive)
	if err != nil {
		t.Fatalf("Status() err=%v", err)
	}
	accessible := domain.Identifier{Status: domain.IdentifierAccessible}
	if got := status.Status(accessible, nil); got != domain.StatusUnknown {
		t.Fatalf("expected Unknown without content, got %s", got)
	}
	if got := status.Status(accessible, []byte("not xml")); got != domain.StatusUnknown {
		t.Fatalf("expected Unknown for unparseable content, got %s", got)
	}
}
