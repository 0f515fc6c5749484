package deadline

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		label string
		want  Severity
	}{
		{label: "Crítica", want: Critical},
		{label: "critico", want: Critical},
		{label: "CRITICAL", want: Critical},
		{label: "Alta", want: High},
		{label: " high ", want: High},
		{label: "Média", want: Medium},
		{label: "media", want: Medium},
		{label: "Medium", want: Medium},
		{label: "Baixa", want: Low},
		{label: "low", want: Low},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			g := NewWithT(t)
			got, err := ParseSeverity(tt.label)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func TestParseSeverityUnknown(t *testing.T) {
	g := NewWithT(t)
	for _, label := range []string{"", "Urgente", "Alta demais"} {
		_, err := ParseSeverity(label)
		g.Expect(errors.Cause(err)).To(Equal(ErrUnknownCriticality), label)
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		text    string
		want    int
		wantErr bool
	}{
		{text: "", want: 0},
		{text: "  ", want: 0},
		{text: "3", want: 3},
		{text: " 10 ", want: 10},
		{text: "2.5", want: 3},
		{text: "1,4", want: 1},
		{text: "-2", want: -2},
		{text: "três", wantErr: true},
		{text: "NaN", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			g := NewWithT(t)
			got, err := ParseDays(tt.text)
			if tt.wantErr {
				g.Expect(err).To(HaveOccurred())
				return
			}
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func TestCompute(t *testing.T) {
	g := NewWithT(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	g.Expect(Compute(now, time.UTC, 3)).To(Equal("2024-01-04"))
	g.Expect(Compute(now, nil, 0)).To(Equal("2024-01-01"))
	g.Expect(Compute(now, time.UTC, 31)).To(Equal("2024-02-01"))
	g.Expect(Compute(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), time.UTC, 1)).To(Equal("2024-02-29"))

	// 23:30 UTC on Dec 31st is already Jan 1st in Tokyo.
	tokyo := time.FixedZone("JST", 9*60*60)
	late := time.Date(2023, 12, 31, 23, 30, 0, 0, time.UTC)
	g.Expect(Compute(late, tokyo, 3)).To(Equal("2024-01-04"))
}

func TestSeverityString(t *testing.T) {
	g := NewWithT(t)
	g.Expect(High.String()).To(Equal("High"))
	g.Expect(Severity(9).String()).To(Equal("Severity(9)"))
}
