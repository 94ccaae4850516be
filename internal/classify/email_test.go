package classify

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/sdr-enrich/internal/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		want  model.EmailType
	}{
		{"jane@gmail.com", model.EmailTypePersonal},
		{"Jane@GMAIL.COM", model.EmailTypePersonal},
		{"j@yahoo.com", model.EmailTypePersonal},
		{"j@hotmail.com", model.EmailTypePersonal},
		{"j@outlook.com", model.EmailTypePersonal},
		{"j@aol.com", model.EmailTypePersonal},
		{"j@icloud.com", model.EmailTypePersonal},
		{"j@protonmail.com", model.EmailTypePersonal},
		{"j@me.com", model.EmailTypePersonal},
		{"jane@acmecorp.com", model.EmailTypeCompany},
		{"jane@mail.gmail.com", model.EmailTypeCompany},
		{"not-an-email", model.EmailTypeCompany},
		{"", model.EmailTypeCompany},
		{"trailing@", model.EmailTypeCompany},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.email))
		})
	}
}

func TestDomainAndLocalPart(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "acmecorp.com", Domain("Jane.Doe@AcmeCorp.com"))
	assert.Equal(t, "", Domain("no-at-sign"))
	assert.Equal(t, "Jane.Doe", LocalPart("Jane.Doe@AcmeCorp.com"))
	assert.Equal(t, "no-at-sign", LocalPart("no-at-sign"))
}

func TestProperty_Classify(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	providers := make([]any, 0, len(personalDomains))
	for d := range personalDomains {
		providers = append(providers, d)
	}

	properties.Property("free-mail domains are personal in any case", prop.ForAll(
		func(local, domain string, upper bool) bool {
			if upper {
				domain = strings.ToUpper(domain)
			}
			return Classify(local+"@"+domain) == model.EmailTypePersonal
		},
		gen.AlphaString(),
		gen.OneConstOf(providers...),
		gen.Bool(),
	))

	properties.Property("other domains are company", prop.ForAll(
		func(local, label string) bool {
			return Classify(local+"@"+label+".example") == model.EmailTypeCompany
		},
		gen.AlphaString(),
		gen.Identifier(),
	))

	properties.Property("classification is total and idempotent", prop.ForAll(
		func(s string) bool {
			first := Classify(s)
			return (first == model.EmailTypePersonal || first == model.EmailTypeCompany) && Classify(s) == first
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
