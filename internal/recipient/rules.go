package recipient

import (
	"strings"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

const (
	dunsPrefix = "duns-"
	ueiPrefix  = "uei-"
	namePrefix = "name-"
)

// Fields are the recipient-identifying inputs of the fallback key.
type Fields struct {
	BusinessIdentifier string
	UEI                string
	LegalName          string
}

// KeyRule builds a fallback key when Applies holds.
type KeyRule struct {
	Name    string
	Applies func(Fields) bool
	Key     func(Fields) string
}

// Rules is evaluated top to bottom and the first matching rule wins. The
// final rule always applies. Order and key formats are part of HashVersion.
var Rules = []KeyRule{
	{
		Name:    "duns",
		Applies: func(f Fields) bool { return present(f.BusinessIdentifier) },
		Key:     func(f Fields) string { return dunsPrefix + f.BusinessIdentifier },
	},
	{
		Name:    "uei",
		Applies: func(f Fields) bool { return present(f.UEI) },
		Key:     func(f Fields) string { return ueiPrefix + f.UEI },
	},
	{
		Name:    "name",
		Applies: func(Fields) bool { return true },
		Key:     func(f Fields) string { return namePrefix + f.LegalName },
	},
}

// FallbackKey returns the un-hashed key and the name of the rule that built it.
func FallbackKey(f Fields) (key string, rule string) {
	for _, r := range Rules {
		if r.Applies(f) {
			return r.Key(f), r.Name
		}
	}
	// unreachable while the name rule is last
	return namePrefix + f.LegalName, "name"
}

// Hash returns the fallback recipient hash for f.
func Hash(f Fields) string {
	key, _ := FallbackKey(f)
	return HashKey(key)
}

// FieldsOf extracts the identifying fields of a transaction.
func FieldsOf(t *domain.TransactionRecipient) Fields {
	if t == nil {
		return Fields{}
	}
	return Fields{
		BusinessIdentifier: t.BusinessIdentifier,
		UEI:                t.UEI,
		LegalName:          t.LegalName,
	}
}

// Coalesce merges procurement and assistance fields one field at a time,
// preferring procurement. Either side may be nil.
func Coalesce(procurement, assistance *domain.TransactionRecipient) Fields {
	p, a := FieldsOf(procurement), FieldsOf(assistance)
	return Fields{
		BusinessIdentifier: firstPresent(p.BusinessIdentifier, a.BusinessIdentifier),
		UEI:                firstPresent(p.UEI, a.UEI),
		LegalName:          firstPresent(p.LegalName, a.LegalName),
	}
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func firstPresent(values ...string) string {
	for _, v := range values {
		if present(v) {
			return v
		}
	}
	return ""
}
