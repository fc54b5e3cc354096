package recipient

import (
	"testing"

	"github.com/dvloznov/covid-award-summary/internal/domain"
)

func TestHashV1Golden(t *testing.T) {
	// Stored hashes depend on these values; a change here is a migration.
	tests := []struct {
		key  string
		want string
	}{
		{"DUNS-123456789", "dd4893c7-b63c-d1a1-0e22-e5c2ddd476a4"},
		{"UEI-ABCDEF1", "7afbb029-200a-dc3f-b4f3-76d313fca8e5"},
		{"NAME-", "ec30e06e-225b-8259-5146-73388a55d759"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := HashV1(tt.key); got != tt.want {
				t.Errorf("HashV1(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestFallbackKeyPriority(t *testing.T) {
	tests := []struct {
		name     string
		fields   Fields
		wantKey  string
		wantRule string
	}{
		{
			name:     "business identifier wins over uei and name",
			fields:   Fields{BusinessIdentifier: "123456789", UEI: "ABCDEF1", LegalName: "Acme"},
			wantKey:  "duns-123456789",
			wantRule: "duns",
		},
		{
			name:     "uei when no business identifier",
			fields:   Fields{UEI: "ABCDEF1", LegalName: "Acme"},
			wantKey:  "uei-ABCDEF1",
			wantRule: "uei",
		},
		{
			name:     "name when nothing else",
			fields:   Fields{LegalName: "Acme"},
			wantKey:  "name-Acme",
			wantRule: "name",
		},
		{
			name:     "blank business identifier is absent",
			fields:   Fields{BusinessIdentifier: "  ", UEI: "ABCDEF1"},
			wantKey:  "uei-ABCDEF1",
			wantRule: "uei",
		},
		{
			name:     "everything missing",
			fields:   Fields{},
			wantKey:  "name-",
			wantRule: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, rule := FallbackKey(tt.fields)
			if key != tt.wantKey || rule != tt.wantRule {
				t.Errorf("FallbackKey() = (%q, %q), want (%q, %q)", key, rule, tt.wantKey, tt.wantRule)
			}
		})
	}
}

func TestHashUsesUppercasedDunsKey(t *testing.T) {
	got := Hash(Fields{BusinessIdentifier: "123456789", UEI: "ABCDEF1"})
	if want := HashV1("DUNS-123456789"); got != want {
		t.Errorf("Hash() = %q, want hash of DUNS-123456789 (%q)", got, want)
	}
	if got == HashV1("UEI-ABCDEF1") {
		t.Error("Hash() keyed off the UEI instead of the business identifier")
	}
}

func TestHashIsCaseInsensitive(t *testing.T) {
	a := Hash(Fields{LegalName: "acme corp"})
	b := Hash(Fields{LegalName: "ACME CORP"})
	if a != b {
		t.Errorf("expected same hash for different cases, got %q and %q", a, b)
	}
}

func TestCoalesceFieldByField(t *testing.T) {
	procurement := &domain.TransactionRecipient{LegalName: "Proc Name"}
	assistance := &domain.TransactionRecipient{BusinessIdentifier: "987654321", UEI: "ZZZ", LegalName: "Asst Name"}

	got := Coalesce(procurement, assistance)
	want := Fields{BusinessIdentifier: "987654321", UEI: "ZZZ", LegalName: "Proc Name"}
	if got != want {
		t.Errorf("Coalesce() = %+v, want %+v", got, want)
	}

	if got := Coalesce(nil, nil); got != (Fields{}) {
		t.Errorf("Coalesce(nil, nil) = %+v, want zero", got)
	}
}

func TestResolver_LookupOverride(t *testing.T) {
	const storedHash = "00000000-0000-0000-0000-0000000000aa"
	r := NewResolver([]domain.RecipientLookup{
		{RecipientHash: storedHash, BusinessIdentifier: "123456789", LegalBusinessName: "ACME CORP"},
	})

	got := r.Resolve(&domain.TransactionRecipient{BusinessIdentifier: "123456789", LegalName: "ACME INC"}, nil)

	if got.Name != "ACME CORP" {
		t.Errorf("Name = %q, want ACME CORP", got.Name)
	}
	if got.Hash != storedHash {
		t.Errorf("Hash = %q, want %q", got.Hash, storedHash)
	}
	if !got.FromLookup {
		t.Error("expected FromLookup")
	}
}

func TestResolver_Fallback(t *testing.T) {
	r := NewResolver([]domain.RecipientLookup{
		{RecipientHash: "x", BusinessIdentifier: "111111111", LegalBusinessName: "OTHER"},
	})

	tests := []struct {
		name        string
		procurement *domain.TransactionRecipient
		assistance  *domain.TransactionRecipient
		wantHash    string
		wantName    string
	}{
		{
			name:        "business identifier not in lookup",
			procurement: &domain.TransactionRecipient{BusinessIdentifier: "123456789", LegalName: "Acme Inc"},
			wantHash:    HashV1("DUNS-123456789"),
			wantName:    "ACME INC",
		},
		{
			name:       "uei only from assistance",
			assistance: &domain.TransactionRecipient{UEI: "abcdef1", LegalName: "Small Biz"},
			wantHash:   HashV1("UEI-ABCDEF1"),
			wantName:   "SMALL BIZ",
		},
		{
			name:     "no transaction at all",
			wantHash: UnknownRecipientHash,
			wantName: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.procurement, tt.assistance)
			if got.Hash != tt.wantHash || got.Name != tt.wantName {
				t.Errorf("Resolve() = %+v, want hash %q name %q", got, tt.wantHash, tt.wantName)
			}
			if got.FromLookup {
				t.Error("unexpected FromLookup")
			}
		})
	}
}

func TestNewResolver_DuplicateBusinessIdentifier(t *testing.T) {
	lookups := []domain.RecipientLookup{
		{RecipientHash: "bbb", BusinessIdentifier: "123", LegalBusinessName: "SECOND"},
		{RecipientHash: "aaa", BusinessIdentifier: "123", LegalBusinessName: "FIRST"},
	}
	reversed := []domain.RecipientLookup{lookups[1], lookups[0]}

	a := NewResolver(lookups).Resolve(&domain.TransactionRecipient{BusinessIdentifier: "123"}, nil)
	b := NewResolver(reversed).Resolve(&domain.TransactionRecipient{BusinessIdentifier: "123"}, nil)

	if a != b || a.Hash != "aaa" {
		t.Errorf("expected order-independent pick of smallest hash, got %+v and %+v", a, b)
	}
}
