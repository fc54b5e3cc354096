package recipient

import (
	"crypto/md5"
	"strings"

	"github.com/google/uuid"
)

// HashVersion names the key format and hash function below. Existing
// recipient hashes are stored in downstream tables, so neither may change
// without a migration.
const HashVersion = "v1"

// HashV1 renders the MD5 digest of key as a UUID string. The key is hashed
// exactly as given; callers uppercase it first.
func HashV1(key string) string {
	sum := md5.Sum([]byte(key))
	// FromBytes only fails on a length mismatch, md5 is always 16 bytes.
	id, _ := uuid.FromBytes(sum[:])
	return id.String()
}

// HashKey uppercases a fallback key and hashes it.
func HashKey(key string) string {
	return HashV1(strings.ToUpper(key))
}

// UnknownRecipientHash is the shared identity of every record that has no
// business identifier, UEI or legal name.
var UnknownRecipientHash = HashKey(namePrefix)
