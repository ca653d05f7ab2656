package driven

import "github.com/custodia-labs/sercha-ingest/internal/core/domain"

// Vault encrypts credential maps for storage at rest.
// Implementations wrap every failure in domain.ErrCredential and never
// return partial data.
type Vault interface {
	// Encrypt seals creds into an opaque blob.
	Encrypt(creds domain.CredentialMap) ([]byte, error)

	// Decrypt opens a blob produced by Encrypt.
	Decrypt(blob []byte) (domain.CredentialMap, error)

	// Merge decrypts blob, applies updates and re-encrypts.
	// A blob that cannot be decrypted is an error, never silently replaced.
	Merge(blob []byte, updates domain.CredentialMap) ([]byte, error)
}
