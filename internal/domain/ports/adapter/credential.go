package adapter

// CredentialHasher turns raw passwords into opaque hashes and checks them.
type CredentialHasher interface {
	Hash(raw string) (string, error)
	// Verify returns domain.ErrBadCredential on mismatch.
	Verify(hash, raw string) error
}
