package ports

// SecurityPort encrypts and decrypts sensitive fields before they
// reach durable storage. The session store uses it for the identity
// bearer credential; the implementation is swappable without touching
// business logic.
type SecurityPort interface {
	// Encrypt takes a plaintext and returns a secure, encrypted ciphertext.
	Encrypt(plaintext []byte) (ciphertext []byte, err error)

	// Decrypt takes a ciphertext and returns the original plaintext.
	Decrypt(ciphertext []byte) (plaintext []byte, err error)
}
