package keyserver

// KeyValidator checks public key material before it is stored.
type KeyValidator interface {
	Validate(key []byte) error
}

// KeyValidatorFunc adapts a function to KeyValidator.
type KeyValidatorFunc func(key []byte) error

// Validate calls f(key).
func (f KeyValidatorFunc) Validate(key []byte) error {
	return f(key)
}
