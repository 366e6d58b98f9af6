package auth

import "golang.org/x/crypto/bcrypt"

type BcryptPasswordVerifier struct{}

func NewBcryptPasswordVerifier() *BcryptPasswordVerifier {
	return &BcryptPasswordVerifier{}
}

// ハッシュが空や不正な形式でもfalseを返すだけ
func (v *BcryptPasswordVerifier) Verify(hashed string, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
