package lobby

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Room codes avoid 0/O/1/I/L so they survive being read aloud.
const (
	codeCharset  = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 4
	codeAttempts = 100
)

var ErrCodeSpaceExhausted = errors.New("lobby: could not generate an unused room code")

func randomCode() string {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		buf[i] = codeCharset[n.Int64()]
	}
	return string(buf)
}

// generateCode retries until taken reports the code free. With a 31^4 space
// and at most 100 live rooms, exhausting the attempts means something is
// deeply wrong, so the caller treats it as a server fault.
func generateCode(taken func(code string) bool) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := randomCode()
		if !taken(code) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
