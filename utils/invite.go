package utils

import (
	"crypto/rand"
	"math/big"
)

// Invite codes avoid 0/O and 1/I so they survive being read out loud or
// copied from a whiteboard.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const InviteCodeLength = 8

// CreateInviteCode returns a short, human-shareable room code. Uniqueness is
// the caller's responsibility; the code space is large enough that retrying
// on collision is cheap.
func CreateInviteCode() string {
	max := big.NewInt(int64(len(inviteAlphabet)))
	code := make([]byte, InviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic("invite code generation: " + err.Error())
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code)
}
