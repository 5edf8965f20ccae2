package domain

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Entity IDs use the 58-character base58 alphabet: 0, O, I and l are
// excluded so an ID survives being read aloud or retyped.
const (
	idAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	idLength   = 12
)

// NewUserID returns a fresh user identifier, e.g. "user_4FZr8NqwWmTk".
func NewUserID() string {
	return "user_" + newID()
}

// NewPostID returns a fresh post identifier, e.g. "post_Jx2mVbJpY9ch".
func NewPostID() string {
	return "post_" + newID()
}

func newID() string {
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		// gonanoid only fails on invalid alphabet or length, both constant here
		panic(err)
	}
	return id
}
