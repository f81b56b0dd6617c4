package nft

import "errors"

var (
	// ErrUnknownToken indicates no token exists with the given id.
	ErrUnknownToken = errors.New("nft: unknown token")

	// ErrTokenExists indicates a mint collided with an existing token id.
	ErrTokenExists = errors.New("nft: token already exists")

	// ErrNotOwner indicates the address is not the token's current owner.
	ErrNotOwner = errors.New("nft: not the token owner")
)
