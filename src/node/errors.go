package node

import "errors"

var (
	errNotVoting     = errors.New("no voting round in progress")
	errUnknownVoter  = errors.New("vote from unknown peer")
	errDuplicateVote = errors.New("peer already voted")
	errUnknownPeer   = errors.New("unknown peer")
	errNoKey         = errors.New("no key for target")
)
