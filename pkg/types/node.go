package types

// NodeSnapshot is the "info" event a node publishes over its snapshot
// stream. Mining is the index of the block currently being mined, nil when
// the node is idle or not a miner.
type NodeSnapshot struct {
	Nodes           []int `json:"nodes"`
	BlockchainCount int   `json:"blockchain_count"`
	IsMiner         bool  `json:"is_miner"`
	Mining          *int  `json:"mining"`
}

// NewElectionRequest is the body of POST /new_election.
type NewElectionRequest struct {
	Label       string      `json:"label"`
	Candidates  []Candidate `json:"candidates"`
	BallotCount int         `json:"ballot_count"`
}

// NewElectionResponse is returned by POST /new_election. SigningKeys are the
// only copy of the voters' secrets; the node does not keep them.
type NewElectionResponse struct {
	ID            string      `json:"id"`
	Label         string      `json:"label"`
	Time          float64     `json:"time"`
	Candidates    []Candidate `json:"candidates"`
	VerifyingKeys []string    `json:"verifying_keys"`
	SigningKeys   []string    `json:"signing_keys"`
}

// CastBallotRequest is the body of POST /cast_ballot.
type CastBallotRequest struct {
	Election   string      `json:"election"`
	Candidates []Candidate `json:"candidates"`
	SigningKey string      `json:"signing_key"`
}
