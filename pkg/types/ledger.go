// Package types holds the data shapes shared across blockvote packages.
// The JSON field names match what the voting nodes send and expect, so both
// the transport and the archive use these types directly.
package types

// Candidate is the name of a candidate on the ballot.
type Candidate = string

// Ballot is one voter's ranked preference, first entry most preferred.
type Ballot struct {
	ID           string      `json:"id"`
	Election     string      `json:"election"`
	Candidates   []Candidate `json:"candidates"`
	VerifyingKey string      `json:"verifying_key"`
}

// BallotRecord is a ballot as recorded on the ledger, with its signature.
// The signature is carried through untouched; nodes verify it, we don't.
type BallotRecord struct {
	Ballot    Ballot `json:"ballot"`
	Signature string `json:"signature"`
}

// BlockHeader describes a mined block. The genesis block additionally
// carries the election metadata (label, candidates, verifying keys).
type BlockHeader struct {
	Election     string  `json:"election"`
	ID           string  `json:"id"`
	Timestamp    float64 `json:"timestamp"`
	Nonce        int64   `json:"nonce"`
	PreviousHash string  `json:"previous_hash"`
	PreviousID   string  `json:"previous_id"`
	MinedBy      int     `json:"mined_by"`

	Label         string      `json:"label,omitempty"`
	Candidates    []Candidate `json:"candidates,omitempty"`
	VerifyingKeys []string    `json:"verifying_keys,omitempty"`
}

// Block is a header plus the ballots it confirms, in mining order.
type Block struct {
	Header  BlockHeader    `json:"header"`
	Ballots []BallotRecord `json:"ballots"`
}

// Ledger is the append-only chain of one election. Index 0 is genesis.
// A fetched Ledger is a snapshot and must not be modified in place.
type Ledger struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Chain []Block `json:"chain"`
}

// Genesis returns the genesis block, or nil for an empty chain.
func (l *Ledger) Genesis() *Block {
	if l == nil || len(l.Chain) == 0 {
		return nil
	}
	return &l.Chain[0]
}

// Candidates returns the full candidate set from the genesis header.
func (l *Ledger) Candidates() []Candidate {
	g := l.Genesis()
	if g == nil {
		return nil
	}
	return g.Header.Candidates
}

// ElectionLabel returns the genesis label, falling back to the ledger label.
func (l *Ledger) ElectionLabel() string {
	if l == nil {
		return ""
	}
	if g := l.Genesis(); g != nil && g.Header.Label != "" {
		return g.Header.Label
	}
	return l.Label
}

// BallotCount returns the number of confirmed ballots across all blocks.
func (l *Ledger) BallotCount() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, b := range l.Chain {
		n += len(b.Ballots)
	}
	return n
}

// TipID returns the id of the most recent block, or "" for an empty chain.
func (l *Ledger) TipID() string {
	if l == nil || len(l.Chain) == 0 {
		return ""
	}
	return l.Chain[len(l.Chain)-1].Header.ID
}
