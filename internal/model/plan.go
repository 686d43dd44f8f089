package model

// TxDescriptor is one unsigned transaction for the client-held key to sign
// and submit. Immutable once produced; submission order follows slice order.
type TxDescriptor struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// Plan is an ordered unsigned transaction sequence: zero or more
// prerequisite approvals followed by exactly one primary action. The
// gateway never signs or submits a plan; it only prepares it.
type Plan struct {
	Preparatory []TxDescriptor `json:"preparatory,omitempty"`
	Transaction TxDescriptor   `json:"transaction"`
	GasLimit    uint64         `json:"gasLimit"`

	// Payment is the ceiling-rounded obligation (base-asset units) the
	// primary action will collect, when one applies. Preview only; the
	// approval prerequisite is sized to the unlimited sentinel.
	Payment          *BigInt `json:"payment,omitempty"`
	PaymentFormatted string  `json:"paymentFormatted,omitempty"`
}
