package wallet

type withdrawRequest struct {
	Amount      string `json:"amount" validate:"required,money"`
	Destination string `json:"destination" validate:"omitempty,max=64"`
}

type processWithdrawalRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason" validate:"max=500"`
}
