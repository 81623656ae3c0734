package payment

type depositRequest struct {
	Provider string `json:"provider" validate:"required,provider"`
	Amount   string `json:"amount" validate:"required,money"`
}

type bankDepositForm struct {
	Amount string `validate:"required,money"`
}

type rejectDepositRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}
