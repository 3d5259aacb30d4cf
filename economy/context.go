package economy

// AddContext describes a single add on a wallet. Before the mutation Amount is the requested
// amount; the copy handed to success hooks carries the amount actually added.
type AddContext struct {
	Currency Currency
	Wallet   *Wallet
	Amount   int64
	// Balance is the wallet balance when the context was built.
	Balance int64
}

// WithAmount returns a copy of the context with a different amount.
func (c AddContext) WithAmount(amount int64) AddContext {
	c.Amount = amount
	return c
}

// TakeContext describes a single take on a wallet. Before the mutation Amount is the requested
// amount; the copy handed to success hooks carries the amount actually taken.
type TakeContext struct {
	Currency Currency
	Wallet   *Wallet
	Amount   int64
	// Balance is the wallet balance when the context was built.
	Balance int64
}

// WithAmount returns a copy of the context with a different amount.
func (c TakeContext) WithAmount(amount int64) TakeContext {
	c.Amount = amount
	return c
}
