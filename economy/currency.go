package economy

// Notifier receives the outcome of wallet operations. Hooks run after the wallet has released
// its lock, so they may call back into the wallet.
type Notifier interface {
	// OnAdded is called after currency was added. amountLeft is the part of the request that did
	// not fit into the wallet.
	OnAdded(add AddContext, result OperationResult, amountLeft int64)
	// OnAddFailed is called when an add was rejected by a permission check.
	OnAddFailed(add AddContext, result OperationResult)
	// OnTaken is called after currency was taken. amountLeft is the part of the request that could
	// not be covered by the balance.
	OnTaken(take TakeContext, result OperationResult, amountLeft int64)
	// OnTakeFailed is called when a take was rejected by a permission check.
	OnTakeFailed(take TakeContext, result OperationResult)
}

// Currency is a named resource type, such as gold or mana, with its own permission rules and
// notification hooks. A currency holds no per-wallet state and is shared by every wallet bound
// to it.
type Currency interface {
	Notifier

	// ID returns the identifier the currency is registered under.
	ID() string

	// CanBeAdded checks if the amount in the context can be added.
	CanBeAdded(add AddContext) OperationResult

	// CanBeTaken checks if the amount in the context can be taken.
	CanBeTaken(take TakeContext) OperationResult
}

// Limiter may be implemented by a currency to cap how much of an add a wallet accepts. The
// returned amount is clamped to [0, amount]; the remainder is reported back to the caller.
type Limiter interface {
	Accept(balance, amount int64) (accepted int64)
}

// BaseCurrency permits everything and ignores all notifications. Embed it and override the
// methods a currency needs.
type BaseCurrency struct {
	Name string
}

var _ Currency = (*BaseCurrency)(nil)

func NewBaseCurrency(id string) *BaseCurrency {
	return &BaseCurrency{Name: id}
}

func (c *BaseCurrency) ID() string {
	return c.Name
}

func (c *BaseCurrency) CanBeAdded(AddContext) OperationResult {
	return Permitted()
}

func (c *BaseCurrency) CanBeTaken(TakeContext) OperationResult {
	return Permitted()
}

func (c *BaseCurrency) OnAdded(AddContext, OperationResult, int64)  {}
func (c *BaseCurrency) OnAddFailed(AddContext, OperationResult)     {}
func (c *BaseCurrency) OnTaken(TakeContext, OperationResult, int64) {}
func (c *BaseCurrency) OnTakeFailed(TakeContext, OperationResult)   {}

// NotifierFuncs adapts plain functions to a Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	Added      func(add AddContext, result OperationResult, amountLeft int64)
	AddFailed  func(add AddContext, result OperationResult)
	Taken      func(take TakeContext, result OperationResult, amountLeft int64)
	TakeFailed func(take TakeContext, result OperationResult)
}

var _ Notifier = NotifierFuncs{}

func (n NotifierFuncs) OnAdded(add AddContext, result OperationResult, amountLeft int64) {
	if n.Added != nil {
		n.Added(add, result, amountLeft)
	}
}

func (n NotifierFuncs) OnAddFailed(add AddContext, result OperationResult) {
	if n.AddFailed != nil {
		n.AddFailed(add, result)
	}
}

func (n NotifierFuncs) OnTaken(take TakeContext, result OperationResult, amountLeft int64) {
	if n.Taken != nil {
		n.Taken(take, result, amountLeft)
	}
}

func (n NotifierFuncs) OnTakeFailed(take TakeContext, result OperationResult) {
	if n.TakeFailed != nil {
		n.TakeFailed(take, result)
	}
}
