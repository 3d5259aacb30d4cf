package economy

import (
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// CurrencyConfig is the data definition of a currency declared in the economy config file.
type CurrencyConfig struct {
	Name            string `json:"name,omitempty" yaml:"name,omitempty"`
	MaxBalance      int64  `json:"max_balance,omitempty" yaml:"max_balance,omitempty"`
	MaxPerOperation int64  `json:"max_per_operation,omitempty" yaml:"max_per_operation,omitempty"`
	StartBalance    int64  `json:"start_balance,omitempty" yaml:"start_balance,omitempty"`
	Global          bool   `json:"global,omitempty" yaml:"global,omitempty"`
	// ResetSchedule is a five field cron expression. When it fires the wallet balance is set to
	// ResetBalance, e.g. "0 0 * * *" refills mana every midnight.
	ResetSchedule        string            `json:"reset_schedule,omitempty" yaml:"reset_schedule,omitempty"`
	ResetBalance         int64             `json:"reset_balance,omitempty" yaml:"reset_balance,omitempty"`
	AdditionalProperties map[string]string `json:"additional_properties,omitempty" yaml:"additional_properties,omitempty"`
}

// Resetter may be implemented by a currency whose wallets are reset on a schedule.
type Resetter interface {
	// NextReset returns the first reset strictly after the given time, or false if the currency
	// never resets.
	NextReset(after time.Time) (time.Time, bool)
	ResetBalance() int64
}

// ConfigCurrency is a currency whose rules come from a CurrencyConfig.
type ConfigCurrency struct {
	BaseCurrency
	config   *CurrencyConfig
	schedule cron.Schedule
}

var (
	_ Currency         = (*ConfigCurrency)(nil)
	_ Limiter          = (*ConfigCurrency)(nil)
	_ Resetter         = (*ConfigCurrency)(nil)
	_ GlobalCurrency   = (*ConfigCurrency)(nil)
	_ StartingCurrency = (*ConfigCurrency)(nil)
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func NewConfigCurrency(id string, config *CurrencyConfig) (*ConfigCurrency, error) {
	if id == "" {
		return nil, errors.Wrap(ErrConfigInvalid, "currency id is empty")
	}
	if config == nil {
		config = &CurrencyConfig{}
	}
	if config.MaxBalance < 0 || config.MaxPerOperation < 0 || config.StartBalance < 0 || config.ResetBalance < 0 {
		return nil, errors.Wrapf(ErrConfigInvalid, "currency %q has negative limits", id)
	}
	if config.MaxBalance > 0 && (config.StartBalance > config.MaxBalance || config.ResetBalance > config.MaxBalance) {
		return nil, errors.Wrapf(ErrConfigInvalid, "currency %q starts above its max balance", id)
	}

	c := &ConfigCurrency{
		BaseCurrency: BaseCurrency{Name: id},
		config:       config,
	}
	if config.ResetSchedule != "" {
		schedule, err := scheduleParser.Parse(config.ResetSchedule)
		if err != nil {
			return nil, errors.Wrapf(ErrConfigInvalid, "currency %q reset schedule %q: %v", id, config.ResetSchedule, err)
		}
		c.schedule = schedule
	}
	return c, nil
}

func (c *ConfigCurrency) Config() *CurrencyConfig {
	return c.config
}

// DisplayName falls back to the ID when no name is configured.
func (c *ConfigCurrency) DisplayName() string {
	if c.config.Name != "" {
		return c.config.Name
	}
	return c.Name
}

func (c *ConfigCurrency) CanBeAdded(add AddContext) OperationResult {
	if c.config.MaxPerOperation > 0 && add.Amount > c.config.MaxPerOperation {
		return CurrencyDenied()
	}
	if c.config.MaxBalance > 0 && add.Balance >= c.config.MaxBalance {
		return BalanceLimit()
	}
	return Permitted()
}

func (c *ConfigCurrency) CanBeTaken(take TakeContext) OperationResult {
	if c.config.MaxPerOperation > 0 && take.Amount > c.config.MaxPerOperation {
		return CurrencyDenied()
	}
	return Permitted()
}

// Accept caps an add at the configured max balance.
func (c *ConfigCurrency) Accept(balance, amount int64) int64 {
	if c.config.MaxBalance <= 0 {
		return amount
	}
	return min(max(c.config.MaxBalance-balance, 0), amount)
}

func (c *ConfigCurrency) Global() bool {
	return c.config.Global
}

func (c *ConfigCurrency) StartBalance() int64 {
	return c.config.StartBalance
}

func (c *ConfigCurrency) NextReset(after time.Time) (time.Time, bool) {
	if c.schedule == nil {
		return time.Time{}, false
	}
	return c.schedule.Next(after), true
}

func (c *ConfigCurrency) ResetBalance() int64 {
	return c.config.ResetBalance
}
