package account

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/meghshah/paisawatch/internal/paisa"
)

// Money crosses the JSON boundary as decimal rupee strings ("1500.00"), never
// as floats. The alias types below add the string fields the raw structs
// exclude via json:"-".

func (t *Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		*alias
		Amount string `json:"amount"`
	}{(*alias)(t), paisa.Format(t.Amount)})
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	type alias Transaction
	aux := struct {
		*alias
		Amount string `json:"amount"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	amt, ok := paisa.Parse(aux.Amount)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, aux.Amount)
	}
	t.Amount = amt
	return nil
}

type limitsJSON struct {
	PerTransactionMax        string              `json:"perTransactionMax,omitempty"`
	MonthlyMax               string              `json:"monthlyMax,omitempty"`
	PerCategoryMax           map[Category]string `json:"perCategoryMax,omitempty"`
	WithdrawalDaily          string              `json:"withdrawalDaily,omitempty"`
	WithdrawalWeekly         string              `json:"withdrawalWeekly,omitempty"`
	WithdrawalMonthly        string              `json:"withdrawalMonthly,omitempty"`
	IncomingCreditMultiplier int                 `json:"incomingCreditMultiplier,omitempty"`
}

func formatOpt(v *big.Int) string {
	if v == nil {
		return ""
	}
	return paisa.Format(v)
}

func parseOpt(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := paisa.Parse(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

func (l Limits) MarshalJSON() ([]byte, error) {
	out := limitsJSON{
		PerTransactionMax:        formatOpt(l.PerTransactionMax),
		MonthlyMax:               formatOpt(l.MonthlyMax),
		WithdrawalDaily:          formatOpt(l.Withdrawal.Daily),
		WithdrawalWeekly:         formatOpt(l.Withdrawal.Weekly),
		WithdrawalMonthly:        formatOpt(l.Withdrawal.Monthly),
		IncomingCreditMultiplier: l.IncomingCreditMultiplier,
	}
	if len(l.PerCategoryMax) > 0 {
		out.PerCategoryMax = make(map[Category]string, len(l.PerCategoryMax))
		for c, v := range l.PerCategoryMax {
			out.PerCategoryMax[c] = paisa.Format(v)
		}
	}
	return json.Marshal(out)
}

func (l *Limits) UnmarshalJSON(data []byte) error {
	var aux limitsJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if l.PerTransactionMax, err = parseOpt(aux.PerTransactionMax); err != nil {
		return err
	}
	if l.MonthlyMax, err = parseOpt(aux.MonthlyMax); err != nil {
		return err
	}
	if l.Withdrawal.Daily, err = parseOpt(aux.WithdrawalDaily); err != nil {
		return err
	}
	if l.Withdrawal.Weekly, err = parseOpt(aux.WithdrawalWeekly); err != nil {
		return err
	}
	if l.Withdrawal.Monthly, err = parseOpt(aux.WithdrawalMonthly); err != nil {
		return err
	}
	if len(aux.PerCategoryMax) > 0 {
		l.PerCategoryMax = make(map[Category]*big.Int, len(aux.PerCategoryMax))
		for c, s := range aux.PerCategoryMax {
			v, ok := paisa.Parse(s)
			if !ok {
				return fmt.Errorf("%w: %q", ErrInvalidAmount, s)
			}
			l.PerCategoryMax[c] = v
		}
	}
	l.IncomingCreditMultiplier = aux.IncomingCreditMultiplier
	return nil
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	locked := make(map[PurposeTag]string, len(s.LockedFunds))
	for tag, v := range s.LockedFunds {
		locked[tag] = paisa.Format(v)
	}
	return json.Marshal(struct {
		*alias
		Balance     string                `json:"balance"`
		LockedFunds map[PurposeTag]string `json:"lockedFunds"`
	}{(*alias)(s), paisa.Format(s.Balance), locked})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type alias Snapshot
	aux := struct {
		*alias
		Balance     string                `json:"balance"`
		LockedFunds map[PurposeTag]string `json:"lockedFunds"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	bal, ok := paisa.Parse(aux.Balance)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, aux.Balance)
	}
	s.Balance = bal
	s.LockedFunds = make(map[PurposeTag]*big.Int, len(aux.LockedFunds))
	for tag, str := range aux.LockedFunds {
		v, ok := paisa.Parse(str)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, str)
		}
		s.LockedFunds[tag] = v
	}
	return nil
}
