package behavior

import (
	"encoding/json"
	"fmt"

	"github.com/meghshah/paisawatch/internal/paisa"
)

// AvgAmount crosses the JSON boundary as a decimal rupee string.

func (b *Baseline) MarshalJSON() ([]byte, error) {
	type alias Baseline
	return json.Marshal(struct {
		*alias
		AvgAmount string `json:"avgAmount"`
	}{(*alias)(b), paisa.Format(b.AvgAmount)})
}

func (b *Baseline) UnmarshalJSON(data []byte) error {
	type alias Baseline
	aux := struct {
		*alias
		AvgAmount string `json:"avgAmount"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	avg, ok := paisa.Parse(aux.AvgAmount)
	if !ok {
		return fmt.Errorf("invalid average amount %q", aux.AvgAmount)
	}
	b.AvgAmount = avg
	return nil
}
