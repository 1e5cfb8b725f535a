package learner

import "time"

// contributionCap bounds the when-win/when-loss contribution sample lists.
// The upstream source left these unbounded; 200 keeps enough history for
// attribution while capping state growth.
const contributionCap = 200

// SubTally accumulates win/loss/pnl per sector or regime.
type SubTally struct {
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	PnL    float64 `json:"pnl"`
}

// PerformanceRecord tracks realized performance for one signal component.
// A present-but-zero component accumulates pnl and samples but is not
// counted toward win/loss tallies.
type PerformanceRecord struct {
	Component   string  `json:"component"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Samples     int     `json:"samples"`
	TotalPnL    float64 `json:"total_pnl"`
	EWMAWinRate float64 `json:"ewma_win_rate"`
	EWMAPnL     float64 `json:"ewma_pnl"`

	// Component contribution values observed on wins and on losses, bounded.
	WinContributions  []float64 `json:"win_contributions"`
	LossContributions []float64 `json:"loss_contributions"`

	Sectors map[string]*SubTally `json:"sectors"`
	Regimes map[string]*SubTally `json:"regimes"`
}

// NewPerformanceRecord creates an empty record for a component.
func NewPerformanceRecord(component string) *PerformanceRecord {
	return &PerformanceRecord{
		Component:         component,
		WinContributions:  []float64{},
		LossContributions: []float64{},
		Sectors:           make(map[string]*SubTally),
		Regimes:           make(map[string]*SubTally),
	}
}

// Decided returns the number of win/loss-decided samples.
func (r *PerformanceRecord) Decided() int {
	return r.Wins + r.Losses
}

// RawWinRate returns wins over decided samples, 0 when undecided.
func (r *PerformanceRecord) RawWinRate() float64 {
	if r.Decided() == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Decided())
}

func (r *PerformanceRecord) observe(value, pnl float64, win bool, regime, sector string, alpha float64) {
	r.Samples++
	r.TotalPnL += pnl

	active := value != 0
	if active {
		if win {
			r.Wins++
			r.WinContributions = appendBounded(r.WinContributions, value, contributionCap)
		} else {
			r.Losses++
			r.LossContributions = appendBounded(r.LossContributions, value, contributionCap)
		}
	}

	if r.Decided() > 0 {
		r.EWMAWinRate = alpha*r.RawWinRate() + (1-alpha)*r.EWMAWinRate
	}
	r.EWMAPnL = alpha*pnl + (1-alpha)*r.EWMAPnL

	r.tally(r.Sectors, sector, pnl, win, active)
	r.tally(r.Regimes, regime, pnl, win, active)
}

func (r *PerformanceRecord) tally(m map[string]*SubTally, key string, pnl float64, win, active bool) {
	if key == "" {
		return
	}
	t, ok := m[key]
	if !ok {
		t = &SubTally{}
		m[key] = t
	}
	t.PnL += pnl
	if active {
		if win {
			t.Wins++
		} else {
			t.Losses++
		}
	}
}

func appendBounded(list []float64, value float64, limit int) []float64 {
	list = append(list, value)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

// HistoryEntry is one realized outcome in the FIFO learning history.
type HistoryEntry struct {
	Timestamp time.Time          `json:"ts"`
	PnL       float64            `json:"pnl"`
	Win       bool               `json:"win"`
	Regime    string             `json:"regime"`
	Sector    string             `json:"sector"`
	Features  map[string]float64 `json:"features"`
}
